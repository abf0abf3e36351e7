package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-dashboard/internal/models"
	appErrors "github.com/noah-isme/clinic-dashboard/pkg/errors"
	"github.com/noah-isme/clinic-dashboard/pkg/response"
)

type auditReader interface {
	Recent(ctx context.Context, clinicID, limit int) ([]models.AuditLog, error)
}

// AuditHandler lists recent dashboard actions of the signed-in user's clinic.
type AuditHandler struct {
	audit auditReader
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(audit auditReader) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// Recent godoc
// @Summary Recent dashboard actions of the clinic
// @Tags Users
// @Produce json
// @Param limit query int false "Maximum entries (default 20)"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users/activity [get]
func (h *AuditHandler) Recent(c *gin.Context) {
	identity := scopeOf(c).Identity()
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}
	if identity.ClinicID() == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "user has no clinic assigned"))
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	entries, err := h.audit.Recent(c.Request.Context(), identity.ClinicID(), limit)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to load activity"))
		return
	}
	if entries == nil {
		entries = []models.AuditLog{}
	}
	response.JSON(c, http.StatusOK, entries, nil, map[string]interface{}{"limit": limit})
}
