package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-dashboard/internal/middleware"
	"github.com/noah-isme/clinic-dashboard/internal/models"
	"github.com/noah-isme/clinic-dashboard/internal/session"
	appErrors "github.com/noah-isme/clinic-dashboard/pkg/errors"
	"github.com/noah-isme/clinic-dashboard/pkg/response"
)

// uploadOverhead covers the multipart framing and the non-file fields.
const uploadOverhead = 64 << 10

var errAudioTooLarge = appErrors.New(appErrors.ErrValidation.Code, http.StatusRequestEntityTooLarge, "the audio file is too large")

type analysisService interface {
	Get(ctx context.Context, scope *session.Scope, id string) (*models.Analysis, error)
	Status(ctx context.Context, scope *session.Scope, id string) (*models.AnalysisStatus, error)
	ProcessAudioRecording(ctx context.Context, scope *session.Scope, upload models.AudioUpload, audio io.Reader, meta models.RequestMeta) (*models.AudioAnalysisResult, error)
}

// AnalysisHandler serves analysis details and audio uploads.
type AnalysisHandler struct {
	service       analysisService
	maxAudioBytes int64
}

// NewAnalysisHandler constructs the handler. maxAudioBytes <= 0 disables the size check.
func NewAnalysisHandler(svc analysisService, maxAudioBytes int64) *AnalysisHandler {
	return &AnalysisHandler{service: svc, maxAudioBytes: maxAudioBytes}
}

// Detail godoc
// @Summary Analysis detail
// @Tags Analyses
// @Produce json,html
// @Param id path string true "Analysis ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /analysis/{id} [get]
func (h *AnalysisHandler) Detail(c *gin.Context) {
	scope := scopeOf(c)
	analysis, err := h.service.Get(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		fail(c, scope, err, "error", gin.H{"Title": "Analysis unavailable"})
		return
	}
	if middleware.WantsJSON(c) {
		response.JSON(c, http.StatusOK, analysis, nil)
		return
	}
	renderPage(c, http.StatusOK, "analysis_detail", scope, gin.H{"Title": "Analysis", "Analysis": analysis})
}

// Status godoc
// @Summary Processing status of an analysis
// @Tags Analyses
// @Produce json
// @Param id path string true "Analysis ID"
// @Success 200 {object} response.Envelope
// @Router /analysis/{id}/status [get]
func (h *AnalysisHandler) Status(c *gin.Context) {
	scope := scopeOf(c)
	status, err := h.service.Status(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		if followNavigation(c, scope) {
			return
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// CreatePage renders the audio upload form.
func (h *AnalysisHandler) CreatePage(c *gin.Context) {
	renderPage(c, http.StatusOK, "analysis_create", scopeOf(c), gin.H{
		"Title":      "New analysis",
		"AnalysisID": c.Query("analysisId"),
	})
}

// Create godoc
// @Summary Upload an audio recording for transcription
// @Tags Analyses
// @Accept multipart/form-data
// @Produce json,html
// @Param audio formData file true "Recording"
// @Param analysisId formData string false "Analysis ID"
// @Param analysisInternalId formData string true "Internal analysis ID"
// @Param metadata formData string false "JSON metadata"
// @Success 200 {object} models.AudioAnalysisResult
// @Failure 400 {object} models.AudioAnalysisResult
// @Router /analysis/create [post]
func (h *AnalysisHandler) Create(c *gin.Context) {
	scope := scopeOf(c)
	form := gin.H{
		"Title":              "New analysis",
		"AnalysisID":         c.PostForm("analysisId"),
		"AnalysisInternalID": c.PostForm("analysisInternalId"),
		"Metadata":           c.PostForm("metadata"),
	}

	result, err := h.process(c, scope)
	if err != nil {
		if followNavigation(c, scope) {
			return
		}
		if middleware.WantsJSON(c) {
			appErr := appErrors.FromError(err)
			c.JSON(appErr.Status, models.AudioAnalysisResult{Success: false, Error: appErr.Message})
			return
		}
		fail(c, scope, err, "analysis_create", form)
		return
	}

	if middleware.WantsJSON(c) {
		c.JSON(http.StatusOK, result)
		return
	}
	form["Result"] = result
	form["Notice"] = "Recording processed"
	renderPage(c, http.StatusOK, "analysis_create", scope, form)
}

func (h *AnalysisHandler) process(c *gin.Context, scope *session.Scope) (*models.AudioAnalysisResult, error) {
	if h.maxAudioBytes > 0 {
		limit := h.maxAudioBytes + uploadOverhead
		if c.Request.ContentLength > limit {
			return nil, errAudioTooLarge
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}
	header, err := c.FormFile("audio")
	if err != nil {
		if bodyTooLarge(err) {
			return nil, errAudioTooLarge
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "an audio file is required")
	}
	if h.maxAudioBytes > 0 && header.Size > h.maxAudioBytes {
		return nil, errAudioTooLarge
	}

	upload := models.AudioUpload{
		Filename:           header.Filename,
		ContentType:        header.Header.Get("Content-Type"),
		Size:               header.Size,
		AnalysisID:         strings.TrimSpace(c.PostForm("analysisId")),
		AnalysisInternalID: strings.TrimSpace(c.PostForm("analysisInternalId")),
	}
	if raw := strings.TrimSpace(c.PostForm("metadata")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &upload.Metadata); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "metadata must be a JSON object")
		}
	}

	file, err := header.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "the audio file could not be read")
	}
	defer file.Close()

	return h.service.ProcessAudioRecording(c.Request.Context(), scope, upload, file, requestMeta(c))
}

// bodyTooLarge reports whether multipart parsing stopped at the body limit.
// Some parse paths format the cause with %v, so the message is checked too.
func bodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}
