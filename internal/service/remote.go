package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/noah-isme/clinic-dashboard/internal/apiclient"
	"github.com/noah-isme/clinic-dashboard/internal/models"
	"github.com/noah-isme/clinic-dashboard/internal/session"
	appErrors "github.com/noah-isme/clinic-dashboard/pkg/errors"
)

// remoteAPI is the authenticated request pipeline to the content API.
type remoteAPI interface {
	Do(ctx context.Context, scope *session.Scope, req *apiclient.Request, out interface{}) error
}

// auditRecorder receives dashboard actions for the audit trail.
type auditRecorder interface {
	Record(ctx context.Context, entry models.AuditLog)
}

// statsCache stores derived counters between requests.
type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

// normalizeRemoteError maps pipeline failures onto the dashboard error kinds.
// Session and transport errors pass through; 403 becomes Forbidden; any other
// status becomes Upstream carrying the backend message, else fallback.
func normalizeRemoteError(err error, forbidden, fallback string) error {
	if err == nil {
		return nil
	}

	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}

	var status *apiclient.StatusError
	if errors.As(err, &status) {
		message := status.Message
		if status.Status == http.StatusForbidden {
			if forbidden == "" {
				forbidden = appErrors.ErrForbidden.Message
			}
			return appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, forbidden)
		}
		if message == "" {
			message = fallback
		}
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, message)
	}
	return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, fallback)
}

// requireIdentity guards operations that need a signed-in session.
func requireIdentity(scope *session.Scope) (*models.User, error) {
	identity := scope.Identity()
	if identity == nil || scope.Session.Credential() == "" {
		return nil, appErrors.ErrUnauthenticated
	}
	return identity, nil
}

// requireClinic additionally demands a clinic assignment.
func requireClinic(scope *session.Scope) (*models.User, error) {
	identity, err := requireIdentity(scope)
	if err != nil {
		return nil, err
	}
	if identity.ClinicID() == 0 {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "user has no clinic assigned")
	}
	return identity, nil
}

func actorFields(identity *models.User) (actor *int, clinic *int) {
	if identity == nil {
		return nil, nil
	}
	id := identity.ID
	actor = &id
	if identity.Clinic != nil {
		clinicID := identity.Clinic.ID
		clinic = &clinicID
	}
	return actor, clinic
}

func recordAudit(ctx context.Context, audit auditRecorder, identity *models.User, meta models.RequestMeta, action, resource, resourceID string) {
	if audit == nil {
		return
	}
	actor, clinic := actorFields(identity)
	entry := models.AuditLog{
		ActorID:   actor,
		ClinicID:  clinic,
		Action:    action,
		Resource:  resource,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	audit.Record(ctx, entry)
}
