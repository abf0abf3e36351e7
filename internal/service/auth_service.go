package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-dashboard/internal/apiclient"
	"github.com/noah-isme/clinic-dashboard/internal/models"
	"github.com/noah-isme/clinic-dashboard/internal/session"
	appErrors "github.com/noah-isme/clinic-dashboard/pkg/errors"
	"github.com/noah-isme/clinic-dashboard/pkg/strapi"
)

const (
	authLoginPath    = "/auth/local"
	authRegisterPath = "/auth/local/register"
	usersMePath      = "/users/me"
)

// AuthService signs clinic staff in and out and maintains their profile.
type AuthService struct {
	api       remoteAPI
	validator *validator.Validate
	logger    *zap.Logger
	audit     auditRecorder
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(api remoteAPI, validate *validator.Validate, logger *zap.Logger, audit auditRecorder) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{api: api, validator: validate, logger: logger, audit: audit}
}

// Login exchanges credentials for a bearer token and stores the identity in the session.
func (s *AuthService) Login(ctx context.Context, scope *session.Scope, req models.LoginRequest, meta models.RequestMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "identifier and password are required")
	}

	// a stale credential must not ride along with the sign-in request
	scope.Session.Logout()

	var resp models.LoginResponse
	err := s.api.Do(ctx, scope, &apiclient.Request{Method: http.MethodPost, Path: authLoginPath, Body: req}, &resp)
	if err != nil {
		return nil, s.credentialError(err, "sign-in failed")
	}
	if resp.JWT == "" {
		return nil, appErrors.Clone(appErrors.ErrUpstream, "sign-in response did not include a token")
	}

	scope.Session.Login(resp.User, resp.JWT)

	// the sign-in response omits relations; the clinic comes from /users/me
	if _, err := s.CurrentUser(ctx, scope); err != nil {
		s.logger.Warn("profile refresh after sign-in failed", zap.Int("user_id", resp.User.ID), zap.Error(err))
		// a rejected refresh has already torn the session down
		if !scope.Session.Authenticated() {
			return nil, err
		}
	}

	identity := scope.Identity()
	recordAudit(ctx, s.audit, identity, meta, models.AuditActionLogin, "session", "")
	s.logger.Info("user signed in", zap.Int("user_id", resp.User.ID))
	return identity, nil
}

// Register creates a self-service account and signs it in.
func (s *AuthService) Register(ctx context.Context, scope *session.Scope, req models.RegisterRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	var resp models.LoginResponse
	err := s.api.Do(ctx, scope, &apiclient.Request{Method: http.MethodPost, Path: authRegisterPath, Body: req}, &resp)
	if err != nil {
		return nil, s.credentialError(err, "registration failed")
	}
	if resp.JWT != "" {
		scope.Session.Login(resp.User, resp.JWT)
	}
	user := resp.User
	return &user, nil
}

// CurrentUser fetches the full profile of the signed-in user and refreshes the session identity.
func (s *AuthService) CurrentUser(ctx context.Context, scope *session.Scope) (*models.User, error) {
	if _, err := requireIdentity(scope); err != nil {
		return nil, err
	}

	var user models.User
	path := strapi.NewQuery().Populate("*").Path(usersMePath)
	if err := s.api.Do(ctx, scope, &apiclient.Request{Method: http.MethodGet, Path: path, Label: usersMePath}, &user); err != nil {
		return nil, normalizeRemoteError(err, "", "failed to load the current user")
	}

	scope.Session.RefreshIdentity(user)
	return &user, nil
}

// UpdateProfile saves editable profile fields of the signed-in user.
func (s *AuthService) UpdateProfile(ctx context.Context, scope *session.Scope, req models.UpdateProfileRequest, meta models.RequestMeta) (*models.User, error) {
	identity, err := requireIdentity(scope)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	var updated models.User
	path := fmt.Sprintf("/users/%d", identity.ID)
	if err := s.api.Do(ctx, scope, &apiclient.Request{Method: http.MethodPut, Path: path, Body: req, Label: "/users/:id"}, &updated); err != nil {
		return nil, normalizeRemoteError(err, "you are not allowed to update this profile", "failed to update the profile")
	}

	// the update response omits relations
	refreshed, err := s.CurrentUser(ctx, scope)
	if err != nil {
		s.logger.Warn("profile refresh after update failed", zap.Int("user_id", identity.ID), zap.Error(err))
		if updated.Clinic == nil {
			updated.Clinic = identity.Clinic
		}
		scope.Session.RefreshIdentity(updated)
		refreshed = &updated
	}

	recordAudit(ctx, s.audit, identity, meta, models.AuditActionProfileUpdate, "users", strconv.Itoa(identity.ID))
	return refreshed, nil
}

// Logout ends the session and clears derived counters.
func (s *AuthService) Logout(ctx context.Context, scope *session.Scope, meta models.RequestMeta) {
	if scope == nil {
		return
	}
	identity := scope.Identity()
	scope.Session.Logout()
	if scope.Stats != nil {
		scope.Stats.Reset()
	}
	if identity != nil {
		recordAudit(ctx, s.audit, identity, meta, models.AuditActionLogout, "session", "")
		s.logger.Info("user signed out", zap.Int("user_id", identity.ID))
	}
}

// credentialError keeps rejected credentials a validation problem instead of an upstream one.
func (s *AuthService) credentialError(err error, fallback string) error {
	var status *apiclient.StatusError
	if errors.As(err, &status) && status.Status == http.StatusBadRequest {
		message := status.Message
		if message == "" {
			message = fallback
		}
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	}
	s.logger.Warn("auth request failed", zap.Error(err))
	return normalizeRemoteError(err, "", fallback)
}
