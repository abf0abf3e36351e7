package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/clinic-dashboard/internal/apiclient"
	"github.com/noah-isme/clinic-dashboard/internal/models"
	"github.com/noah-isme/clinic-dashboard/internal/session"
	appErrors "github.com/noah-isme/clinic-dashboard/pkg/errors"
	"github.com/noah-isme/clinic-dashboard/pkg/strapi"
)

const usersPath = "/users"

var userSearchFields = []string{"username", "email"}

// UserConfig carries role values and page sizes used by UserService.
type UserConfig struct {
	PageSize      int
	StatsPageSize int
	AdminRole     models.ClinicRole
	MemberRole    models.ClinicRole
	DefaultRoleID int
	StatsTTL      time.Duration
}

// UserService manages the staff accounts of the signed-in user's clinic.
type UserService struct {
	api       remoteAPI
	validator *validator.Validate
	logger    *zap.Logger
	cache     statsCache
	audit     auditRecorder
	cfg       UserConfig

	// statsLoads coalesces concurrent stats misses per key.
	statsLoads singleflight.Group
}

// NewUserService constructs a UserService.
func NewUserService(api remoteAPI, validate *validator.Validate, logger *zap.Logger, cache statsCache, audit auditRecorder, cfg UserConfig) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	if cfg.StatsPageSize <= 0 {
		cfg.StatsPageSize = 10000
	}
	if cfg.AdminRole == "" {
		cfg.AdminRole = "adminClinic"
	}
	if cfg.MemberRole == "" {
		cfg.MemberRole = "userClinic"
	}
	if cfg.DefaultRoleID <= 0 {
		cfg.DefaultRoleID = 1
	}
	return &UserService{api: api, validator: validate, logger: logger, cache: cache, audit: audit, cfg: cfg}
}

// List returns one page of the clinic's users, optionally filtered by username or email.
func (s *UserService) List(ctx context.Context, scope *session.Scope, req models.PageRequest) (*models.PageResult[models.User], error) {
	identity, err := requireClinic(scope)
	if err != nil {
		return nil, err
	}
	req = req.Normalize(s.cfg.PageSize)

	path := strapi.NewQuery().
		Populate("*").
		Eq("clinic.id", identity.ClinicID()).
		ContainsAny(userSearchFields, req.Search).
		Page(req.Page, req.PageSize).
		Path(usersPath)

	var raw json.RawMessage
	if err := s.api.Do(ctx, scope, &apiclient.Request{Method: http.MethodGet, Path: path, Label: usersPath}, &raw); err != nil {
		s.logger.Warn("list users failed", zap.Int("clinic_id", identity.ClinicID()), zap.Error(err))
		return nil, normalizeRemoteError(err, "you are not allowed to view this information", "failed to load users")
	}

	records, meta, err := strapi.DecodeList[models.User](raw, req.Page, req.PageSize)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "invalid users response")
	}
	return &models.PageResult[models.User]{Records: records, Pagination: toPagination(meta)}, nil
}

// GetStats counts the clinic's users and stores the counters in the scope's stats.
func (s *UserService) GetStats(ctx context.Context, scope *session.Scope) (*models.UserStats, error) {
	identity, err := requireClinic(scope)
	if err != nil {
		return nil, err
	}

	stats, err := remember(ctx, s.cache, &s.statsLoads, userStatsKey(identity.ClinicID(), identity.ID), s.cfg.StatsTTL, func(ctx context.Context) (models.UserStats, error) {
		path := strapi.NewQuery().
			Populate("*").
			Eq("clinic.id", identity.ClinicID()).
			PageSize(s.cfg.StatsPageSize).
			Path(usersPath)

		var raw json.RawMessage
		if err := s.api.Do(ctx, scope, &apiclient.Request{Method: http.MethodGet, Path: path, Label: usersPath + ":stats"}, &raw); err != nil {
			s.logger.Warn("user stats failed", zap.Int("clinic_id", identity.ClinicID()), zap.Error(err))
			return models.UserStats{}, normalizeRemoteError(err, "you are not allowed to view this information", "failed to load user statistics")
		}
		users, _, err := strapi.DecodeList[models.User](raw, 1, 0)
		if err != nil {
			return models.UserStats{}, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "invalid users response")
		}
		return CountUsers(users, s.cfg.AdminRole), nil
	})
	if err != nil {
		return nil, err
	}
	scope.Stats.SetUserStats(stats)
	return &stats, nil
}

// CountUsers derives the user counters from a full listing.
func CountUsers(users []models.User, adminRole models.ClinicRole) models.UserStats {
	stats := models.UserStats{TotalUsers: len(users)}
	for _, u := range users {
		if u.Blocked {
			stats.BlockedUsers++
		}
		if u.RoleClinic == adminRole {
			stats.AdminUsers++
		}
	}
	return stats
}

// Get fetches one user with relations.
func (s *UserService) Get(ctx context.Context, scope *session.Scope, id int) (*models.User, error) {
	if _, err := requireClinic(scope); err != nil {
		return nil, err
	}

	var user models.User
	path := strapi.NewQuery().Populate("*").Path(userPath(id))
	if err := s.api.Do(ctx, scope, &apiclient.Request{Method: http.MethodGet, Path: path, Label: "/users/:id"}, &user); err != nil {
		return nil, normalizeRemoteError(err, "you are not allowed to view this information", "failed to load the user")
	}
	return &user, nil
}

// Create registers a new account in the signed-in user's clinic.
func (s *UserService) Create(ctx context.Context, scope *session.Scope, req models.CreateUserRequest, meta models.RequestMeta) (*models.User, error) {
	identity, err := requireClinic(scope)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}

	payload := models.CreateUserPayload{
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		Phone:      req.Phone,
		Device:     req.Device,
		Blocked:    false,
		Confirmed:  true,
		RoleClinic: s.cfg.MemberRole,
		Clinic:     identity.ClinicID(),
		Role:       s.cfg.DefaultRoleID,
	}

	var created models.User
	if err := s.api.Do(ctx, scope, &apiclient.Request{Method: http.MethodPost, Path: usersPath, Body: payload}, &created); err != nil {
		s.logger.Warn("create user failed", zap.Int("clinic_id", identity.ClinicID()), zap.Error(err))
		return nil, normalizeRemoteError(err, "you are not allowed to create users", "failed to create the user")
	}

	s.invalidateStats(ctx, identity.ClinicID())
	recordAudit(ctx, s.audit, identity, meta, models.AuditActionUserCreate, "users", strconv.Itoa(created.ID))
	s.logger.Info("user created", zap.Int("user_id", created.ID), zap.Int("clinic_id", identity.ClinicID()))
	return &created, nil
}

// ToggleBlock inverts the blocked flag of a user. When expectedVersion is not
// empty the write only happens if the record was not modified since that version.
func (s *UserService) ToggleBlock(ctx context.Context, scope *session.Scope, id int, expectedVersion string, meta models.RequestMeta) (*models.User, error) {
	identity, err := requireClinic(scope)
	if err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, normalizeToggle(err)
	}
	if current.ClinicID() != 0 && current.ClinicID() != identity.ClinicID() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you are not allowed to perform this action")
	}
	if expectedVersion != "" && current.Version() != expectedVersion {
		return nil, appErrors.Clone(appErrors.ErrConflict, "the user was modified by someone else, reload and try again")
	}

	body := map[string]bool{"blocked": !current.Blocked}
	var updated models.User
	if err := s.api.Do(ctx, scope, &apiclient.Request{Method: http.MethodPut, Path: userPath(id), Body: body, Label: "/users/:id"}, &updated); err != nil {
		s.logger.Warn("toggle block failed", zap.Int("user_id", id), zap.Error(err))
		return nil, normalizeRemoteError(err, "you are not allowed to perform this action", "failed to update the user status")
	}
	if updated.ID == 0 {
		updated = *current
		updated.Blocked = !current.Blocked
	}

	s.invalidateStats(ctx, identity.ClinicID())
	recordAudit(ctx, s.audit, identity, meta, models.AuditActionUserBlock, "users", strconv.Itoa(id))
	s.logger.Info("user block toggled", zap.Int("user_id", id), zap.Bool("blocked", updated.Blocked))
	return &updated, nil
}

func (s *UserService) invalidateStats(ctx context.Context, clinicID int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userStatsPattern(clinicID)); err != nil {
		s.logger.Warn("user stats invalidation failed", zap.Int("clinic_id", clinicID), zap.Error(err))
	}
}

// normalizeToggle rewords Forbidden from the re-fetch for the toggle action.
func normalizeToggle(err error) error {
	if appErr := appErrors.FromError(err); appErr != nil && appErr.Code == appErrors.ErrForbidden.Code {
		return appErrors.Wrap(err, appErr.Code, appErr.Status, "you are not allowed to perform this action")
	}
	return err
}

func userPath(id int) string {
	return fmt.Sprintf("%s/%d", usersPath, id)
}

// userStatsKey is per caller: the backend decides per credential whether the
// listing may be read, so one member's counters are never served to another.
func userStatsKey(clinicID, userID int) string {
	return fmt.Sprintf("stats:users:clinic:%d:user:%d", clinicID, userID)
}

func userStatsPattern(clinicID int) string {
	return fmt.Sprintf("stats:users:clinic:%d:*", clinicID)
}

func toPagination(p strapi.Pagination) models.Pagination {
	return models.Pagination{
		Page:       p.Page,
		PageSize:   p.PageSize,
		PageCount:  p.PageCount,
		TotalCount: p.Total,
	}
}
