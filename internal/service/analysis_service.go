package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
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

const (
	analysesPath     = "/analyses"
	processAudioPath = "/analyses/process-audio"
)

var analysisSearchFields = []string{"patient.username", "patient.email"}

// AnalysisConfig carries page sizes used by AnalysisService.
type AnalysisConfig struct {
	PageSize      int
	StatsPageSize int
	StatsTTL      time.Duration
}

// AnalysisService reads the signed-in user's analyses and forwards audio recordings.
type AnalysisService struct {
	api       remoteAPI
	validator *validator.Validate
	logger    *zap.Logger
	cache     statsCache
	audit     auditRecorder
	cfg       AnalysisConfig

	// statsLoads coalesces concurrent stats misses per key.
	statsLoads singleflight.Group
}

// NewAnalysisService constructs an AnalysisService.
func NewAnalysisService(api remoteAPI, validate *validator.Validate, logger *zap.Logger, cache statsCache, audit auditRecorder, cfg AnalysisConfig) *AnalysisService {
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
	return &AnalysisService{api: api, validator: validate, logger: logger, cache: cache, audit: audit, cfg: cfg}
}

// List returns one page of analyses owned by the signed-in user.
func (s *AnalysisService) List(ctx context.Context, scope *session.Scope, req models.PageRequest) (*models.PageResult[models.Analysis], error) {
	identity, err := requireIdentity(scope)
	if err != nil {
		return nil, err
	}
	req = req.Normalize(s.cfg.PageSize)

	path := strapi.NewQuery().
		Eq("user.id", identity.ID).
		Populate("patient").
		ContainsAny(analysisSearchFields, req.Search).
		Page(req.Page, req.PageSize).
		Path(analysesPath)

	var raw json.RawMessage
	if err := s.api.Do(ctx, scope, &apiclient.Request{Method: http.MethodGet, Path: path, Label: analysesPath}, &raw); err != nil {
		s.logger.Warn("list analyses failed", zap.Int("user_id", identity.ID), zap.Error(err))
		return nil, normalizeRemoteError(err, "you are not allowed to view these analyses", "failed to load analyses")
	}

	records, meta, err := strapi.DecodeList[models.Analysis](raw, req.Page, req.PageSize)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "invalid analyses response")
	}
	return &models.PageResult[models.Analysis]{Records: records, Pagination: toPagination(meta)}, nil
}

// GetStats derives analysis counters from the user's full listing and stores
// them in the scope's stats.
func (s *AnalysisService) GetStats(ctx context.Context, scope *session.Scope) (*models.AnalysisStats, error) {
	identity, err := requireIdentity(scope)
	if err != nil {
		return nil, err
	}

	stats, err := remember(ctx, s.cache, &s.statsLoads, analysisStatsKey(identity.ID), s.cfg.StatsTTL, func(ctx context.Context) (models.AnalysisStats, error) {
		path := strapi.NewQuery().
			Eq("user.id", identity.ID).
			Fields("id", "state").
			PopulateFields("patient", "id").
			PageSize(s.cfg.StatsPageSize).
			Path(analysesPath)

		var raw json.RawMessage
		if err := s.api.Do(ctx, scope, &apiclient.Request{Method: http.MethodGet, Path: path, Label: analysesPath + ":stats"}, &raw); err != nil {
			s.logger.Warn("analysis stats failed", zap.Int("user_id", identity.ID), zap.Error(err))
			return models.AnalysisStats{}, normalizeRemoteError(err, "you are not allowed to view these analyses", "failed to load analysis statistics")
		}
		analyses, _, err := strapi.DecodeList[models.Analysis](raw, 1, 0)
		if err != nil {
			return models.AnalysisStats{}, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "invalid analyses response")
		}
		return CountAnalyses(analyses), nil
	})
	if err != nil {
		return nil, err
	}
	scope.Stats.SetAnalysisStats(stats)
	return &stats, nil
}

// CountAnalyses derives total, distinct patient and completion counters.
func CountAnalyses(analyses []models.Analysis) models.AnalysisStats {
	stats := models.AnalysisStats{TotalAnalyses: len(analyses)}
	patients := make(map[int]struct{})
	completed := 0
	for _, a := range analyses {
		if a.Patient != nil {
			patients[a.Patient.ID] = struct{}{}
		}
		if a.State == models.AnalysisCompleted {
			completed++
		}
	}
	stats.TotalPatients = len(patients)
	if stats.TotalAnalyses > 0 {
		stats.CompletedPercentage = float64(completed) / float64(stats.TotalAnalyses) * 100
	}
	return stats
}

// Get fetches one analysis with its patient for the detail panel.
func (s *AnalysisService) Get(ctx context.Context, scope *session.Scope, id string) (*models.Analysis, error) {
	if _, err := requireIdentity(scope); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "analysis id is required")
	}

	var envelope struct {
		Data *models.Analysis `json:"data"`
	}
	path := strapi.NewQuery().Populate("patient").Path(analysesPath + "/" + id)
	if err := s.api.Do(ctx, scope, &apiclient.Request{Method: http.MethodGet, Path: path, Label: "/analyses/:id"}, &envelope); err != nil {
		return nil, normalizeRemoteError(err, "you are not allowed to view this analysis", "failed to load the analysis")
	}
	if envelope.Data == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "analysis not found")
	}
	return envelope.Data, nil
}

// Status polls the processing state of an analysis.
func (s *AnalysisService) Status(ctx context.Context, scope *session.Scope, id string) (*models.AnalysisStatus, error) {
	if _, err := requireIdentity(scope); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "analysis id is required")
	}

	var status models.AnalysisStatus
	path := fmt.Sprintf("%s/%s/status", analysesPath, id)
	if err := s.api.Do(ctx, scope, &apiclient.Request{Method: http.MethodGet, Path: path, Label: "/analyses/:id/status"}, &status); err != nil {
		return nil, normalizeRemoteError(err, "you are not allowed to view this analysis", "failed to load the analysis status")
	}
	return &status, nil
}

// ProcessAudioRecording uploads a recording for transcription. A response with
// success=false is reported as an Upstream error like every other failure.
func (s *AnalysisService) ProcessAudioRecording(ctx context.Context, scope *session.Scope, upload models.AudioUpload, audio io.Reader, meta models.RequestMeta) (*models.AudioAnalysisResult, error) {
	identity, err := requireIdentity(scope)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(upload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "an audio file and an analysis internal id are required")
	}
	if audio == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "an audio file is required")
	}

	body := &apiclient.Multipart{
		Files: []apiclient.FilePart{{Field: "audio", Filename: upload.Filename, ContentType: upload.ContentType, Content: audio}},
		Fields: [][2]string{
			{"analysisId", upload.AnalysisID},
			{"analysisInternalId", upload.AnalysisInternalID},
		},
	}
	if len(upload.Metadata) > 0 {
		encoded, err := json.Marshal(upload.Metadata)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid recording metadata")
		}
		body.Fields = append(body.Fields, [2]string{"metadata", string(encoded)})
	}

	var result models.AudioAnalysisResult
	if err := s.api.Do(ctx, scope, &apiclient.Request{Method: http.MethodPost, Path: processAudioPath, Multipart: body}, &result); err != nil {
		s.logger.Warn("audio processing failed", zap.String("analysis_internal_id", upload.AnalysisInternalID), zap.Error(err))
		return nil, normalizeRemoteError(err, "you are not allowed to upload recordings", "failed to process the audio recording")
	}
	if !result.Success {
		message := result.Error
		if message == "" {
			message = "failed to process the audio recording"
		}
		return nil, appErrors.Clone(appErrors.ErrUpstream, message)
	}

	resourceID := upload.AnalysisID
	if resourceID == "" {
		resourceID = upload.AnalysisInternalID
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, analysisStatsKey(identity.ID)); err != nil {
			s.logger.Warn("analysis stats invalidation failed", zap.Int("user_id", identity.ID), zap.Error(err))
		}
	}
	recordAudit(ctx, s.audit, identity, meta, models.AuditActionAudioUpload, "analyses", resourceID)
	s.logger.Info("audio recording processed", zap.String("analysis_internal_id", upload.AnalysisInternalID), zap.Int64("bytes", upload.Size))
	return &result, nil
}

func analysisStatsKey(userID int) string {
	return "stats:analyses:user:" + strconv.Itoa(userID)
}
