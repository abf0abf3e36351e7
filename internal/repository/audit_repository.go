package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/clinic-dashboard/internal/models"
)

const auditSchema = `CREATE TABLE IF NOT EXISTS audit_logs (
	id UUID PRIMARY KEY,
	actor_id INTEGER,
	clinic_id INTEGER,
	action TEXT NOT NULL,
	resource TEXT NOT NULL,
	resource_id TEXT,
	old_values JSONB,
	new_values JSONB,
	ip_address TEXT NOT NULL DEFAULT '',
	user_agent TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
)`

// AuditRepository stores the local audit trail of dashboard actions.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new instance of AuditRepository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// EnsureSchema creates the audit table when missing.
func (r *AuditRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, auditSchema); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

// Create stores an audit log entry.
func (r *AuditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, actor_id, clinic_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at) VALUES (:id, :actor_id, :clinic_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// ListByClinic returns the newest entries recorded for a clinic.
func (r *AuditRepository) ListByClinic(ctx context.Context, clinicID, limit int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT id, actor_id, clinic_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at FROM audit_logs WHERE clinic_id = $1 ORDER BY created_at DESC LIMIT $2`
	logs := make([]models.AuditLog, 0)
	if err := r.db.SelectContext(ctx, &logs, query, clinicID, limit); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}
