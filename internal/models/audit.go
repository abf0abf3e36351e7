package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin         = "LOGIN"
	AuditActionLogout        = "LOGOUT"
	AuditActionUserCreate    = "USER_CREATE"
	AuditActionUserBlock     = "USER_BLOCK_TOGGLE"
	AuditActionProfileUpdate = "PROFILE_UPDATE"
	AuditActionAudioUpload   = "AUDIO_UPLOAD"
	AuditActionExport        = "DATA_EXPORT"
)

// AuditLog represents an audit trail record of a dashboard action.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	ActorID    *int      `db:"actor_id" json:"actor_id,omitempty"`
	ClinicID   *int      `db:"clinic_id" json:"clinic_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
