package models

import (
	"encoding/json"
	"time"
)

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionRegister       = "REGISTER"
	AuditActionUserCreate     = "USER_CREATE"
	AuditActionUserUpdate     = "USER_UPDATE"
	AuditActionUserActivate   = "USER_ACTIVATE"
	AuditActionUserDelete     = "USER_DELETE"
	AuditActionPasswordChange = "PASSWORD_CHANGE"
	AuditActionHolidayCreate  = "HOLIDAY_CREATE"
	AuditActionHolidayUpdate  = "HOLIDAY_UPDATE"
	AuditActionHolidayApprove = "HOLIDAY_APPROVE"
	AuditActionHolidayReject  = "HOLIDAY_REJECT"
	AuditActionHolidayCancel  = "HOLIDAY_CANCEL"
	AuditActionHolidayExport  = "HOLIDAY_EXPORT"
	AuditActionConfigUpdate   = "CONFIGURATION_UPDATE"
)

// Audit resources.
const (
	AuditResourceUser          = "user"
	AuditResourceHoliday       = "holiday"
	AuditResourceConfiguration = "configuration"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AuditEntry is the response view of an audit log with its payloads inlined.
type AuditEntry struct {
	ID        string          `json:"id"`
	ActorID   *string         `json:"actor_id,omitempty"`
	Action    string          `json:"action"`
	Before    json.RawMessage `json:"before,omitempty"`
	After     json.RawMessage `json:"after,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewAuditEntry converts a stored log into its response view.
func NewAuditEntry(log AuditLog) AuditEntry {
	entry := AuditEntry{ID: log.ID, ActorID: log.UserID, Action: log.Action, CreatedAt: log.CreatedAt}
	if json.Valid(log.OldValues) {
		entry.Before = json.RawMessage(log.OldValues)
	}
	if json.Valid(log.NewValues) {
		entry.After = json.RawMessage(log.NewValues)
	}
	return entry
}
