package types

import "time"

type CheckStatus string

const (
	CheckPass    CheckStatus = "pass"
	CheckWarning CheckStatus = "warning"
	CheckFail    CheckStatus = "fail"
)

type IntegrityCheck struct {
	Name    string      `json:"name"`
	Status  CheckStatus `json:"status"`
	Message string      `json:"message"`
}

// IntegrityReport summarises one integrity-check run.
type IntegrityReport struct {
	Timestamp time.Time        `json:"timestamp"`
	Overall   CheckStatus      `json:"overall"`
	Checks    []IntegrityCheck `json:"checks"`
}

// SecuritySettings is the persisted feature-flag object.
type SecuritySettings struct {
	EncryptionEnabled        bool  `json:"encryption_enabled"`
	AnomalyDetectionEnabled  bool  `json:"anomaly_detection_enabled"`
	AuditLoggingEnabled      bool  `json:"audit_logging_enabled"`
	IntegrityCheckIntervalMs int64 `json:"integrity_check_interval_ms"`
}

// DefaultSecuritySettings returns the flags used when nothing is stored.
func DefaultSecuritySettings() SecuritySettings {
	return SecuritySettings{
		EncryptionEnabled:        true,
		AnomalyDetectionEnabled:  true,
		AuditLoggingEnabled:      true,
		IntegrityCheckIntervalMs: (5 * time.Minute).Milliseconds(),
	}
}

// SettingsPatch is a partial update; nil fields are left unchanged.
type SettingsPatch struct {
	EncryptionEnabled        *bool  `json:"encryption_enabled,omitempty"`
	AnomalyDetectionEnabled  *bool  `json:"anomaly_detection_enabled,omitempty"`
	AuditLoggingEnabled      *bool  `json:"audit_logging_enabled,omitempty"`
	IntegrityCheckIntervalMs *int64 `json:"integrity_check_interval_ms,omitempty" validate:"omitempty,gte=1000"`
}

// RetentionStatus describes what the next cleanup would do.
type RetentionStatus struct {
	Cutoff        time.Time  `json:"cutoff"`
	CurrentEvents int        `json:"current_events"`
	CurrentLogs   int        `json:"current_logs"`
	OldEvents     int        `json:"old_events"`
	OldLogs       int        `json:"old_logs"`
	LastCleanup   *time.Time `json:"last_cleanup,omitempty"`
	NextCleanup   time.Time  `json:"next_cleanup"`
}
