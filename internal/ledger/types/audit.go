package types

import (
	"encoding/json"
	"time"
)

// Level is the severity of an audit entry.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Valid reports whether l is one of the four known levels.
func (l Level) Valid() bool {
	switch l {
	case LevelInfo, LevelSuccess, LevelWarning, LevelError:
		return true
	}
	return false
}

// AuditEntry is one immutable record in the audit trail.
type AuditEntry struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Category  string            `json:"category"`
	Action    string            `json:"action"`
	Level     Level             `json:"level"`
	Details   json.RawMessage   `json:"details,omitempty"`
	Context   map[string]string `json:"context,omitempty"`
}
