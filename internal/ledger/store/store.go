package store

import (
	"context"
	"errors"
)

// Persisted keys shared by every component.
const (
	KeySecret            = "attendance_security_key"
	KeyAttendanceRecords = "attendance_records_secure"
	KeyLocationLogs      = "location_logs_secure"
	KeyAuditLogs         = "attendance_audit_logs"
	KeySecuritySettings  = "attendance_security_settings"
	KeyLastCleanup       = "last_auto_cleanup"
	KeyLastLocationLog   = "last_location_log"

	// Plaintext collections written by older clients; migrated on startup.
	KeyLegacyAttendanceRecords = "attendance_records"
	KeyLegacyLocationLogs      = "location_logs"

	ChecksumSuffix = "_checksum"
)

// ErrIO wraps any failure of the underlying byte store.
var ErrIO = errors.New("store i/o failure")

// KV is the persistent byte store the ledger runs on. Only single-key writes
// are atomic; there are no transactions across keys.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
