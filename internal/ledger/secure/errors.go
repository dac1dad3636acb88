package secure

import "errors"

var (
	ErrEncrypt           = errors.New("encrypt failed")
	ErrDecrypt           = errors.New("decrypt failed")
	ErrSerialization     = errors.New("serialization failed")
	ErrIntegrityMismatch = errors.New("checksum mismatch")

	// ErrSecretUnavailable means the installation secret could not be read or
	// created.  Secure storage cannot work without it.
	ErrSecretUnavailable = errors.New("installation secret unavailable")
)
