package identitystore

import "errors"

// Sentinel errors returned by the package's load/save operations.
var (
	ErrMasterKeyMissing      = errors.New("identitystore: master key missing")
	ErrDecryptionFailed      = errors.New("identitystore: decryption failed")
	ErrTrustDecryptionFailed = errors.New("identitystore: trust store decryption failed")
	ErrTrustOverlarge        = errors.New("identitystore: trust store exceeds bounds")
	ErrInvalidInput          = errors.New("identitystore: invalid input")
	ErrUnsupportedVersion    = errors.New("identitystore: unsupported envelope version")
	ErrPasswordTooShort      = errors.New("identitystore: password must be at least 8 characters")
	ErrIncorrectPassword     = errors.New("identitystore: password does not match the stored master key")
)
