package identitystore

import (
	"crypto/rand"
	"crypto/subtle"
	"os"
	"path/filepath"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters: N=2^14, r=8, p=1, 32-byte output.
const (
	scryptN      = 1 << 14
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltSize     = 32
)

// MasterKeyFileName and MasterSaltFileName are the persisted-state paths,
// relative to the env/ directory root.
const (
	MasterKeyFileName  = "master.key"
	MasterSaltFileName = "master.salt"
)

// MinPasswordLength is the shortest password validate_password accepts.
const MinPasswordLength = 8

// ValidatePassword rejects passwords shorter than MinPasswordLength.
func ValidatePassword(password []byte) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// DeriveMasterKey runs scrypt(password, salt, N=16384, r=8, p=1, L=32).
func DeriveMasterKey(password, salt []byte) ([]byte, error) {
	if len(salt) != saltSize {
		return nil, ErrInvalidInput
	}
	return scrypt.Key(password, salt, scryptN, scryptR, scryptP, scryptKeyLen)
}

// NewSalt generates a fresh 32-byte salt for first-time setup.
func NewSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// VerifyMasterKey compares two master keys in constant time.
func VerifyMasterKey(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// LoadOrCreateSalt reads env/master.salt, generating and persisting a fresh
// salt (mode 0600) on first run.
func LoadOrCreateSalt(envDir string) ([]byte, error) {
	path := filepath.Join(envDir, MasterSaltFileName)
	raw, err := os.ReadFile(path)
	if err == nil {
		if len(raw) != saltSize {
			return nil, ErrInvalidInput
		}
		return raw, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	salt, err := NewSalt()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(envDir, 0o700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, salt, 0o600); err != nil {
		return nil, err
	}
	return salt, nil
}

// PersistMasterKey writes the derived master key to env/master.key (0600),
// as a cache so subsequent unlocks need not re-run scrypt synchronously.
func PersistMasterKey(envDir string, key []byte) error {
	if err := os.MkdirAll(envDir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(envDir, MasterKeyFileName), key, 0o600)
}

// LoadMasterKey reads env/master.key if present.
func LoadMasterKey(envDir string) ([]byte, bool, error) {
	raw, err := os.ReadFile(filepath.Join(envDir, MasterKeyFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return raw, true, nil
}

// InitMasterKey resolves the master key per the following NODE_ENV semantics:
// an overrideKey (NZCORE_MASTER_KEY) of exactly 32 bytes always wins, and
// one of any other length is ignored; next comes a supplied password,
// derived via scrypt against env/master.salt (this is the primary bootstrap
// path — it works identically in development and production and is the only
// one that survives rotating the env/ directory's cached state); failing
// that, a previously cached env/master.key is reused. In production it
// refuses to fabricate a key past that point, while outside production it
// falls back to a freshly generated key, persisted to env/master.key and
// reported by a true second return value, so local development never needs
// a password. InitMasterKey itself logs nothing.
func InitMasterKey(envDir string, nodeEnv string, overrideKey []byte, password []byte) ([]byte, bool, error) {
	if len(overrideKey) == 32 {
		return overrideKey, false, nil
	}

	if len(password) > 0 {
		if err := ValidatePassword(password); err != nil {
			return nil, false, err
		}
		salt, err := LoadOrCreateSalt(envDir)
		if err != nil {
			return nil, false, err
		}
		derived, err := DeriveMasterKey(password, salt)
		if err != nil {
			return nil, false, err
		}
		if cached, ok, err := LoadMasterKey(envDir); err != nil {
			return nil, false, err
		} else if ok {
			if !VerifyMasterKey(derived, cached) {
				return nil, false, ErrIncorrectPassword
			}
			return cached, false, nil
		}
		if err := PersistMasterKey(envDir, derived); err != nil {
			return nil, false, err
		}
		return derived, false, nil
	}

	if key, ok, err := LoadMasterKey(envDir); err != nil {
		return nil, false, err
	} else if ok {
		return key, false, nil
	}
	if nodeEnv == "production" {
		return nil, false, ErrMasterKeyMissing
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, false, err
	}
	if err := PersistMasterKey(envDir, key); err != nil {
		return nil, false, err
	}
	return key, true, nil
}
