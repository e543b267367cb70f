package identitystore

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/nzcore-project/nzcore/internal/keymaterial"
	"github.com/nzcore-project/nzcore/internal/primitives"
)

// SeedFileName is the persisted-state path for the encrypted seed.
const SeedFileName = "seed.enc"

const (
	seedVersionV1 = 1
	seedVersionV2 = 2
)

// seedEnvelopeV2 is the JSON shape persisted at env/seed.enc:
// {version:2, nonce, tag, data, createdAt}. Nonce/tag/data are base64 via
// encoding/json's []byte handling.
type seedEnvelopeV2 struct {
	Version   int       `json:"version"`
	Nonce     []byte    `json:"nonce"`
	Tag       []byte    `json:"tag"`
	Data      []byte    `json:"data"`
	CreatedAt time.Time `json:"createdAt"`
}

// seedEnvelopeV1 is the legacy read-only migration format.
type seedEnvelopeV1 struct {
	Version    int    `json:"version"`
	Algorithm  string `json:"algorithm"`
	Created    string `json:"created"`
	Ciphertext []byte `json:"ciphertext"`
	Nonce      []byte `json:"nonce"`
	Tag        []byte `json:"tag"`
	Checksum   string `json:"checksum"`
}

// seedEncryptionKey binds the AEAD key to the nonce:
// key = HMAC-SHA-256(key=nonce, msg=master_key‖"nzcore:seed:v2").
func seedEncryptionKey(masterKey, nonce []byte) []byte {
	mac := hmac.New(sha256.New, nonce)
	mac.Write(masterKey)
	mac.Write([]byte("nzcore:seed:v2"))
	return mac.Sum(nil)
}

// EncryptSeedV2 encrypts mnemonic bytes under the v2 format.
func EncryptSeedV2(masterKey, mnemonic []byte) (*seedEnvelopeV2, error) {
	nonce := make([]byte, 12)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	key := seedEncryptionKey(masterKey, nonce)
	defer keymaterial.WipeBytes(key)

	sealed, err := primitives.AEADSeal(key, nonce, mnemonic, nil)
	if err != nil {
		return nil, err
	}
	// sealed = ciphertext||tag; split per the on-disk {nonce,tag,data} shape.
	ct, tag := splitTag(sealed)
	return &seedEnvelopeV2{
		Version:   seedVersionV2,
		Nonce:     nonce,
		Tag:       tag,
		Data:      ct,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// DecryptSeedV2 recovers the mnemonic bytes from a v2 envelope.
func DecryptSeedV2(masterKey []byte, env *seedEnvelopeV2) ([]byte, error) {
	if env.Version != seedVersionV2 {
		return nil, ErrUnsupportedVersion
	}
	key := seedEncryptionKey(masterKey, env.Nonce)
	defer keymaterial.WipeBytes(key)

	sealed := append(append([]byte(nil), env.Data...), env.Tag...)
	plaintext, err := primitives.AEADOpen(key, env.Nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func splitTag(sealed []byte) (ciphertext, tag []byte) {
	if len(sealed) < 16 {
		return sealed, nil
	}
	n := len(sealed) - 16
	return sealed[:n], sealed[n:]
}

// SaveSeed writes the v2 envelope to env/seed.enc (mode 0600) as a JSON
// wrapper around the encrypted seed with the exact field names
// seedEnvelopeV2 declares.
func SaveSeed(envDir string, masterKey, mnemonic []byte) error {
	env, err := EncryptSeedV2(masterKey, mnemonic)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(envDir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(envDir, SeedFileName), raw, 0o600)
}

// LoadSeed reads env/seed.enc, transparently migrating a legacy v1
// envelope to v2 on read and securely deleting the v1 file afterward.
func LoadSeed(envDir string, masterKey []byte) ([]byte, error) {
	path := filepath.Join(envDir, SeedFileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var probe struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, ErrDecryptionFailed
	}

	switch probe.Version {
	case seedVersionV2:
		var env seedEnvelopeV2
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, ErrDecryptionFailed
		}
		return DecryptSeedV2(masterKey, &env)
	case seedVersionV1:
		var env seedEnvelopeV1
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, ErrDecryptionFailed
		}
		mnemonic, err := decryptV1(masterKey, &env)
		if err != nil {
			return nil, err
		}
		// One-shot rewrite as v2, then securely delete the old v1 file: the
		// v1 file's on-disk bytes are overwritten before unlinking so no
		// forensic trace of the prior encoding survives the migration.
		if err := SaveSeed(envDir, masterKey, mnemonic); err != nil {
			return nil, err
		}
		if err := secureDeleteFile(path, len(raw)); err != nil {
			return nil, err
		}
		keymaterial.WipeBytes(raw)
		return mnemonic, nil
	default:
		return nil, ErrUnsupportedVersion
	}
}

// decryptV1 decrypts the legacy v1 format, which simply used
// chacha20-poly1305 keyed directly by the master key (no nonce-binding).
func decryptV1(masterKey []byte, env *seedEnvelopeV1) ([]byte, error) {
	sealed := append(append([]byte(nil), env.Ciphertext...), env.Tag...)
	plaintext, err := primitives.AEADOpen(masterKey, env.Nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// secureDeleteFile overwrites path with random bytes before unlinking it, so
// the legacy v1 envelope leaves no recoverable trace on disk.
func secureDeleteFile(path string, size int) error {
	junk := make([]byte, size)
	if _, err := rand.Read(junk); err != nil {
		return err
	}
	if err := os.WriteFile(path, junk, 0o600); err != nil {
		return err
	}
	return os.Remove(path)
}
