package identitystore

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/nzcore-project/nzcore/internal/keymaterial"
	"github.com/nzcore-project/nzcore/internal/primitives"
)

// TrustFileName is the persisted-state path for the encrypted trust store.
const TrustFileName = "trust.json"

// Size limits for the trust store: how many peers it may hold and how
// large the encrypted file on disk may grow.
const (
	MaxTrustedPeers = 1000
	MaxTrustFileSize = 10 * 1024 * 1024
)

// TrustedPeer is a peer the node is willing to talk to.
type TrustedPeer struct {
	ID        string    `json:"id"`
	PublicKey []byte    `json:"pubkey"`
	AddedAt   time.Time `json:"added_at"`
}

type trustDocument struct {
	Peers     []TrustedPeer `json:"peers"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// trustEncryptionKey mirrors seedEncryptionKey but binds to the
// "nzcore:trust:v2" context instead.
func trustEncryptionKey(masterKey, nonce []byte) []byte {
	mac := hmac.New(sha256.New, nonce)
	mac.Write(masterKey)
	mac.Write([]byte("nzcore:trust:v2"))
	return mac.Sum(nil)
}

// SaveTrustStore persists peers in the binary layout:
// version=2 u32 BE | nonce(12) | tag(16) | ciphertext. Refuses with
// ErrTrustOverlarge above the 1000-peer / 10 MiB caps.
func SaveTrustStore(envDir string, masterKey []byte, peers []TrustedPeer) error {
	if len(peers) > MaxTrustedPeers {
		return ErrTrustOverlarge
	}
	doc := trustDocument{Peers: peers, UpdatedAt: time.Now().UTC()}
	plaintext, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	nonce := make([]byte, 12)
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	key := trustEncryptionKey(masterKey, nonce)
	defer keymaterial.WipeBytes(key)

	sealed, err := primitives.AEADSeal(key, nonce, plaintext, nil)
	if err != nil {
		return err
	}
	ciphertext, tag := splitTag(sealed)

	buf := make([]byte, 0, 4+len(nonce)+len(tag)+len(ciphertext))
	var versionBytes [4]byte
	binary.BigEndian.PutUint32(versionBytes[:], seedVersionV2)
	buf = append(buf, versionBytes[:]...)
	buf = append(buf, nonce...)
	buf = append(buf, tag...)
	buf = append(buf, ciphertext...)

	if len(buf) > MaxTrustFileSize {
		return ErrTrustOverlarge
	}
	if err := os.MkdirAll(envDir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(envDir, TrustFileName), buf, 0o600)
}

// LoadTrustStore reads env/trust.json. A plaintext legacy
// {peers,updatedAt} JSON document is accepted read-only.
func LoadTrustStore(envDir string, masterKey []byte) ([]TrustedPeer, error) {
	path := filepath.Join(envDir, TrustFileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(raw) > MaxTrustFileSize {
		return nil, ErrTrustOverlarge
	}

	if looksLikeJSON(raw) {
		var doc trustDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, ErrTrustDecryptionFailed
		}
		return doc.Peers, nil
	}

	if len(raw) < 4+12+16 {
		return nil, ErrTrustDecryptionFailed
	}
	version := binary.BigEndian.Uint32(raw[:4])
	if version != seedVersionV2 {
		return nil, ErrUnsupportedVersion
	}
	nonce := raw[4:16]
	tag := raw[16:32]
	ciphertext := raw[32:]

	key := trustEncryptionKey(masterKey, nonce)
	defer keymaterial.WipeBytes(key)

	sealed := append(append([]byte(nil), ciphertext...), tag...)
	plaintext, err := primitives.AEADOpen(key, nonce, sealed, nil)
	if err != nil {
		return nil, ErrTrustDecryptionFailed
	}

	var doc trustDocument
	if err := json.Unmarshal(plaintext, &doc); err != nil {
		return nil, ErrTrustDecryptionFailed
	}
	if len(doc.Peers) > MaxTrustedPeers {
		return nil, ErrTrustOverlarge
	}
	return doc.Peers, nil
}

func looksLikeJSON(raw []byte) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}
