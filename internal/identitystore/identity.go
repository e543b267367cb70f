package identitystore

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"

	"github.com/nzcore-project/nzcore/internal/keymaterial"
	"github.com/nzcore-project/nzcore/internal/primitives"
)

// KeyPair is a derived Ed25519 or X25519 pair, {private seed, public key},
// persisted as JSON base64 under env/keys/*.json.
type KeyPair struct {
	Private []byte `json:"private"`
	Public  []byte `json:"public"`
}

// IdentityKeyPair bundles the node's two deterministic key pairs.
type IdentityKeyPair struct {
	Identity KeyPair
	ECDH     KeyPair
}

const (
	identityKeyFile = "keys/identity.json"
	ecdhKeyFile     = "keys/ecdh.json"
)

// LoadIdentity decrypts the seed and derives the identity/ECDH key pair
// deterministically: identity_seed = HKDF(seed, "nzcore:key:identity", 32);
// ecdh_seed = HKDF(seed, "nzcore:key:ecdh", 32). If a disk cache under
// env/keys/ already exists, it is trusted and returned without re-deriving.
func LoadIdentity(envDir string, masterKey []byte) (*IdentityKeyPair, error) {
	if cached, ok, err := loadCachedIdentity(envDir); err != nil {
		return nil, err
	} else if ok {
		return cached, nil
	}

	mnemonic, err := LoadSeed(envDir, masterKey)
	if err != nil {
		return nil, err
	}
	defer keymaterial.WipeBytes(mnemonic)

	seed, err := keymaterial.SeedFromMnemonic(string(mnemonic))
	if err != nil {
		return nil, err
	}
	defer keymaterial.WipeBytes(seed[:])

	kp, err := DeriveIdentityKeyPair(seed[:])
	if err != nil {
		return nil, err
	}
	if err := persistIdentityCache(envDir, kp); err != nil {
		return nil, err
	}
	return kp, nil
}

// DeriveIdentityKeyPair is the pure derivation step: same seed bytes always
// yield the same identity/ECDH pair.
func DeriveIdentityKeyPair(seed []byte) (*IdentityKeyPair, error) {
	identitySeed, err := keymaterial.DeriveKey(seed, keymaterial.LabelIdentity, 32)
	if err != nil {
		return nil, err
	}
	identityPub, err := primitives.PublicFromSeed(identitySeed)
	if err != nil {
		return nil, err
	}

	ecdhSeed, err := keymaterial.DeriveKey(seed, keymaterial.LabelECDH, 32)
	if err != nil {
		return nil, err
	}
	ecdhPub, err := primitives.X25519Basepoint(ecdhSeed)
	if err != nil {
		return nil, err
	}

	return &IdentityKeyPair{
		Identity: KeyPair{Private: identitySeed, Public: identityPub},
		ECDH:     KeyPair{Private: ecdhSeed, Public: ecdhPub},
	}, nil
}

// IdentityID renders a human-displayable identifier for a public key: an
// "nz1" prefix followed by base58(BLAKE2b-256(publicKey)).
func IdentityID(identityPublicKey []byte) string {
	h := blake2b.Sum256(identityPublicKey)
	return "nz1" + base58.Encode(h[:])
}

func loadCachedIdentity(envDir string) (*IdentityKeyPair, bool, error) {
	identity, ok, err := readKeyPairFile(filepath.Join(envDir, identityKeyFile))
	if err != nil || !ok {
		return nil, false, err
	}
	ecdh, ok, err := readKeyPairFile(filepath.Join(envDir, ecdhKeyFile))
	if err != nil || !ok {
		return nil, false, err
	}
	return &IdentityKeyPair{Identity: *identity, ECDH: *ecdh}, true, nil
}

func readKeyPairFile(path string) (*KeyPair, bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var kp KeyPair
	if err := json.Unmarshal(raw, &kp); err != nil {
		return nil, false, err
	}
	return &kp, true, nil
}

func persistIdentityCache(envDir string, kp *IdentityKeyPair) error {
	if err := os.MkdirAll(filepath.Join(envDir, "keys"), 0o700); err != nil {
		return err
	}
	if err := writeKeyPairFile(filepath.Join(envDir, identityKeyFile), kp.Identity); err != nil {
		return err
	}
	return writeKeyPairFile(filepath.Join(envDir, ecdhKeyFile), kp.ECDH)
}

func writeKeyPairFile(path string, kp KeyPair) error {
	raw, err := json.Marshal(kp)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}
