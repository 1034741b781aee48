// Package vault generates the deployment's metadata-protection key and
// seals it into its own encrypted container, independent of the trust chain.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/pbkdf2"

	"github.com/trustforge/trustforge/internal/format"
	"github.com/trustforge/trustforge/internal/x509util"
)

// KeyAlias is the fixed alias the symmetric key is stored under.
const KeyAlias = "metadata-key"

const (
	saltLen    = 16
	kdfRounds  = 210000
	sealKeyLen = 32
)

// sealedBox is one password-sealed payload: PBKDF2-derived AES-256-GCM.
type sealedBox struct {
	Salt       []byte `cbor:"1,keyasint"`
	Nonce      []byte `cbor:"2,keyasint"`
	Ciphertext []byte `cbor:"3,keyasint"`
}

// container is the on-disk vault layout. The key is sealed twice: the inner
// box with the key password, the outer with the store password, mirroring
// the store/entry password split of a Java secret-key store.
type container struct {
	StoreType format.StoreType    `cbor:"1,keyasint"`
	Algorithm format.KeyAlgorithm `cbor:"2,keyasint"`
	Alias     string              `cbor:"3,keyasint"`
	Outer     sealedBox           `cbor:"4,keyasint"`
}

// Vault holds the generated symmetric key until it is sealed to disk.
type Vault struct {
	StoreType format.StoreType
	Algorithm format.KeyAlgorithm
	key       []byte
}

// Generate creates one symmetric secret key per the profile's algorithm:
// DESede (24 bytes) under classic, AES-256 (32 bytes) under current.
func Generate(profile *format.Profile) (*Vault, error) {
	length := profile.SecretsKeyAlgorithm.KeyLength()
	if length == 0 {
		return nil, fmt.Errorf("unknown secrets key algorithm: %s", profile.SecretsKeyAlgorithm)
	}

	key := make([]byte, length)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate secret key: %w", err)
	}

	return &Vault{
		StoreType: profile.SecretsStoreType,
		Algorithm: profile.SecretsKeyAlgorithm,
		key:       key,
	}, nil
}

// Seal writes the encrypted container to path and wipes the key from
// memory. The key is wiped on error paths as well.
func (v *Vault) Seal(path, storePassword, keyPassword string) error {
	defer v.Discard()

	inner, err := seal(v.key, keyPassword)
	if err != nil {
		return fmt.Errorf("failed to seal secret key: %w", err)
	}

	innerBytes, err := cbor.Marshal(inner)
	if err != nil {
		return fmt.Errorf("failed to encode inner box: %w", err)
	}

	outer, err := seal(innerBytes, storePassword)
	if err != nil {
		return fmt.Errorf("failed to seal container: %w", err)
	}

	blob, err := cbor.Marshal(container{
		StoreType: v.StoreType,
		Algorithm: v.Algorithm,
		Alias:     KeyAlias,
		Outer:     outer,
	})
	if err != nil {
		return fmt.Errorf("failed to encode container: %w", err)
	}

	if err := os.WriteFile(path, blob, 0600); err != nil {
		return fmt.Errorf("failed to write vault %s: %w", path, err)
	}
	return nil
}

// Discard wipes the key material.
func (v *Vault) Discard() {
	x509util.Wipe(v.key)
	v.key = nil
}

// Open reads a sealed container back. Used by inspection and tests.
func Open(path, storePassword, keyPassword string) (format.KeyAlgorithm, []byte, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read vault: %w", err)
	}

	var c container
	if err := cbor.Unmarshal(blob, &c); err != nil {
		return "", nil, fmt.Errorf("failed to decode container: %w", err)
	}

	innerBytes, err := open(c.Outer, storePassword)
	if err != nil {
		return "", nil, fmt.Errorf("failed to open container: %w", err)
	}

	var inner sealedBox
	if err := cbor.Unmarshal(innerBytes, &inner); err != nil {
		return "", nil, fmt.Errorf("failed to decode inner box: %w", err)
	}

	key, err := open(inner, keyPassword)
	if err != nil {
		return "", nil, fmt.Errorf("failed to open secret key: %w", err)
	}

	return c.Algorithm, key, nil
}

func seal(plaintext []byte, password string) (sealedBox, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return sealedBox{}, err
	}

	kek := pbkdf2.Key([]byte(password), salt, kdfRounds, sealKeyLen, sha256.New)
	defer x509util.Wipe(kek)

	aead, err := newGCM(kek)
	if err != nil {
		return sealedBox{}, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return sealedBox{}, err
	}

	return sealedBox{
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, nil),
	}, nil
}

func open(box sealedBox, password string) ([]byte, error) {
	kek := pbkdf2.Key([]byte(password), box.Salt, kdfRounds, sealKeyLen, sha256.New)
	defer x509util.Wipe(kek)

	aead, err := newGCM(kek)
	if err != nil {
		return nil, err
	}

	return aead.Open(nil, box.Nonce, box.Ciphertext, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
