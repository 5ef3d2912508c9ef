package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/2beens/runcoach/internal/apperror"
	"github.com/2beens/runcoach/internal/config"
)

const (
	NonceSize  = 12
	TagSize    = 16
	HeaderSize = NonceSize + TagSize
	KeySize    = 32
)

// ErrCorrupted is returned for blobs that are too short or fail authentication.
var ErrCorrupted = errors.New("credential corrupted, user must reconnect")

// Vault seals credential payloads with AES-256-GCM.
// Blob layout: nonce(12) || tag(16) || ciphertext.
type Vault struct {
	aead  cipher.AEAD
	nonce io.Reader
}

func NewFromHex(hexKey string) (*Vault, error) {
	if err := config.ValidateEncryptionKey(hexKey); err != nil {
		return nil, err
	}
	key, _ := hex.DecodeString(hexKey)
	return New(key)
}

func New(key []byte) (*Vault, error) {
	if len(key) != KeySize {
		return nil, apperror.Configuration(fmt.Sprintf("encryption key must be %d bytes", KeySize), nil)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, apperror.Configuration("create cipher", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperror.Configuration("create gcm", err)
	}
	return &Vault{
		aead:  aead,
		nonce: rand.Reader,
	}, nil
}

func (v *Vault) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(v.nonce, nonce); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}

	// gcm appends the tag after the ciphertext
	sealed := v.aead.Seal(nil, nonce, plaintext, nil)
	ctLen := len(sealed) - TagSize

	blob := make([]byte, 0, HeaderSize+ctLen)
	blob = append(blob, nonce...)
	blob = append(blob, sealed[ctLen:]...)
	blob = append(blob, sealed[:ctLen]...)
	return blob, nil
}

func (v *Vault) Decrypt(blob []byte) ([]byte, error) {
	if len(blob) < HeaderSize {
		return nil, ErrCorrupted
	}
	nonce := blob[:NonceSize]
	tag := blob[NonceSize:HeaderSize]
	ciphertext := blob[HeaderSize:]

	sealed := make([]byte, 0, len(ciphertext)+TagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrCorrupted
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}

const ProviderGarmin = "garmin"

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CredentialPayload only ever exists inside a sealed blob.
type CredentialPayload struct {
	Provider     string          `json:"provider"`
	ConnectedAt  time.Time       `json:"connectedAt"`
	Credentials  Credentials     `json:"credentials"`
	SessionData  json.RawMessage `json:"sessionData,omitempty"`
	Capabilities []string        `json:"capabilities"`
}

func (v *Vault) SealPayload(payload CredentialPayload) ([]byte, error) {
	if payload.Provider == "" {
		payload.Provider = ProviderGarmin
	}
	if payload.Capabilities == nil {
		payload.Capabilities = []string{}
	}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal credential payload: %w", err)
	}
	return v.Encrypt(plaintext)
}

func (v *Vault) OpenPayload(blob []byte) (*CredentialPayload, error) {
	plaintext, err := v.Decrypt(blob)
	if err != nil {
		return nil, err
	}
	payload := &CredentialPayload{}
	if err := json.Unmarshal(plaintext, payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupted, err)
	}
	return payload, nil
}
