// Package credentials handles decryption of the stored service account
// and its exchange for short-lived bearer tokens.
package credentials

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/scrypt"
	"golang.org/x/oauth2/google"
)

// Static errors for credential handling.
var (
	// ErrPassphraseRequired is returned when the decryption passphrase is empty.
	ErrPassphraseRequired = errors.New("credentials: passphrase is required")
	// ErrDecryptFailed is returned when the blob cannot be decrypted.
	ErrDecryptFailed = errors.New("credentials: decryption failed")
	// ErrMalformedCredentials is returned when the decrypted payload is not a valid service account.
	ErrMalformedCredentials = errors.New("credentials: malformed service account")
	// ErrNoToken is returned when the identity provider returns an empty token.
	ErrNoToken = errors.New("credentials: identity provider returned no token")
)

// Key derivation parameters. The salt is fixed: the blob itself is the
// secret at rest and the passphrase is supplied out of band.
const (
	scryptN   = 32768
	scryptR   = 8
	scryptP   = 1
	keyLen    = 32
	ivLen     = aes.BlockSize
	kdfSalt   = "showreel-credentials-v1"
	authScope = "https://www.googleapis.com/auth/cloud-platform"
)

// ServiceAccount is the decrypted credential payload.
type ServiceAccount struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`

	raw []byte
}

// Raw returns the decrypted JSON payload as given to Decrypt.
func (sa *ServiceAccount) Raw() []byte {
	return sa.raw
}

// Decrypt decodes and decrypts a base64 credential blob. The first 16
// bytes of the decoded blob are the CBC IV; the remainder is the
// ciphertext of a JSON service account. The AES-256 key is derived from
// the passphrase with scrypt.
func Decrypt(blobB64, passphrase string) (*ServiceAccount, error) {
	if passphrase == "" {
		return nil, ErrPassphraseRequired
	}

	blob, err := base64.StdEncoding.DecodeString(blobB64)
	if err != nil {
		return nil, fmt.Errorf("%w: decode blob: %w", ErrDecryptFailed, err)
	}
	if len(blob) < ivLen+aes.BlockSize || len(blob[ivLen:])%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: blob too short or misaligned", ErrDecryptFailed)
	}

	key, err := scrypt.Key([]byte(passphrase), []byte(kdfSalt), scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return nil, fmt.Errorf("%w: derive key: %w", ErrDecryptFailed, err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptFailed, err)
	}

	iv, ciphertext := blob[:ivLen], blob[ivLen:]
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	plaintext, err = unpadPKCS7(plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptFailed, err)
	}

	var sa ServiceAccount
	if err := json.Unmarshal(plaintext, &sa); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedCredentials, err)
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return nil, ErrMalformedCredentials
	}
	sa.raw = plaintext

	return &sa, nil
}

// unpadPKCS7 strips PKCS#7 padding from a decrypted block.
func unpadPKCS7(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, errors.New("empty plaintext")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, errors.New("invalid padding")
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return b[:len(b)-n], nil
}

// TokenProvider exchanges a service account for short-lived bearer tokens.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// GoogleTokenProvider obtains bearer tokens via the Google OAuth2 JWT flow.
type GoogleTokenProvider struct {
	sa *ServiceAccount
}

// NewGoogleTokenProvider creates a token provider for the given service account.
func NewGoogleTokenProvider(sa *ServiceAccount) *GoogleTokenProvider {
	return &GoogleTokenProvider{sa: sa}
}

// AccessToken exchanges the service account for a bearer token.
// Tokens are short-lived; callers should fetch one per pipeline run.
func (p *GoogleTokenProvider) AccessToken(ctx context.Context) (string, error) {
	conf, err := google.JWTConfigFromJSON(p.sa.Raw(), authScope)
	if err != nil {
		return "", fmt.Errorf("credentials: build JWT config: %w", err)
	}

	tok, err := conf.TokenSource(ctx).Token()
	if err != nil {
		return "", fmt.Errorf("credentials: token exchange: %w", err)
	}
	if tok == nil || tok.AccessToken == "" {
		return "", ErrNoToken
	}

	return tok.AccessToken, nil
}

// Compile-time check that GoogleTokenProvider implements TokenProvider.
var _ TokenProvider = (*GoogleTokenProvider)(nil)
