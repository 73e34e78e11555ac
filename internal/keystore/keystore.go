// Package keystore is the encrypted local key-value store. It holds the
// session token and the persisted user profile between runs.
package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/scrypt"
)

// Well-known keys.
const (
	KeyAccessToken = "access_token"
	KeyUserInfo    = "user_info"
)

// ErrBadPassphrase is returned when the store file cannot be decrypted.
var ErrBadPassphrase = errors.New("keystore: cannot decrypt store")

const saltSize = 16

// Store is a file-backed encrypted key-value store. It is safe for
// concurrent use.
type Store struct {
	mu     sync.RWMutex
	path   string
	key    []byte
	salt   []byte
	values map[string]string
}

// Open loads (or creates) the store at path, deriving the sealing key from
// the passphrase.
func Open(path, passphrase string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("keystore path is required")
	}
	if passphrase == "" {
		return nil, fmt.Errorf("keystore passphrase is required")
	}

	s := &Store{
		path:   path,
		values: make(map[string]string),
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, s.salt); err != nil {
			return nil, fmt.Errorf("generate salt: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("read keystore: %w", err)
	case len(raw) < saltSize:
		return nil, fmt.Errorf("keystore file corrupt")
	default:
		s.salt = raw[:saltSize]
	}

	s.key, err = deriveKey(passphrase, s.salt)
	if err != nil {
		return nil, err
	}

	if len(raw) > saltSize {
		plain, err := unseal(s.key, raw[saltSize:])
		if err != nil {
			return nil, ErrBadPassphrase
		}
		if err := json.Unmarshal(plain, &s.values); err != nil {
			return nil, fmt.Errorf("decode keystore: %w", err)
		}
	}

	return s, nil
}

// Get returns the value for key, if present.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores a value and persists the store.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return s.saveLocked()
}

// Delete removes a key and persists the store. Deleting a missing key is a
// no-op.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.saveLocked()
}

// Token satisfies the API client's token source: it yields the persisted
// access token, or "" when logged out.
func (s *Store) Token() string {
	v, _ := s.Get(KeyAccessToken)
	return v
}

func (s *Store) saveLocked() error {
	plain, err := json.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("encode keystore: %w", err)
	}
	sealed, err := seal(s.key, plain)
	if err != nil {
		return err
	}
	out := append(append([]byte{}, s.salt...), sealed...)
	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create keystore dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, out, 0600); err != nil {
		return fmt.Errorf("write keystore: %w", err)
	}
	return nil
}

func deriveKey(passphrase string, salt []byte) ([]byte, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, 1<<15, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

func seal(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func unseal(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, sealed, nil)
}
