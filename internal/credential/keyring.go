// Package credential keeps secrets (mail passwords, the storage signing
// key) in the system keyring.
package credential

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "epikomhub"

// Keys of the secrets the hub stores.
const (
	KeySMTPPassword = "smtp-password"
	KeyIMAPPassword = "imap-password"
	KeySigningKey   = "storage-signing-key"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = keyring.ErrKeyNotFound

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/epikomhub/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("epikomhub-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Vault reads and writes secrets in one keyring.
type Vault struct {
	ring keyring.Keyring
}

// Open returns a Vault over the system keyring.
func Open() (*Vault, error) {
	ring, err := openKeyring()
	if err != nil {
		return nil, err
	}
	return &Vault{ring: ring}, nil
}

// NewVault wraps ring, e.g. a keyring.NewArrayKeyring in tests.
func NewVault(ring keyring.Keyring) *Vault {
	return &Vault{ring: ring}
}

// Get retrieves a credential value by key.
func (v *Vault) Get(key string) (string, error) {
	item, err := v.ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Lookup is Get with a missing key reported as "".
func (v *Vault) Lookup(key string) (string, error) {
	val, err := v.Get(key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return val, err
}

// Set stores a credential value by key.
func (v *Vault) Set(key, value string) error {
	err := v.ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes a credential by key.
func (v *Vault) Delete(key string) error {
	if err := v.ring.Remove(key); err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}

// SigningKey returns the storage signing key, generating and storing a
// random 32-byte key on first use.
func (v *Vault) SigningKey() ([]byte, error) {
	val, err := v.Get(KeySigningKey)
	if err == nil {
		key, decErr := hex.DecodeString(val)
		if decErr != nil {
			return nil, fmt.Errorf("decoding signing key: %w", decErr)
		}
		return key, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating signing key: %w", err)
	}
	if err := v.Set(KeySigningKey, hex.EncodeToString(key)); err != nil {
		return nil, err
	}
	return key, nil
}
