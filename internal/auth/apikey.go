// Package auth provides API key generation, hashing and verification for the
// Reconnoiter API server. Keys are never stored in clear: the configuration
// holds bcrypt hashes and the server compares presented keys against them.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// API key generation and validation constants
const (
	// APIKeyLength is the length of the random part of an API key
	APIKeyLength = 32
	// APIKeyPrefix is the standard prefix for all API keys
	APIKeyPrefix = "rk"
	// DisplayPrefixLength is the length of prefix shown in logs (e.g., "rk_abcdefgh...")
	DisplayPrefixLength = 14

	// BcryptCost is the bcrypt cost for hashing API keys
	BcryptCost = 12
	// BcryptMaxInputLength is the maximum input length for bcrypt (72 bytes)
	BcryptMaxInputLength = 72

	// MaxAPIKeyNameLength is the maximum length for API key names
	MaxAPIKeyNameLength = 255
)

// Key is a named, hashed API key as it appears in configuration.
type Key struct {
	Name string
	Hash string
}

// GeneratedAPIKey contains a newly generated API key and its hash
type GeneratedAPIKey struct {
	Name      string `json:"name"`
	Key       string `json:"key"`        // The actual API key (only shown once)
	Hash      string `json:"hash"`       // What goes in the config file
	KeyPrefix string `json:"key_prefix"` // Display-safe prefix
}

// GenerateAPIKey creates a new random API key with the specified name and
// hashes it.
func GenerateAPIKey(name string) (*GeneratedAPIKey, error) {
	if err := validateKeyName(name); err != nil {
		return nil, fmt.Errorf("invalid key name: %w", err)
	}

	randomBytes := make([]byte, APIKeyLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random key: %w", err)
	}

	// base32 avoids ambiguous characters
	randomPart := strings.ToLower(base32.StdEncoding.EncodeToString(randomBytes))
	randomPart = randomPart[:APIKeyLength]

	fullKey := APIKeyPrefix + "_" + randomPart
	hash, err := HashAPIKey(fullKey)
	if err != nil {
		return nil, err
	}

	return &GeneratedAPIKey{
		Name:      name,
		Key:       fullKey,
		Hash:      hash,
		KeyPrefix: CreateDisplayPrefix(fullKey),
	}, nil
}

// prepare applies the pre-hash bcrypt needs for inputs over 72 bytes.
func prepare(apiKey string) []byte {
	keyBytes := []byte(apiKey)
	if len(keyBytes) > BcryptMaxInputLength {
		sum := sha256.Sum256(keyBytes)
		keyBytes = sum[:]
	}
	return keyBytes
}

// HashAPIKey creates a bcrypt hash of an API key for secure storage
func HashAPIKey(apiKey string) (string, error) {
	if apiKey == "" {
		return "", fmt.Errorf("API key cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword(prepare(apiKey), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash API key: %w", err)
	}
	return string(hash), nil
}

// ValidateAPIKey checks if a provided API key matches the stored hash
func ValidateAPIKey(apiKey, storedHash string) bool {
	if apiKey == "" || storedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), prepare(apiKey)) == nil
}

// IsValidAPIKeyFormat checks if an API key has the correct format
func IsValidAPIKeyFormat(apiKey string) bool {
	if !strings.HasPrefix(apiKey, APIKeyPrefix+"_") {
		return false
	}
	if len(apiKey) < 15 || len(apiKey) > 50 {
		return false
	}
	for _, char := range apiKey {
		if (char < 'a' || char > 'z') &&
			(char < 'A' || char > 'Z') &&
			(char < '0' || char > '9') &&
			char != '_' {
			return false
		}
	}
	return true
}

// CreateDisplayPrefix creates a safe-to-display prefix from a full API key
func CreateDisplayPrefix(apiKey string) string {
	if !IsValidAPIKeyFormat(apiKey) {
		return "invalid_key"
	}
	if len(apiKey) > DisplayPrefixLength-3 {
		return apiKey[:DisplayPrefixLength-3] + "..."
	}
	return apiKey + "..."
}

// Keyring verifies presented keys against a fixed set of hashes. Successful
// verifications are remembered by SHA-256 digest so each key pays the bcrypt
// cost once per process.
type Keyring struct {
	keys     []Key
	verified sync.Map // [sha256.Size]byte -> key name
}

// NewKeyring creates a keyring over keys.
func NewKeyring(keys []Key) *Keyring {
	return &Keyring{keys: keys}
}

// Len returns the number of configured keys.
func (k *Keyring) Len() int {
	return len(k.keys)
}

// Authenticate returns the name of the key matching apiKey.
func (k *Keyring) Authenticate(apiKey string) (string, bool) {
	if !IsValidAPIKeyFormat(apiKey) {
		return "", false
	}

	digest := sha256.Sum256([]byte(apiKey))
	if name, ok := k.verified.Load(digest); ok {
		return name.(string), true
	}

	for _, key := range k.keys {
		if ValidateAPIKey(apiKey, key.Hash) {
			k.verified.Store(digest, key.Name)
			return key.Name, true
		}
	}
	return "", false
}

// validateKeyName validates the API key name
func validateKeyName(name string) error {
	if name == "" {
		return fmt.Errorf("key name cannot be empty")
	}
	if len(name) > MaxAPIKeyNameLength {
		return fmt.Errorf("key name must be at most %d characters", MaxAPIKeyNameLength)
	}

	for _, char := range name {
		// ASCII and C1 controls, bidi overrides and isolates
		if char < 32 || char == 127 ||
			(char >= 0x0080 && char <= 0x009F) ||
			(char >= 0x202A && char <= 0x202E) ||
			(char >= 0x2066 && char <= 0x2069) {
			return fmt.Errorf("key name contains invalid characters")
		}
	}
	return nil
}
