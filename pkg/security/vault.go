// Package security holds session-scoped personal access tokens encrypted
// at rest in memory.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fumiya-kume/reposcan/internal/types"
	"github.com/fumiya-kume/reposcan/pkg/clock"
	"github.com/fumiya-kume/reposcan/pkg/errors"
	"github.com/fumiya-kume/reposcan/pkg/logger"
)

// KeySize is the AES-256 key length in bytes
const KeySize = 32

const (
	saltBytes       = 16
	shortHashLength = 8
	genericTokenMin = 20
)

type formatRule struct {
	prefixes  []string
	minLength int
}

var formatRules = map[string]formatRule{
	types.PlatformGitHub: {
		prefixes:  []string{"ghp_", "gho_", "ghu_", "ghs_", "ghr_"},
		minLength: 40,
	},
	types.PlatformGitLab: {
		prefixes:  []string{"glpat-"},
		minLength: 20,
	},
	types.PlatformBitbucket: {
		minLength: 32,
	},
}

var creationURLs = map[string]string{
	types.PlatformGitHub:    "https://github.com/settings/tokens",
	types.PlatformGitLab:    "https://gitlab.com/-/profile/personal_access_tokens",
	types.PlatformBitbucket: "https://bitbucket.org/account/settings/app-passwords/",
}

const defaultCreationURL = "https://docs.git-scm.com/book/en/v2/Git-Tools-Credential-Storage"

// PATSummary describes a stored token without exposing it
type PATSummary struct {
	Platform  string     `json:"platform"`
	Username  string     `json:"username"`
	TokenHash string     `json:"token_hash"`
	CreatedAt time.Time  `json:"created_at"`
	LastUsed  *time.Time `json:"last_used"`
}

// Vault stores tokens encrypted with AES-256-GCM under a per-session key.
// Entries live until Clear or process exit.
type Vault struct {
	aead   cipher.AEAD
	pats   map[string]*types.PATInfo
	clock  clock.Clock
	mutex  sync.RWMutex
	logger logger.LoggerInterface
}

// NewVault creates a vault with a freshly generated session key
func NewVault(clk clock.Clock, log logger.LoggerInterface) (*Vault, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate session key: %w", err)
	}
	return NewVaultWithKey(key, clk, log)
}

// NewVaultWithKey creates a vault using an externally supplied key
func NewVaultWithKey(key []byte, clk clock.Clock, log logger.LoggerInterface) (*Vault, error) {
	if len(key) != KeySize {
		return nil, errors.InvalidInputError(fmt.Sprintf("session key must be %d bytes, got %d", KeySize, len(key)))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	if clk == nil {
		clk = clock.NewRealClock()
	}

	v := &Vault{
		aead:   aead,
		pats:   make(map[string]*types.PATInfo),
		clock:  clk,
		logger: logger.Component(log, "vault"),
	}
	v.logger.Debug("Vault initialized")
	return v, nil
}

// StorePAT encrypts token and returns the hash that retrieves it. The hash
// is salted, so storing the same token twice yields unrelated hashes.
func (v *Vault) StorePAT(platform, username, token, sessionID string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", errors.InvalidInputError("Token cannot be empty")
	}

	hash, err := tokenHash(token, sessionID)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	info := &types.PATInfo{
		Platform:       strings.ToLower(platform),
		Username:       username,
		TokenHash:      hash,
		EncryptedToken: v.aead.Seal(nil, nonce, []byte(token), []byte(hash)),
		Nonce:          nonce,
		CreatedAt:      v.clock.Now(),
	}

	v.mutex.Lock()
	v.pats[hash] = info
	v.mutex.Unlock()

	v.logger.Info("PAT stored for %s@%s (hash: %s...)", username, info.Platform, hash[:shortHashLength])
	return hash, nil
}

// RetrievePAT decrypts the token stored under hash and stamps its last use.
// Unknown hashes and decryption failures both report false.
func (v *Vault) RetrievePAT(hash string) (string, bool) {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	info, ok := v.pats[hash]
	if !ok {
		v.logger.Warn("PAT not found for hash: %s...", shortHash(hash))
		return "", false
	}

	plaintext, err := v.aead.Open(nil, info.Nonce, info.EncryptedToken, []byte(hash))
	if err != nil {
		v.logger.Error("%v", errors.DecryptionError(err))
		return "", false
	}

	now := v.clock.Now()
	info.LastUsed = &now

	v.logger.Info("PAT retrieved for %s@%s", info.Username, info.Platform)
	return string(plaintext), true
}

// Clear drops every stored token and reports how many were removed
func (v *Vault) Clear() int {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	count := len(v.pats)
	v.pats = make(map[string]*types.PATInfo)
	v.logger.Info("Cleared %d PATs from session", count)
	return count
}

// Len reports how many tokens are stored
func (v *Vault) Len() int {
	v.mutex.RLock()
	defer v.mutex.RUnlock()
	return len(v.pats)
}

// List summarizes stored tokens, oldest first, with truncated hashes
func (v *Vault) List() []PATSummary {
	v.mutex.RLock()
	defer v.mutex.RUnlock()

	summaries := make([]PATSummary, 0, len(v.pats))
	for _, info := range v.pats {
		summary := PATSummary{
			Platform:  info.Platform,
			Username:  info.Username,
			TokenHash: shortHash(info.TokenHash) + "...",
			CreatedAt: info.CreatedAt,
		}
		if info.LastUsed != nil {
			lastUsed := *info.LastUsed
			summary.LastUsed = &lastUsed
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
		}
		return summaries[i].TokenHash < summaries[j].TokenHash
	})
	return summaries
}

// ValidatePATFormat applies the platform's prefix and length rules. Unknown
// platforms need at least 20 alphanumeric characters.
func ValidatePATFormat(platform, token string) bool {
	rule, ok := formatRules[strings.ToLower(platform)]
	if !ok {
		return len(token) >= genericTokenMin && isAlphanumeric(token)
	}

	if len(token) < rule.minLength {
		return false
	}
	if len(rule.prefixes) == 0 {
		return true
	}
	for _, prefix := range rule.prefixes {
		if strings.HasPrefix(token, prefix) {
			return true
		}
	}
	return false
}

// PATCreationURL points at the page where a platform issues tokens
func PATCreationURL(platform string) string {
	if u, ok := creationURLs[strings.ToLower(platform)]; ok {
		return u
	}
	return defaultCreationURL
}

func tokenHash(token, sessionID string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	sum := sha256.Sum256([]byte(token + "_" + sessionID + "_" + hex.EncodeToString(salt)))
	return hex.EncodeToString(sum[:]), nil
}

func shortHash(hash string) string {
	if len(hash) > shortHashLength {
		return hash[:shortHashLength]
	}
	return hash
}

func isAlphanumeric(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return s != ""
}
