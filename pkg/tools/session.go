package tools

import (
	"strings"

	"github.com/google/uuid"

	"github.com/fumiya-kume/reposcan/internal/types"
)

// Session is the typed state a caller threads through successive tool
// calls. Tools read defaults from it and record what they produced.
// A Session is not safe for concurrent use.
type Session struct {
	ID      string
	RepoURL string
	// PRLink is a pull or merge request web URL; its number is used when a
	// PR tool call omits one.
	PRLink     string
	LocalPath  string
	Repository *types.RepositoryInfo
	Profile    *types.ProjectLanguageProfile

	// patHashes maps a platform to the vault hash of its stored token
	patHashes map[string]string
}

// NewSession creates a session. An empty id is replaced by a random UUID.
func NewSession(id string) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	return &Session{
		ID:        id,
		patHashes: make(map[string]string),
	}
}

// PATHash returns the vault hash stored for platform
func (s *Session) PATHash(platform string) (string, bool) {
	hash, ok := s.patHashes[strings.ToLower(platform)]
	return hash, ok
}

func (s *Session) rememberPAT(platform, hash string) {
	if s.patHashes == nil {
		s.patHashes = make(map[string]string)
	}
	s.patHashes[strings.ToLower(strings.TrimSpace(platform))] = hash
}

func (s *Session) setRepository(repoURL string, info *types.RepositoryInfo) {
	s.Repository = info
	s.LocalPath = info.LocalPath
	s.RepoURL = repoURL
	s.Profile = nil
}

func (s *Session) setProfile(path string, profile *types.ProjectLanguageProfile) {
	if s.LocalPath == "" {
		s.LocalPath = path
	}
	if path == s.LocalPath {
		s.Profile = profile
	}
}

func (s *Session) forget(path string) {
	if path != s.LocalPath {
		return
	}
	s.LocalPath = ""
	s.Repository = nil
	s.Profile = nil
}
