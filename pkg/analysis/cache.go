package analysis

import (
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/fumiya-kume/reposcan/internal/types"
	"github.com/fumiya-kume/reposcan/pkg/clock"
)

// DefaultProfileCacheExpiration bounds how long a profile is reused
const DefaultProfileCacheExpiration = 10 * time.Minute

const defaultMaxCacheEntries = 50

// treeFingerprint summarises a tree cheaply enough to detect edits
type treeFingerprint struct {
	fileCount    int
	totalSize    int64
	lastModified time.Time
}

type profileEntry struct {
	profile     *types.ProjectLanguageProfile
	fingerprint treeFingerprint
	storedAt    time.Time
	expiresAt   time.Time
}

// ProfileCache keeps language profiles in memory keyed by absolute path.
// An entry is served only while it is unexpired and the tree fingerprint
// still matches.
type ProfileCache struct {
	clock      clock.Clock
	expiration time.Duration
	maxEntries int
	entries    map[string]*profileEntry
	mutex      sync.RWMutex
}

// ProfileCacheStats reports cache occupancy
type ProfileCacheStats struct {
	Entries     int
	OldestEntry time.Time
	NewestEntry time.Time
}

// NewProfileCache creates a profile cache. A nil clock uses the wall clock.
func NewProfileCache(expiration time.Duration, clk clock.Clock) *ProfileCache {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	if expiration <= 0 {
		expiration = DefaultProfileCacheExpiration
	}
	return &ProfileCache{
		clock:      clk,
		expiration: expiration,
		maxEntries: defaultMaxCacheEntries,
		entries:    make(map[string]*profileEntry),
	}
}

func cacheKey(projectPath string) string {
	if abs, err := filepath.Abs(projectPath); err == nil {
		return abs
	}
	return filepath.Clean(projectPath)
}

// Get returns a copy of the cached profile when it is still valid
func (pc *ProfileCache) Get(projectPath string) (*types.ProjectLanguageProfile, bool) {
	key := cacheKey(projectPath)

	pc.mutex.RLock()
	entry, exists := pc.entries[key]
	pc.mutex.RUnlock()
	if !exists {
		return nil, false
	}

	if pc.clock.Now().After(entry.expiresAt) || fingerprintTree(key) != entry.fingerprint {
		pc.Invalidate(projectPath)
		return nil, false
	}

	return cloneProfile(entry.profile), true
}

// Set stores profile for projectPath, evicting the oldest entry when full
func (pc *ProfileCache) Set(projectPath string, profile *types.ProjectLanguageProfile) {
	if profile == nil {
		return
	}
	key := cacheKey(projectPath)
	fingerprint := fingerprintTree(key)
	now := pc.clock.Now()

	stored := cloneProfile(profile)

	pc.mutex.Lock()
	defer pc.mutex.Unlock()

	pc.entries[key] = &profileEntry{
		profile:     stored,
		fingerprint: fingerprint,
		storedAt:    now,
		expiresAt:   now.Add(pc.expiration),
	}
	pc.evictOldest()
}

// Invalidate removes the entry for projectPath
func (pc *ProfileCache) Invalidate(projectPath string) {
	key := cacheKey(projectPath)

	pc.mutex.Lock()
	defer pc.mutex.Unlock()
	delete(pc.entries, key)
}

// Clear removes all entries
func (pc *ProfileCache) Clear() {
	pc.mutex.Lock()
	defer pc.mutex.Unlock()
	pc.entries = make(map[string]*profileEntry)
}

// Stats returns the current occupancy
func (pc *ProfileCache) Stats() ProfileCacheStats {
	pc.mutex.RLock()
	defer pc.mutex.RUnlock()

	stats := ProfileCacheStats{Entries: len(pc.entries)}
	for _, entry := range pc.entries {
		if stats.OldestEntry.IsZero() || entry.storedAt.Before(stats.OldestEntry) {
			stats.OldestEntry = entry.storedAt
		}
		if entry.storedAt.After(stats.NewestEntry) {
			stats.NewestEntry = entry.storedAt
		}
	}
	return stats
}

// evictOldest must be called with the write lock held
func (pc *ProfileCache) evictOldest() {
	for len(pc.entries) > pc.maxEntries {
		var oldestKey string
		var oldest time.Time
		for key, entry := range pc.entries {
			if oldestKey == "" || entry.storedAt.Before(oldest) {
				oldestKey = key
				oldest = entry.storedAt
			}
		}
		delete(pc.entries, oldestKey)
	}
}

func cloneProfile(p *types.ProjectLanguageProfile) *types.ProjectLanguageProfile {
	c := *p
	c.Languages = append([]types.LanguageInfo(nil), p.Languages...)
	for i := range c.Languages {
		if fw := c.Languages[i].Framework; fw != nil {
			name := *fw
			c.Languages[i].Framework = &name
		}
	}
	c.Frameworks = append([]string(nil), p.Frameworks...)
	c.BuildTools = append([]string(nil), p.BuildTools...)
	c.PackageManagers = append([]string(nil), p.PackageManagers...)
	return &c
}

// fingerprintTree covers everything the config-file walk can see, so only
// .git is skipped. Hidden and vendored directories still feed build tools.
func fingerprintTree(root string) treeFingerprint {
	var fp treeFingerprint

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error { //nolint:errcheck // unreadable entries only change the fingerprint
		if err != nil {
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		fp.fileCount++
		fp.totalSize += info.Size()
		if info.ModTime().After(fp.lastModified) {
			fp.lastModified = info.ModTime()
		}
		return nil
	})

	return fp
}
