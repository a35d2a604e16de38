// Package cache keeps downloaded lyric files on disk so a replayed song does
// not have to fetch them again.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultExpiry is how long cached lyrics are valid (7 days).
	DefaultExpiry = 7 * 24 * time.Hour
	// LyricSubdir is the subdirectory for cached lyric files.
	LyricSubdir = "lyrics"
	// AppName is used for the cache directory name.
	AppName = "voxradio"

	lyricExt = ".lrc"
)

// Cache manages disk-based caching of lyric text keyed by source URL.
type Cache struct {
	baseDir string
	expiry  time.Duration
}

// NewCache creates a new Cache instance with the default expiry.
func NewCache() (*Cache, error) {
	cacheDir, err := GetCacheDir()
	if err != nil {
		return nil, err
	}

	return &Cache{
		baseDir: cacheDir,
		expiry:  DefaultExpiry,
	}, nil
}

// NewCacheAt creates a Cache rooted at dir.
func NewCacheAt(dir string, expiry time.Duration) *Cache {
	return &Cache{baseDir: dir, expiry: expiry}
}

// GetCacheDir returns the platform-specific cache directory for the application.
func GetCacheDir() (string, error) {
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user cache directory: %w", err)
	}

	return filepath.Join(userCacheDir, AppName), nil
}

func hashURL(url string) string {
	hash := md5.Sum([]byte(url))
	return hex.EncodeToString(hash[:])
}

func (c *Cache) path(url string) string {
	return filepath.Join(c.baseDir, LyricSubdir, hashURL(url)+lyricExt)
}

// Get returns the cached body for url. Expired entries are removed and
// reported as missing.
func (c *Cache) Get(url string) (string, bool) {
	lyricPath := c.path(url)

	info, err := os.Stat(lyricPath)
	if err != nil {
		return "", false
	}

	if time.Since(info.ModTime()) > c.expiry {
		if err := os.Remove(lyricPath); err != nil {
			log.Debug().Err(err).Str("file", lyricPath).Msg("Failed to remove expired cache file")
		}
		return "", false
	}

	data, err := os.ReadFile(lyricPath)
	if err != nil {
		log.Debug().Err(err).Str("file", lyricPath).Msg("Failed to read cached lyrics")
		return "", false
	}

	return string(data), true
}

// Save stores body under url. The write goes through a temp file so a
// concurrent Get never sees a partial entry.
func (c *Cache) Save(url, body string) error {
	lyricDir := filepath.Join(c.baseDir, LyricSubdir)
	if err := os.MkdirAll(lyricDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	lyricPath := c.path(url)
	tmpPath := lyricPath + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(body), 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmpPath, lyricPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save cache file: %w", err)
	}

	return nil
}

// CleanExpired removes cache files older than the expiry duration.
func (c *Cache) CleanExpired() error {
	lyricDir := filepath.Join(c.baseDir, LyricSubdir)

	entries, err := os.ReadDir(lyricDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read cache directory: %w", err)
	}

	now := time.Now()
	var removed, failed int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			log.Debug().Err(err).Str("file", entry.Name()).Msg("Failed to get file info")
			continue
		}

		if now.Sub(info.ModTime()) > c.expiry {
			filePath := filepath.Join(lyricDir, entry.Name())
			if err := os.Remove(filePath); err != nil {
				log.Debug().Err(err).Str("file", filePath).Msg("Failed to remove expired cache file")
				failed++
			} else {
				removed++
			}
		}
	}

	if removed > 0 || failed > 0 {
		log.Debug().Int("removed", removed).Int("failed", failed).Msg("Cache cleanup completed")
	}

	return nil
}
