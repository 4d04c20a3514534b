package export

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultExportTTL       = 24 * time.Hour
	DefaultCleanupInterval = time.Hour
)

// StartCleaner removes exports older than ttl every interval until ctx is done.
func (e *Exporter) StartCleaner(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	if ttl <= 0 {
		ttl = DefaultExportTTL
	}
	go e.cleanupLoop(ctx, interval, ttl)
}

func (e *Exporter) cleanupLoop(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.cleanupExpired(time.Now().Add(-ttl)); err != nil {
				log.Printf("cleanup exports error: %v", err)
			}
		}
	}
}

// cleanupExpired deletes exported PDFs last modified before cutoff and returns
// how many were removed.
func (e *Exporter) cleanupExpired(cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".pdf") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(e.dir, entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("remove export %s failed: %v", path, err)
			continue
		}
		removed++
	}
	return removed, nil
}
