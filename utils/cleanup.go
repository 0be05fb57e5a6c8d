package utils

import (
	"os"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"github.com/bonaken/board/models"
)

// orphanGracePeriod keeps freshly written files alive while the post create
// that owns them is still in flight.
const orphanGracePeriod = time.Hour

// StartScreenshotSweeper launches a background goroutine that periodically
// removes upload files no post references anymore, e.g. after a crash between
// writing the file and committing the post. Best-effort; failures are logged.
func StartScreenshotSweeper(db *gorm.DB, uploadsDir string, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		for {
			// Sleep first to avoid racing immediately at startup
			time.Sleep(interval)
			sweepOrphanedScreenshots(db, uploadsDir)
		}
	}()
}

func sweepOrphanedScreenshots(db *gorm.DB, uploadsDir string) {
	entries, err := os.ReadDir(uploadsDir)
	if err != nil {
		if !os.IsNotExist(err) && Sugar != nil {
			Sugar.Warnf("screenshot sweeper: read uploads dir: %v", err)
		}
		return
	}

	var names []string
	if err := db.Model(&models.Post{}).Where("screenshot IS NOT NULL").
		Pluck("screenshot", &names).Error; err != nil {
		if Sugar != nil {
			Sugar.Warnf("screenshot sweeper: list referenced screenshots: %v", err)
		}
		return
	}
	referenced := make(map[string]struct{}, len(names))
	for _, name := range names {
		referenced[name] = struct{}{}
	}

	cutoff := time.Now().Add(-orphanGracePeriod)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := referenced[entry.Name()]; ok {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(uploadsDir, entry.Name())); err != nil {
			if Sugar != nil {
				Sugar.Warnf("screenshot sweeper: remove %s: %v", entry.Name(), err)
			}
		} else if Sugar != nil {
			Sugar.Infof("screenshot sweeper: removed orphaned upload %s", entry.Name())
		}
	}
}
