// SPDX-License-Identifier: GPL-2.0-or-later

package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"depthrec/pkg/log"

	psdisk "github.com/shirou/gopsutil/v3/disk"
)

// Manager storage manager.
type Manager struct {
	storageDir   string
	maxUsage     int // Percent.
	storageDirFS fs.FS
	disk         *disk
	removeFile   func(string) error

	logger *log.Logger
}

// NewManager returns new manager. maxUsage is the disk usage percent
// above which purge deletes the oldest session.
func NewManager(storageDir string, maxUsage int, logger *log.Logger) *Manager {
	storageDirFS := os.DirFS(storageDir)
	return &Manager{
		storageDir:   storageDir,
		maxUsage:     maxUsage,
		storageDirFS: storageDirFS,
		disk:         newDisk(storageDir, storageDirFS),
		removeFile:   os.Remove,

		logger: logger,
	}
}

// SessionsDir returns the path to the recorded sessions directory.
func (s *Manager) SessionsDir() string {
	return filepath.Join(s.storageDir, "sessions")
}

// LogDBPath returns the path to the log database.
func (s *Manager) LogDBPath() string {
	return filepath.Join(s.storageDir, "logs.db")
}

// DiskUsageCached returns the cached value and its age.
func (s *Manager) DiskUsageCached() (DiskUsage, time.Duration) {
	return s.disk.usageCached()
}

// DiskUsage returns the cached value if within maxAge,
// otherwise it is recalculated first.
func (s *Manager) DiskUsage(maxAge time.Duration) (DiskUsage, error) {
	return s.disk.usage(maxAge)
}

// purge deletes the oldest session while disk usage is above the
// configured limit.
func (s *Manager) purge() error {
	usage, err := s.DiskUsage(10 * time.Minute)
	if err != nil {
		return fmt.Errorf("update disk usage: %w", err)
	}
	if usage.Percent < s.maxUsage {
		return nil
	}

	sessions, err := ListSessions(s.SessionsDir())
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(sessions) == 0 {
		return nil
	}

	oldest := sessions[len(sessions)-1]
	if err := s.removeFile(oldest.Path); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	// Sidecar may not exist.
	s.removeFile(oldest.SidecarPath()) //nolint:errcheck

	s.logger.Info().
		Src("storage").
		Session(oldest.ID).
		Msgf("purged oldest session, disk usage %v%%", usage.Percent)

	return nil
}

// PurgeLoop runs purge on an interval until context is canceled.
func (s *Manager) PurgeLoop(ctx context.Context, duration time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(duration):
			if err := s.purge(); err != nil {
				s.logger.Error().
					Src("storage").
					Msgf("could not purge storage: %v", err)
			}
		}
	}
}

// Only used to calculate and cache disk usage.
type disk struct {
	storageDir     string
	storageDirFS   fs.FS
	diskUsageBytes func(fs.FS) int64
	capacityBytes  func(string) (int64, error)

	cache      DiskUsage
	lastUpdate time.Time
	cacheLock  sync.Mutex

	updateLock sync.Mutex
}

func newDisk(storageDir string, storageDirFS fs.FS) *disk {
	return &disk{
		storageDir:     storageDir,
		storageDirFS:   storageDirFS,
		diskUsageBytes: diskUsageBytes,
		capacityBytes:  partitionCapacity,
	}
}

func (d *disk) usageCached() (DiskUsage, time.Duration) {
	d.cacheLock.Lock()
	defer d.cacheLock.Unlock()

	return d.cache, time.Since(d.lastUpdate)
}

func (d *disk) usage(maxAge time.Duration) (DiskUsage, error) {
	maxTime := time.Now().Add(-maxAge)

	d.cacheLock.Lock()
	if d.lastUpdate.After(maxTime) {
		defer d.cacheLock.Unlock()
		return d.cache, nil
	}
	d.cacheLock.Unlock()

	// Cache is too old, acquire update lock and update it.
	d.updateLock.Lock()
	defer d.updateLock.Unlock()

	// Check if it was updated while we were waiting for the update lock.
	d.cacheLock.Lock()
	if d.lastUpdate.After(maxTime) {
		defer d.cacheLock.Unlock()
		return d.cache, nil
	}
	// Still outdated.
	d.cacheLock.Unlock()

	updatedUsage, err := d.calculateDiskUsage()
	if err != nil {
		return DiskUsage{}, err
	}

	d.cacheLock.Lock()
	d.cache = updatedUsage
	d.lastUpdate = time.Now()
	d.cacheLock.Unlock()

	return updatedUsage, nil
}

func (d *disk) calculateDiskUsage() (DiskUsage, error) {
	used := d.diskUsageBytes(d.storageDirFS)

	capacity, err := d.capacityBytes(d.storageDir)
	if err != nil {
		return DiskUsage{}, fmt.Errorf("partition capacity: %w", err)
	}

	percent := 0
	if used != 0 && capacity != 0 {
		percent = int((used * 100) / capacity)
	}

	return DiskUsage{
		Used:      used,
		Percent:   percent,
		Capacity:  capacity,
		Formatted: formatDiskUsage(float64(used)),
	}, nil
}

// DiskUsage in bytes.
type DiskUsage struct {
	Used      int64
	Percent   int
	Capacity  int64
	Formatted string
}

const (
	megabyte float64 = 1000 * 1000
	gigabyte         = megabyte * 1000
	terabyte         = gigabyte * 1000
)

func formatDiskUsage(used float64) string {
	switch {
	case used < gigabyte:
		return fmt.Sprintf("%.0fMB", used/megabyte)
	case used < terabyte:
		return fmt.Sprintf("%.2fGB", used/gigabyte)
	default:
		return fmt.Sprintf("%.2fTB", used/terabyte)
	}
}

func diskUsageBytes(fileSystem fs.FS) int64 {
	var used int64
	fs.WalkDir(fileSystem, ".", func(_ string, d fs.DirEntry, err error) error { //nolint:errcheck
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		used += info.Size()

		return nil
	})
	return used
}

func partitionCapacity(path string) (int64, error) {
	stat, err := psdisk.Usage(path)
	if err != nil {
		return 0, err
	}
	return int64(stat.Total), nil
}
