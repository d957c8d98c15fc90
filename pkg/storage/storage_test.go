// SPDX-License-Identifier: GPL-2.0-or-later

package storage

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"depthrec/pkg/log"

	"github.com/stretchr/testify/require"
)

func TestNewManager(t *testing.T) {
	m := NewManager("/tmp/storage", 95, log.NewMockLogger())
	require.NotNil(t, m)
	require.Equal(t, "/tmp/storage/sessions", m.SessionsDir())
	require.Equal(t, "/tmp/storage/logs.db", m.LogDBPath())
}

func TestDiskUsageBytes(t *testing.T) {
	tempDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "a"), []byte{0}, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "b"), []byte{0}, 0o600))

	require.Equal(t, int64(2), diskUsageBytes(os.DirFS(tempDir)))
}

func TestFormatDiskUsage(t *testing.T) {
	cases := []struct {
		used     float64
		expected string
	}{
		{10 * megabyte, "10MB"},
		{2 * gigabyte, "2.00GB"},
		{200 * gigabyte, "200.00GB"},
		{2 * terabyte, "2.00TB"},
	}
	for _, tc := range cases {
		t.Run(tc.expected, func(t *testing.T) {
			require.Equal(t, tc.expected, formatDiskUsage(tc.used))
		})
	}
}

func TestDiskUsage(t *testing.T) {
	d := newDisk("/tmp", os.DirFS("/tmp"))
	d.diskUsageBytes = func(fs.FS) int64 { return 50 }
	d.capacityBytes = func(string) (int64, error) { return 100, nil }

	usage, err := d.usage(0)
	require.NoError(t, err)
	require.Equal(t, DiskUsage{
		Used:      50,
		Percent:   50,
		Capacity:  100,
		Formatted: "0MB",
	}, usage)

	// Second call within maxAge hits the cache.
	d.diskUsageBytes = func(fs.FS) int64 { panic("cache miss") }
	usage2, err := d.usage(time.Hour)
	require.NoError(t, err)
	require.Equal(t, usage, usage2)

	cached, age := d.usageCached()
	require.Equal(t, usage, cached)
	require.Less(t, age, time.Hour)
}

func newTestManager(t *testing.T, used, capacity int64) (*Manager, string) {
	storageDir := t.TempDir()

	// The logger loop must run for purge to be able to log.
	logger := log.NewMockLogger()
	ctx, cancel := context.WithCancel(context.Background())
	logger.Start(ctx)
	t.Cleanup(cancel)

	m := NewManager(storageDir, 95, logger)
	m.disk.diskUsageBytes = func(fs.FS) int64 { return used }
	m.disk.capacityBytes = func(string) (int64, error) { return capacity, nil }

	require.NoError(t, os.MkdirAll(m.SessionsDir(), 0o700))
	return m, m.SessionsDir()
}

func writeSessionFile(t *testing.T, dir, id string) string {
	path := filepath.Join(dir, id+sessionExt)
	require.NoError(t, os.WriteFile(path, []byte{0}, 0o600))
	return path
}

func TestPurge(t *testing.T) {
	t.Run("belowLimit", func(t *testing.T) {
		m, dir := newTestManager(t, 10, 100)
		path := writeSessionFile(t, dir, "depth_frames_20250430_120000")

		require.NoError(t, m.purge())
		require.FileExists(t, path)
	})
	t.Run("aboveLimit", func(t *testing.T) {
		m, dir := newTestManager(t, 99, 100)
		oldest := writeSessionFile(t, dir, "depth_frames_20250430_120000")
		newest := writeSessionFile(t, dir, "depth_frames_20250430_130000")

		require.NoError(t, m.purge())
		require.NoFileExists(t, oldest)
		require.FileExists(t, newest)
	})
	t.Run("empty", func(t *testing.T) {
		m, _ := newTestManager(t, 99, 100)
		require.NoError(t, m.purge())
	})
}
