// SPDX-License-Identifier: GPL-2.0-or-later

package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	sessionPrefix = "depth_frames_"
	sessionExt    = ".zst"

	sessionTimeLayout = "20060102_150405"
)

// Session is one recorded capture session on disk.
// `.json` can be appended to the ID to get the sidecar file.
type Session struct {
	ID   string // e.g. "depth_frames_20250430_120000".
	Path string // Path to the container file.
}

// SidecarPath returns the path of the JSON metadata sidecar.
func (s Session) SidecarPath() string {
	return strings.TrimSuffix(s.Path, sessionExt) + ".json"
}

// SessionData session metadata saved next to the container file.
type SessionData struct {
	FrameCount uint64    `json:"frameCount"`
	Width      uint32    `json:"width"`
	Height     uint32    `json:"height"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

// NewSession returns a session named after the capture start time,
// matching the capture tool's file naming.
func NewSession(sessionsDir string, startTime time.Time) Session {
	id := sessionPrefix + startTime.Format(sessionTimeLayout)
	return Session{
		ID:   id,
		Path: filepath.Join(sessionsDir, id+sessionExt),
	}
}

// OpenSession returns the session for an existing container file.
func OpenSession(path string) Session {
	return Session{
		ID:   strings.TrimSuffix(filepath.Base(path), sessionExt),
		Path: path,
	}
}

// WriteData writes the sidecar file.
func (s Session) WriteData(data SessionData) error {
	raw, _ := json.MarshalIndent(data, "", "    ")

	if err := os.WriteFile(s.SidecarPath(), raw, 0o600); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}

// ReadData reads the sidecar file.
func (s Session) ReadData() (SessionData, error) {
	raw, err := os.ReadFile(s.SidecarPath())
	if err != nil {
		return SessionData{}, fmt.Errorf("read sidecar: %w", err)
	}

	var data SessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return SessionData{}, fmt.Errorf("unmarshal sidecar: %w", err)
	}
	return data, nil
}

// ListSessions returns all sessions in dir, newest first. The
// timestamped IDs make lexical order chronological.
func ListSessions(dir string) ([]Session, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	var sessions []Session
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasSuffix(name, sessionExt) {
			continue
		}
		sessions = append(sessions, Session{
			ID:   strings.TrimSuffix(name, sessionExt),
			Path: filepath.Join(dir, name),
		})
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ID > sessions[j].ID
	})
	return sessions, nil
}
