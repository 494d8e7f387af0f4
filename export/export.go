// Package export serializes the active view to a text file or the system
// clipboard. Both operations refuse to produce an empty artifact.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	cb "github.com/atotto/clipboard"

	"minute/transcript"
	"minute/view"
)

var ErrEmptyTranscript = errors.New("export: no transcript events in this session")

// Render produces the export body: a fixed metadata header followed by the
// projected view.
func Render(snap transcript.Snapshot, mode view.Mode, now time.Time) (string, error) {
	if len(snap.Events) == 0 {
		return "", ErrEmptyTranscript
	}

	sessionID := snap.SessionID
	if sessionID == "" {
		sessionID = "local"
	}

	var b strings.Builder
	b.WriteString("=== Meeting Transcript ===\n")
	fmt.Fprintf(&b, "Session:        %s\n", sessionID)
	fmt.Fprintf(&b, "Generated:      %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "View:           %s\n", mode)
	fmt.Fprintf(&b, "Events:         %d\n", snap.Stats.Total)
	fmt.Fprintf(&b, "Duration:       %s\n", snap.Stats.Duration.Round(time.Second))
	fmt.Fprintf(&b, "Speakers:       %s\n", strings.Join(snap.Stats.Speakers, ", "))
	fmt.Fprintf(&b, "Avg confidence: %.0f%%\n", snap.Stats.AvgConfidence*100)
	b.WriteString("===\n\n")
	b.WriteString(view.Render(snap, mode))
	b.WriteString("\n")
	return b.String(), nil
}

// File writes the rendered view into dir and returns the path. The filename
// encodes session id, view mode and date.
func File(snap transcript.Snapshot, mode view.Mode, dir string, now time.Time) (string, error) {
	body, err := Render(snap, mode, now)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("minute_%s_%s_%s.txt",
		sanitize(snap.SessionID), mode, now.Format("2006-01-02"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		return "", fmt.Errorf("export: write %s: %w", path, err)
	}
	return path, nil
}

// Copy places the rendered view on the system clipboard.
func Copy(snap transcript.Snapshot, mode view.Mode, now time.Time) error {
	body, err := Render(snap, mode, now)
	if err != nil {
		return err
	}
	if err := cb.WriteAll(body); err != nil {
		return fmt.Errorf("export: clipboard: %w", err)
	}
	return nil
}

func sanitize(s string) string {
	if s == "" {
		return "local"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, s)
}
