// Package clipboard copies transcripts to the system clipboard.
package clipboard

import (
	"errors"
	"fmt"
	"time"

	cb "github.com/atotto/clipboard"
)

var ErrUnavailable = errors.New("no clipboard utility found")

// Available reports whether a clipboard backend exists. On Linux this needs
// xclip, xsel or wl-clipboard.
func Available() bool { return !cb.Unsupported }

func Read() (string, error) {
	if cb.Unsupported {
		return "", ErrUnavailable
	}
	return cb.ReadAll()
}

func Copy(text string) error {
	if cb.Unsupported {
		return ErrUnavailable
	}
	if err := cb.WriteAll(text); err != nil {
		return fmt.Errorf("copying to clipboard: %w", err)
	}
	return nil
}

// Verify round-trips a probe string through the clipboard and restores the
// previous contents.
func Verify() (string, error) {
	prev, _ := Read()
	probe := fmt.Sprintf("polyglot-doctor-%d", time.Now().UnixNano())
	if err := Copy(probe); err != nil {
		return "", err
	}
	got, err := Read()
	if prev != "" {
		Copy(prev)
	}
	if err != nil {
		return "", fmt.Errorf("reading clipboard: %w", err)
	}
	if got != probe {
		return "", fmt.Errorf("clipboard mismatch: wrote %q, got %q", probe, got)
	}
	return "clipboard write/read verified", nil
}
