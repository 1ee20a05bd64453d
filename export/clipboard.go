package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// ErrClipboardUnavailable means the host has no way to write images to a
// clipboard. Callers should point the user at a download instead.
var ErrClipboardUnavailable = errors.New("clipboard unavailable")

// ClipboardError is a failed clipboard write.
type ClipboardError struct {
	Tool string
	Err  error
}

func (e *ClipboardError) Error() string {
	if e.Tool == "" {
		return fmt.Sprintf("clipboard: %v", e.Err)
	}
	return fmt.Sprintf("clipboard (%s): %v", e.Tool, e.Err)
}

func (e *ClipboardError) Unwrap() error {
	return e.Err
}

// Clipboard accepts PNG images.
type Clipboard interface {
	WritePNG(ctx context.Context, png []byte) error
}

// clipboardTools are tried in order; the first one found on PATH is used.
var clipboardTools = [][]string{
	{"wl-copy", "--type", "image/png"},
	{"xclip", "-selection", "clipboard", "-t", "image/png", "-i"},
}

// SystemClipboard writes to the desktop clipboard through wl-copy or xclip.
type SystemClipboard struct {
	lookPath func(string) (string, error)
}

func NewSystemClipboard() *SystemClipboard {
	return &SystemClipboard{lookPath: exec.LookPath}
}

func (c *SystemClipboard) WritePNG(ctx context.Context, png []byte) error {
	for _, tool := range clipboardTools {
		path, err := c.lookPath(tool[0])
		if err != nil {
			continue
		}
		cmd := exec.CommandContext(ctx, path, tool[1:]...)
		cmd.Stdin = bytes.NewReader(png)
		if out, err := cmd.CombinedOutput(); err != nil {
			msg := strings.TrimSpace(string(out))
			if msg != "" {
				err = fmt.Errorf("%w: %s", err, msg)
			}
			return &ClipboardError{Tool: tool[0], Err: err}
		}
		return nil
	}
	return &ClipboardError{Err: ErrClipboardUnavailable}
}

// MemoryClipboard keeps the last image so a client can fetch it.
type MemoryClipboard struct {
	mu       sync.Mutex
	data     []byte
	copiedAt time.Time
}

func (c *MemoryClipboard) WritePNG(_ context.Context, png []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = append([]byte(nil), png...)
	c.copiedAt = time.Now()
	return nil
}

// Last returns the most recent image and when it was written.
func (c *MemoryClipboard) Last() ([]byte, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		return nil, time.Time{}, false
	}
	return c.data, c.copiedAt, true
}

// NoClipboard is used where no clipboard exists at all.
type NoClipboard struct{}

func (NoClipboard) WritePNG(context.Context, []byte) error {
	return &ClipboardError{Err: ErrClipboardUnavailable}
}

// NewClipboard picks an implementation by name: system, memory or none.
func NewClipboard(kind string) (Clipboard, error) {
	switch kind {
	case "system":
		return NewSystemClipboard(), nil
	case "", "memory":
		return &MemoryClipboard{}, nil
	case "none":
		return NoClipboard{}, nil
	}
	return nil, fmt.Errorf("unknown clipboard %q", kind)
}
