package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tuition-receipts-go/models"
)

// Sink receives finished receipt files.
type Sink interface {
	Deliver(name string, data []byte) error
}

// DirSink writes each file into a directory.
type DirSink struct {
	Dir string
}

func (s DirSink) Deliver(name string, data []byte) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ZipSink collects files into an in-memory zip archive.
type ZipSink struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	w      *zip.Writer
	names  map[string]int
	count  int
	closed bool
}

func NewZipSink() *ZipSink {
	s := &ZipSink{names: make(map[string]int)}
	s.w = zip.NewWriter(&s.buf)
	return s
}

// Deliver adds a file. Repeated names get a numeric suffix, since two
// students may share a name and class.
func (s *ZipSink) Deliver(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("archive already closed")
	}

	name = s.unique(name)
	f, err := s.w.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Store,
		Modified: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to add %s to archive: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write %s to archive: %w", name, err)
	}
	s.count++
	return nil
}

func (s *ZipSink) unique(name string) string {
	n := s.names[name]
	s.names[name] = n + 1
	if n == 0 {
		return name
	}
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(name, ext), n+1, ext)
}

// Count is the number of files delivered so far.
func (s *ZipSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Bytes finishes the archive and returns it. Later deliveries fail.
func (s *ZipSink) Bytes() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		if err := s.w.Close(); err != nil {
			return nil, fmt.Errorf("failed to finish archive: %w", err)
		}
		s.closed = true
	}
	return s.buf.Bytes(), nil
}

var unsafeName = strings.NewReplacer("/", "-", "\\", "-", "\x00", "")

// ReceiptFileName is the batch export name: {name}_{class}.png, with "lop"
// standing in for a missing class.
func ReceiptFileName(s models.StudentRecord) string {
	class := s.ClassName
	if class == "" {
		class = "lop"
	}
	return unsafeName.Replace(s.Name + "_" + class + ".png")
}

// PreviewFileName is the modal download name: {name}.png, or phieu.png.
func PreviewFileName(s models.StudentRecord) string {
	name := s.Name
	if name == "" {
		name = "phieu"
	}
	return unsafeName.Replace(name + ".png")
}

// withExt swaps the extension of a receipt file name.
func withExt(name, ext string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}
