// package testing contains shared testing utilities
package testing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/aarriolsal/spotify-nextcloud/internal/models"
	"github.com/aarriolsal/spotify-nextcloud/internal/shared"
)

// StaticSource is a test double for the source playlist reader that serves fixed playlists by reference.
type StaticSource struct {
	mu        sync.Mutex
	Playlists map[string]*models.SourcePlaylist
	Err       error
	Calls     []string
}

func (s *StaticSource) ReadPlaylist(ctx context.Context, ref string) (*models.SourcePlaylist, error) {
	s.mu.Lock()
	s.Calls = append(s.Calls, ref)
	s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	p, ok := s.Playlists[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, ref)
	}
	return p, nil
}

// NewStaticSource builds a [StaticSource] holding one playlist with the given titles.
func NewStaticSource(ref, name string, titles ...string) *StaticSource {
	p := &models.SourcePlaylist{ID: ref, Name: name}
	for _, title := range titles {
		p.Tracks = append(p.Tracks, models.Track{Title: title})
	}
	return &StaticSource{Playlists: map[string]*models.SourcePlaylist{ref: p}}
}

// SplitServerURL splits an httptest server URL into the base URL and port the catalog client expects.
func SplitServerURL(t *testing.T, raw string) (string, int) {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("invalid server URL %q: %v", raw, err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("server URL %q has no port: %v", raw, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("invalid port in %q: %v", raw, err)
	}
	return u.Scheme + "://" + host, port
}

// WriteSubsonic writes a subsonic-response envelope with status "ok" and the given payload fields.
func WriteSubsonic(w http.ResponseWriter, payload map[string]any) {
	body := map[string]any{"status": "ok", "version": "1.16.1"}
	for k, v := range payload {
		body[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"subsonic-response": body})
}

// WriteSubsonicError writes a failed subsonic-response envelope.
func WriteSubsonicError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"subsonic-response": map[string]any{
			"status":  "failed",
			"version": "1.16.1",
			"error":   map[string]any{"code": code, "message": message},
		},
	})
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites int, target io.Writer) *LimitedWriter {
	return &LimitedWriter{maxWrites: maxWrites, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// MustWriteFile creates path (and its parent directories) with the given content.
func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("Path should not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
