package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aarriolsal/spotify-nextcloud/internal/shared"
	tu "github.com/aarriolsal/spotify-nextcloud/internal/testing"
)

func TestScan(t *testing.T) {
	t.Run("Lists Audio Files", func(t *testing.T) {
		root := t.TempDir()
		tu.MustWriteFile(t, filepath.Join(root, "Artist", "Album", "01 - Song.mp3"), "not really audio")
		tu.MustWriteFile(t, filepath.Join(root, "Artist", "cover.jpg"), "jpeg")
		tu.MustWriteFile(t, filepath.Join(root, "b.FLAC"), "flac")
		tu.MustWriteFile(t, filepath.Join(root, "notes.txt"), "text")

		files, err := Scan(context.Background(), root)
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if len(files) != 2 {
			t.Fatalf("expected 2 audio files, got %d: %+v", len(files), files)
		}

		want := []string{filepath.Join("Artist", "Album", "01 - Song.mp3"), "b.FLAC"}
		for i, w := range want {
			if files[i].Path != w {
				t.Errorf("files[%d].Path = %s, want %s", i, files[i].Path, w)
			}
		}
		if files[0].Size != int64(len("not really audio")) {
			t.Errorf("unexpected size %d", files[0].Size)
		}
		if files[0].Title != "" {
			t.Errorf("untagged file should have no title, got %q", files[0].Title)
		}
		if files[0].DisplayName() != "01 - Song.mp3" {
			t.Errorf("DisplayName() = %q", files[0].DisplayName())
		}

		stats := Summarize(files)
		if stats.Files != 2 || stats.Untagged != 2 || stats.Bytes != int64(len("not really audio")+len("flac")) {
			t.Errorf("unexpected stats %+v", stats)
		}
	})

	t.Run("Empty Directory", func(t *testing.T) {
		files, err := Scan(context.Background(), t.TempDir())
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if len(files) != 0 {
			t.Errorf("expected no files, got %d", len(files))
		}
	})

	t.Run("Missing Root", func(t *testing.T) {
		_, err := Scan(context.Background(), filepath.Join(t.TempDir(), "missing"))
		var fsErr *FSError
		if !errors.As(err, &fsErr) || fsErr.Op != "scan" {
			t.Fatalf("expected scan FSError, got %v", err)
		}
		if !errors.Is(err, shared.ErrFilesystem) || !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected filesystem and not-exist sentinels, got %v", err)
		}
	})

	t.Run("Root Is File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file.mp3")
		tu.MustWriteFile(t, path, "x")
		if _, err := Scan(context.Background(), path); !errors.Is(err, shared.ErrFilesystem) {
			t.Errorf("expected filesystem error, got %v", err)
		}
	})

	t.Run("Cancelled", func(t *testing.T) {
		root := t.TempDir()
		tu.MustWriteFile(t, filepath.Join(root, "a.mp3"), "x")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := Scan(ctx, root); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		file File
		want string
	}{
		{file: File{Path: "a/b.mp3", Title: "Song", Artist: "Band"}, want: "Band - Song"},
		{file: File{Path: "a/b.mp3", Title: "Song"}, want: "Song"},
		{file: File{Path: filepath.Join("a", "b.mp3")}, want: "b.mp3"},
	}
	for _, tt := range tests {
		if got := tt.file.DisplayName(); got != tt.want {
			t.Errorf("DisplayName() = %q, want %q", got, tt.want)
		}
	}
}

func TestPruneEmptyDirs(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"a/b/c", "a/d", "keep/sub"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
	}
	tu.MustWriteFile(t, filepath.Join(root, "keep", "sub", "leftover.part"), "partial")

	removed, err := PruneEmptyDirs(root)
	if err != nil {
		t.Fatalf("PruneEmptyDirs() error = %v", err)
	}
	if len(removed) != 4 {
		t.Errorf("expected 4 removed directories, got %v", removed)
	}

	tu.AssertDirExists(t, root)
	tu.AssertNotExists(t, filepath.Join(root, "a"))
	tu.AssertDirExists(t, filepath.Join(root, "keep", "sub"))
	tu.AssertFileExists(t, filepath.Join(root, "keep", "sub", "leftover.part"))
}

func TestPruneEmptyDirsMissingRoot(t *testing.T) {
	_, err := PruneEmptyDirs(filepath.Join(t.TempDir(), "gone"))
	if !errors.Is(err, shared.ErrFilesystem) {
		t.Errorf("expected filesystem error, got %v", err)
	}
}
