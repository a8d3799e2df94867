package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aarriolsal/spotify-nextcloud/internal/shared"
	"github.com/dhowden/tag"
	"github.com/tcolgate/mp3"
)

// AudioExtensions are the file suffixes treated as audio, lowercase with the dot.
var AudioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".m4a":  true,
	".ogg":  true,
	".opus": true,
	".wav":  true,
	".aac":  true,
}

// FSError reports a failed filesystem operation.
type FSError struct {
	Op   string
	Path string
	Err  error
}

func (e *FSError) Error() string {
	return fmt.Sprintf("%v: %s %s: %v", shared.ErrFilesystem, e.Op, e.Path, e.Err)
}

func (e *FSError) Unwrap() error { return e.Err }

func (e *FSError) Is(target error) bool {
	return target == shared.ErrFilesystem
}

// File is an audio file found by [Scan]. Tag fields are empty when the file has no readable tags.
type File struct {
	Path     string        `json:"path"`
	Size     int64         `json:"size"`
	Format   string        `json:"format,omitempty"`
	Title    string        `json:"title,omitempty"`
	Artist   string        `json:"artist,omitempty"`
	Album    string        `json:"album,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// DisplayName returns "Artist - Title" when tags are present, else the file name.
func (f File) DisplayName() string {
	switch {
	case f.Title != "" && f.Artist != "":
		return f.Artist + " - " + f.Title
	case f.Title != "":
		return f.Title
	}
	return filepath.Base(f.Path)
}

// Scan lists the audio files below root in path order. Paths are relative to root.
func Scan(ctx context.Context, root string) ([]File, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &FSError{Op: "scan", Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &FSError{Op: "scan", Path: root, Err: errors.New("not a directory")}
	}

	var files []File
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !AudioExtensions[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}

		file := File{Path: rel, Size: fi.Size()}
		readTags(path, &file)
		files = append(files, file)
		return nil
	})
	if err != nil {
		return nil, &FSError{Op: "scan", Path: root, Err: err}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// readTags fills in tag metadata; unreadable tags leave the fields empty.
func readTags(path string, file *File) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err == nil {
		file.Format = string(m.FileType())
		file.Title = m.Title()
		file.Artist = m.Artist()
		file.Album = m.Album()
	}

	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		if _, err := f.Seek(0, io.SeekStart); err == nil {
			file.Duration = mp3Duration(f)
		}
	}
}

// mp3Duration sums frame durations; a decode error returns what was counted so far.
func mp3Duration(r io.Reader) time.Duration {
	d := mp3.NewDecoder(r)
	var frame mp3.Frame
	var skipped int
	var total time.Duration
	for {
		if err := d.Decode(&frame, &skipped); err != nil {
			return total.Truncate(time.Second)
		}
		total += frame.Duration()
	}
}

// Stats summarizes a scan.
type Stats struct {
	Files    int
	Bytes    int64
	Duration time.Duration
	Untagged int
}

// Summarize totals files.
func Summarize(files []File) Stats {
	var s Stats
	for _, f := range files {
		s.Files++
		s.Bytes += f.Size
		s.Duration += f.Duration
		if f.Title == "" {
			s.Untagged++
		}
	}
	return s
}

// PruneEmptyDirs removes every empty directory below root, deepest first, and returns the removed paths.
//
// root itself is kept. Directories that become empty once their children are removed are removed too.
func PruneEmptyDirs(root string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return nil, &FSError{Op: "prune", Path: root, Err: err}
	}

	sort.Slice(dirs, func(i, j int) bool {
		return strings.Count(dirs[i], string(filepath.Separator)) > strings.Count(dirs[j], string(filepath.Separator))
	})

	var removed []string
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return removed, &FSError{Op: "prune", Path: dir, Err: err}
		}
		if len(entries) > 0 {
			continue
		}
		if err := os.Remove(dir); err != nil {
			return removed, &FSError{Op: "prune", Path: dir, Err: err}
		}
		removed = append(removed, dir)
	}
	return removed, nil
}
