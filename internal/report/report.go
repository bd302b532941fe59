// Package report generates, persists, and renders long-form trend
// reports. Reports are plain markdown files named by generation time;
// once written they are never modified.
package report

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nugget/marcus/internal/prompts"
)

const (
	filePrefix   = "trend_report_"
	fileExt      = ".md"
	stampLayout  = "2006-01-02_150405"
	maxCollision = 100
)

var (
	// ErrExists means every candidate name for a report was taken.
	ErrExists = errors.New("report already exists")

	// ErrNotFound means no report matched.
	ErrNotFound = errors.New("report not found")

	// ErrEmpty means there was no report text to persist.
	ErrEmpty = errors.New("report is empty")
)

var nameRe = regexp.MustCompile(`^trend_report_(\d{4}-\d{2}-\d{2}_\d{6})(?:-(\d+))?\.md$`)

// Report is one persisted trend report.
type Report struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	GeneratedAt time.Time `json:"generated_at"`
	Bytes       int       `json:"bytes"`

	// Text is the report body exactly as it was persisted, without the
	// title line.
	Text string `json:"text,omitempty"`

	seq int
}

// Markdown returns the full file contents: title, blank line, body.
func (r *Report) Markdown() string {
	return prompts.ReportTitle(r.GeneratedAt) + "\n\n" + r.Text
}

// Store reads and writes reports in one directory.
type Store struct {
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

// NewStore creates a report store rooted at dir. The directory is
// created on first write.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, now: time.Now, logger: logger}
}

// Dir returns the reports directory.
func (s *Store) Dir() string { return s.dir }

// Persist writes text as a new report stamped with the current time and
// returns it. An existing file is never overwritten: a same-second
// collision gets a numeric suffix.
func (s *Store) Persist(text string) (*Report, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmpty
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create reports dir: %w", err)
	}

	generated := s.now().Truncate(time.Second)
	content := prompts.ReportTitle(generated) + "\n\n" + text
	stamp := generated.Format(stampLayout)

	for seq := 1; seq <= maxCollision; seq++ {
		name := fileName(stamp, seq)
		path := filepath.Join(s.dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create report: %w", err)
		}

		_, werr := f.WriteString(content)
		cerr := f.Close()
		if err := errors.Join(werr, cerr); err != nil {
			_ = os.Remove(path)
			return nil, fmt.Errorf("write report %s: %w", name, err)
		}

		s.logger.Info("report persisted", "path", path, "bytes", len(content))
		return &Report{
			Name:        name,
			Path:        path,
			GeneratedAt: generated,
			Bytes:       len(content),
			Text:        text,
			seq:         seq,
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrExists, stamp)
}

func fileName(stamp string, seq int) string {
	if seq <= 1 {
		return filePrefix + stamp + fileExt
	}
	return fmt.Sprintf("%s%s-%d%s", filePrefix, stamp, seq, fileExt)
}

// parseName extracts the generation time and collision sequence from a
// report file name.
func parseName(name string) (time.Time, int, bool) {
	m := nameRe.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, 0, false
	}
	t, err := time.ParseInLocation(stampLayout, m[1], time.Local)
	if err != nil {
		return time.Time{}, 0, false
	}
	seq := 1
	if m[2] != "" {
		seq, _ = strconv.Atoi(m[2])
	}
	return t, seq, true
}

// List returns report metadata, newest first. Text is not loaded. A
// missing directory is an empty list.
func (s *Store) List() ([]*Report, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}

	var out []*Report
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		t, seq, ok := parseName(e.Name())
		if !ok {
			continue
		}
		r := &Report{Name: e.Name(), Path: filepath.Join(s.dir, e.Name()), GeneratedAt: t, seq: seq}
		if info, err := e.Info(); err == nil {
			r.Bytes = int(info.Size())
		}
		out = append(out, r)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].GeneratedAt.Equal(out[j].GeneratedAt) {
			return out[i].GeneratedAt.After(out[j].GeneratedAt)
		}
		return out[i].seq > out[j].seq
	})
	return out, nil
}

// Read loads the report with the given file name from the store.
func (s *Store) Read(name string) (*Report, error) {
	if filepath.Base(name) != name {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	t, seq, ok := parseName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}

	return &Report{
		Name:        name,
		Path:        path,
		GeneratedAt: t,
		Bytes:       len(data),
		Text:        body(string(data)),
		seq:         seq,
	}, nil
}

// body strips the title line and the blank line after it.
func body(content string) string {
	if !strings.HasPrefix(content, "# ") {
		return content
	}
	_, rest, ok := strings.Cut(content, "\n")
	if !ok {
		return ""
	}
	return strings.TrimPrefix(rest, "\n")
}

// Latest returns the newest report on disk.
func (s *Store) Latest() (*Report, error) {
	list, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return s.Read(list[0].Name)
}
