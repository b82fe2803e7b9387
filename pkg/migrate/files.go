package migrate

import (
	"cmp"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

var (
	fileNameRe   = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)
	unsafeNameRe = regexp.MustCompile(`[^a-z0-9]+`)
)

// File is a parsed migration file name.
type File struct {
	Version int64
	Name    string
	Path    string
}

// Validate parses every .sql file in fsys and checks naming, unique
// versions and that each file declares its Up section before its Down
// section. It returns the files ordered by version.
func Validate(fsys fs.FS) ([]File, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var files []File
	seen := map[int64]string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		f, err := parseFileName(e.Name())
		if err != nil {
			return nil, err
		}
		if other, dup := seen[f.Version]; dup {
			return nil, fmt.Errorf("version %d used by both %s and %s", f.Version, other, f.Path)
		}
		seen[f.Version] = f.Path

		body, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		if err := checkSections(string(body)); err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		files = append(files, f)
	}
	slices.SortFunc(files, func(a, b File) int {
		return cmp.Compare(a.Version, b.Version)
	})
	return files, nil
}

func parseFileName(name string) (File, error) {
	m := fileNameRe.FindStringSubmatch(name)
	if m == nil {
		return File{}, fmt.Errorf("bad migration file name %q (want YYYYMMDDHHMMSS_name.sql)", name)
	}
	if _, err := time.Parse("20060102150405", m[1]); err != nil {
		return File{}, fmt.Errorf("bad timestamp in %q: %w", name, err)
	}
	version, _ := strconv.ParseInt(m[1], 10, 64)
	return File{Version: version, Name: m[2], Path: name}, nil
}

func checkSections(body string) error {
	up := strings.Index(body, "-- +goose Up")
	down := strings.Index(body, "-- +goose Down")
	switch {
	case up < 0:
		return fmt.Errorf(`missing "-- +goose Up"`)
	case down < 0:
		return fmt.Errorf(`missing "-- +goose Down"`)
	case down < up:
		return fmt.Errorf("down section precedes up section")
	}
	return nil
}

// Create writes an empty migration into dir. The version is the current UTC
// timestamp, bumped past the newest existing file so versions stay ordered.
func Create(dir, name string, now time.Time) (string, error) {
	slug := strings.Trim(unsafeNameRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	existing, err := Validate(os.DirFS(dir))
	if err != nil {
		return "", err
	}

	stamp := now.UTC()
	if n := len(existing); n > 0 {
		latest, _ := time.Parse("20060102150405", strconv.FormatInt(existing[n-1].Version, 10))
		if !stamp.After(latest) {
			stamp = latest.Add(time.Second)
		}
	}
	path := filepath.Join(dir, stamp.Format("20060102150405")+"_"+slug+".sql")
	body := "-- +goose Up\n-- +goose StatementBegin\n\n-- +goose StatementEnd\n\n" +
		"-- +goose Down\n-- +goose StatementBegin\n\n-- +goose StatementEnd\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
