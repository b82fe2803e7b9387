package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where new migrations are written. Binaries read the copy
// embedded below unless a directory is given.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Source returns the migration files under dir, or the embedded set when dir
// is empty.
func Source(dir string) (fs.FS, error) {
	if dir == "" {
		return fs.Sub(embedded, "migrations")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("migrations dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("migrations dir %q is not a directory", dir)
	}
	return os.DirFS(dir), nil
}

// Runner applies the SQL migrations to Postgres. SQLite schemas come from
// AutoMigrate instead.
type Runner struct {
	provider *goose.Provider
}

func NewRunner(db *sql.DB, fsys fs.FS) (*Runner, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Runner{provider: provider}, nil
}

// Step is one applied or rolled back migration.
type Step struct {
	Version   int64
	Path      string
	Direction string
	Duration  string
}

func (r *Runner) Up(ctx context.Context) ([]Step, error) {
	results, err := r.provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose up: %w", err)
	}
	return steps(results), nil
}

func (r *Runner) Down(ctx context.Context) ([]Step, error) {
	result, err := r.provider.Down(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose down: %w", err)
	}
	return steps([]*goose.MigrationResult{result}), nil
}

// To moves the schema up or down until target is the newest applied version.
func (r *Runner) To(ctx context.Context, target string) ([]Step, error) {
	version, err := parseVersion(target)
	if err != nil {
		return nil, err
	}
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("get db version: %w", err)
	}
	var results []*goose.MigrationResult
	switch {
	case current == version:
		return nil, nil
	case current < version:
		results, err = r.provider.UpTo(ctx, version)
	default:
		results, err = r.provider.DownTo(ctx, version)
	}
	if err != nil {
		return nil, fmt.Errorf("goose migrate to %d: %w", version, err)
	}
	return steps(results), nil
}

// Status lists every known migration with its state.
type Status struct {
	Version   int64
	Path      string
	State     string
	AppliedAt string
}

func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	rows, err := r.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	out := make([]Status, 0, len(rows))
	for _, row := range rows {
		s := Status{State: string(row.State)}
		if row.Source != nil {
			s.Version = row.Source.Version
			s.Path = row.Source.Path
		}
		if !row.AppliedAt.IsZero() {
			s.AppliedAt = row.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		out = append(out, s)
	}
	return out, nil
}

func steps(results []*goose.MigrationResult) []Step {
	out := make([]Step, 0, len(results))
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		out = append(out, Step{
			Version:   res.Source.Version,
			Path:      res.Source.Path,
			Direction: res.Direction,
			Duration:  res.Duration.String(),
		})
	}
	return out
}

func parseVersion(value string) (int64, error) {
	if len(value) != 14 {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", value)
	}
	v, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", value, err)
	}
	return v, nil
}
