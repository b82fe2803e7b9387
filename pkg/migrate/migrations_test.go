package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-fulfillment/pkg/config"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one %s migration, found %d", suffix, len(matches))
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestMigrationsContainLedgerConstraints(t *testing.T) {
	cases := map[string][]string{
		"create_materials": {
			"CREATE TABLE IF NOT EXISTS materials",
			"CHECK (stock_quantity >= 0)",
			"DROP TABLE IF EXISTS materials",
		},
		"create_products": {
			"CONSTRAINT ux_products_slug UNIQUE (slug)",
			"CHECK ((product_id IS NULL) <> (variant_id IS NULL))",
			"DROP TABLE IF EXISTS bom_lines",
		},
		"create_promo_codes": {
			"CONSTRAINT ux_promo_codes_code UNIQUE (code)",
			"chk_promo_codes_kind",
		},
		"create_stock_movements": {
			"CHECK (type IN ('PRODUCTION', 'PACKAGING', 'ADJUSTMENT'))",
			"BEFORE UPDATE OR DELETE ON stock_movements",
		},
		"create_outbox": {
			"CREATE TABLE IF NOT EXISTS outbox_events",
			"CREATE TABLE IF NOT EXISTS outbox_dlq",
		},
	}

	for suffix, checks := range cases {
		content := readMigration(t, suffix)
		for _, sub := range checks {
			if !strings.Contains(content, sub) {
				t.Errorf("%s: missing expected statement %q", suffix, sub)
			}
		}
	}
}

func TestValidateAcceptsEmbeddedMigrations(t *testing.T) {
	fsys, err := Source("")
	if err != nil {
		t.Fatalf("embedded source: %v", err)
	}
	files, err := Validate(fsys)
	if err != nil {
		t.Fatalf("embedded migrations should validate: %v", err)
	}
	if len(files) != 7 || files[0].Name != "create_materials" || files[6].Name != "create_outbox" {
		t.Fatalf("unexpected migration order: %+v", files)
	}
}

func TestValidateRejectsBrokenFiles(t *testing.T) {
	cases := map[string]string{
		"001_init.sql":                 "-- +goose Up\n-- +goose Down\n",
		"20261301000000_bad_month.sql": "-- +goose Up\n-- +goose Down\n",
		"20260101000000_no_down.sql":   "-- +goose Up\nSELECT 1;\n",
		"20260101000000_swapped.sql":   "-- +goose Down\n-- +goose Up\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, err := Validate(os.DirFS(dir)); err == nil {
				t.Fatalf("expected %s to be rejected", name)
			}
		})
	}
}

func TestValidateRejectsDuplicateVersions(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"20260101000000_a.sql", "20260101000000_b.sql"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if _, err := Validate(os.DirFS(dir)); err == nil || !strings.Contains(err.Error(), "used by both") {
		t.Fatalf("expected duplicate version error, got %v", err)
	}
}

func TestCreateSlugifiesAndOrdersAfterLatest(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "20300101000000_future.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	path, err := Create(dir, "Add Supplier Table!", time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Base(path) != "20300101000001_add_supplier_table.sql" {
		t.Fatalf("unexpected file name %s", path)
	}
	if _, err := Validate(os.DirFS(dir)); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
	if _, err := Create(dir, "!!!", time.Now()); err == nil {
		t.Fatal("expected error for unusable name")
	}
}

func TestParseVersion(t *testing.T) {
	for _, bad := range []string{"", "2026", "2026090109000x"} {
		if _, err := parseVersion(bad); err == nil {
			t.Fatalf("%q should fail", bad)
		}
	}
	if v, err := parseVersion("20260901090000"); err != nil || v != 20260901090000 {
		t.Fatalf("unexpected parse result %d %v", v, err)
	}
}

func TestMaybeRunDevAutoMigratesSQLite(t *testing.T) {
	cfg := &config.Config{
		App:          config.AppConfig{Env: config.AppEnvDev},
		FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true},
		DB: config.DBConfig{
			Driver: config.DriverSQLite,
			DSN:    "file:" + filepath.Join(t.TempDir(), "dev.db"),
		},
	}
	client, err := db.New(context.Background(), cfg.DB, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer client.Close()

	logg := logger.New(logger.Options{ServiceName: "test", Output: &strings.Builder{}})
	if err := MaybeRunDev(context.Background(), cfg, logg, client); err != nil {
		t.Fatalf("MaybeRunDev: %v", err)
	}
	if !client.DB().Migrator().HasTable("stock_movements") {
		t.Fatal("expected stock_movements table after auto-migrate")
	}
}
