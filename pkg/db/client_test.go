package db

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/pkg/config"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
)

type widget struct {
	ID   int
	Name string
}

func openClient(t *testing.T, logg *logger.Logger, slow time.Duration) *Client {
	t.Helper()
	client, err := New(context.Background(), config.DBConfig{
		Driver:    config.DriverSQLite,
		DSN:       "file:" + filepath.Join(t.TempDir(), "client.db"),
		SlowQuery: slow,
	}, logg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.DB().AutoMigrate(&widget{}))
	return client
}

func countWidgets(t *testing.T, c *Client) int64 {
	t.Helper()
	var n int64
	require.NoError(t, c.DB().Model(&widget{}).Count(&n).Error)
	return n
}

func TestWithTxCommitsOrRollsBack(t *testing.T) {
	client := openClient(t, nil, 0)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&widget{Name: "kept"}).Error
	}))

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&widget{Name: "dropped"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.EqualError(t, err, "boom")
	assert.EqualValues(t, 1, countWidgets(t, client))
}

func TestWithTxRollsBackAndRepanics(t *testing.T) {
	client := openClient(t, nil, 0)

	assert.PanicsWithValue(t, "boom", func() {
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&widget{Name: "panicked"}).Error; err != nil {
				return err
			}
			panic("boom")
		})
	})
	assert.Zero(t, countWidgets(t, client))
}

func TestNewOpensSQLite(t *testing.T) {
	client := openClient(t, nil, 0)
	assert.Equal(t, "sqlite", client.DB().Dialector.Name())
	assert.NoError(t, client.Ping(context.Background()))
}

func TestNewRequiresDSN(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{}, nil)
	assert.EqualError(t, err, "database DSN is required")
}

func TestSlowQueriesAreLogged(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "db-test", Output: &buf})
	client := openClient(t, logg, time.Nanosecond)

	buf.Reset()
	require.NoError(t, client.DB().Create(&widget{Name: "slow"}).Error)
	assert.Contains(t, buf.String(), `"message":"slow query"`)
	assert.Contains(t, buf.String(), "INSERT INTO")
}

func TestMissingRowsAreNotLoggedAsFailures(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "db-test", Output: &buf})
	client := openClient(t, logg, 0)

	buf.Reset()
	err := client.DB().First(&widget{}, 42).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String())

	require.Error(t, client.DB().Exec("SELECT * FROM missing_table").Error)
	assert.Contains(t, buf.String(), "query failed")
}
