package sqldb

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rovshanmuradov/nft-amm/internal/storage"
	"github.com/rovshanmuradov/nft-amm/internal/storage/storagetest"
)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	s, err := Open(context.Background(), Config{Driver: DriverSQLite, DSN: dsn, LogLevel: "silent"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store { return openSQLite(t) })
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle"}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestFileDatabaseSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Driver: DriverSQLite, DSN: t.TempDir() + "/amm.db", LogLevel: "silent"}

	s, err := Open(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		return tx.Pairs().Save(ctx, storagetest.NewPair(t, "pair-a", 1000, 5000, "1"))
	}))
	require.NoError(t, s.Close())

	s, err = Open(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.View(ctx, func(tx storage.Tx) error {
		p, err := tx.Pairs().Get(ctx, "pair-a")
		require.NoError(t, err)
		assert.Equal(t, []string{"1"}, p.NFTs)
		return nil
	}))
}

func TestSlowQueriesAreCounted(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	s, err := Open(context.Background(), Config{
		Driver:        DriverSQLite,
		DSN:           dsn,
		LogLevel:      "error",
		SlowThreshold: time.Nanosecond,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()

	// migration alone runs statements slower than a nanosecond
	assert.Positive(t, s.SlowQueries())
}

func TestQueryLoggerSkipsMissingRows(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := newQueryLogger(zap.New(core), logger.Error, time.Hour)
	sql := func() (string, int64) { return "SELECT 1", 0 }

	l.Trace(context.Background(), time.Now(), sql, gorm.ErrRecordNotFound)
	assert.Zero(t, logs.Len())

	l.Trace(context.Background(), time.Now(), sql, errors.New("disk full"))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Query failed", logs.All()[0].Message)
}
