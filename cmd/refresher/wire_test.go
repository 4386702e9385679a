package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dashboard-refresher/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Backend:            config.BackendMetabase,
		MetabaseURL:        "http://metabase.invalid",
		MetabaseAPIKey:     "key",
		MetabaseDatabaseID: 2,
		RevenueSource:      "card__9061",
		TrialSource:        "card__19529",
		PurchaseTable:      "purchases",
		Start:              time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		FetchRetries:       1,
		FetchTimeout:       time.Second,
		ShardParallelism:   2,
		TemplateFile:       filepath.Join(dir, "template.html"),
		OutputFile:         filepath.Join(dir, "out.html"),
		RefreshInterval:    time.Hour,
		Passthrough:        map[string]string{},
		Labels:             config.DefaultLabels(),
	}
}

func TestWire_Metabase(t *testing.T) {
	logger = zap.NewNop()
	cfg := testConfig(t)

	a, err := wire(context.Background(), cfg, false)
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.service)
	assert.NotNil(t, a.adhoc)
	assert.NotNil(t, a.store)
	assert.Empty(t, a.closers, "no redis, no database")
}

func TestWire_RedisSnapshots(t *testing.T) {
	logger = zap.NewNop()
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.RedisURL = "redis://" + mr.Addr()

	a, err := wire(context.Background(), cfg, true)
	require.NoError(t, err)
	defer a.Close()

	assert.Len(t, a.closers, 1)
}

func TestWire_UnreachableRedisFallsBackToMemory(t *testing.T) {
	logger = zap.NewNop()
	cfg := testConfig(t)
	cfg.RedisURL = "redis://127.0.0.1:1"

	a, err := wire(context.Background(), cfg, false)
	require.NoError(t, err)
	defer a.Close()

	assert.Empty(t, a.closers)
}

func TestWire_MetabaseWithoutKey(t *testing.T) {
	logger = zap.NewNop()
	cfg := testConfig(t)
	cfg.MetabaseAPIKey = ""

	_, err := wire(context.Background(), cfg, false)
	assert.Error(t, err)
}

func TestWire_BadBackend(t *testing.T) {
	logger = zap.NewNop()
	cfg := testConfig(t)
	cfg.Backend = "snowflake"

	_, err := wire(context.Background(), cfg, false)
	assert.ErrorIs(t, err, config.ErrBadBackend)
}
