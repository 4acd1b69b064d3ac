package datastore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/propops/internal/conf"
	"github.com/ledgerline/propops/internal/logger"
)

func TestOpen_SQLiteMigrate(t *testing.T) {
	cfg := conf.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "propops.db")}

	m, err := Open(cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	require.NoError(t, m.Migrate(t.Context()))
	require.NoError(t, m.Ping(t.Context()))
	assert.Equal(t, "sqlite", m.Driver())

	for _, table := range []string{"settings", "utility_types", "utility_accounts", "utility_formatting_rules", "expenses", "alert_rules", "alert_history", "jobs"} {
		assert.True(t, m.DB().Migrator().HasTable(table), "table %s should exist", table)
	}

	// Migrating twice is a no-op.
	require.NoError(t, m.Migrate(t.Context()))
}

func TestDialectorFor(t *testing.T) {
	tests := []struct {
		name    string
		cfg     conf.DatabaseConfig
		want    string
		wantErr bool
	}{
		{"sqlite", conf.DatabaseConfig{Driver: "sqlite", Path: "x.db"}, "sqlite", false},
		{"mysql", conf.DatabaseConfig{Driver: "mysql", DSN: "u:p@tcp(localhost:3306)/propops"}, "mysql", false},
		{"postgres", conf.DatabaseConfig{Driver: "postgres", DSN: "host=localhost user=u dbname=propops"}, "postgres", false},
		{"bad mysql dsn", conf.DatabaseConfig{Driver: "mysql", DSN: "not a dsn"}, "", true},
		{"unknown", conf.DatabaseConfig{Driver: "oracle"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := dialectorFor(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Name())
		})
	}
}
