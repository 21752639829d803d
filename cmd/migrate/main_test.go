package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilename(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_init_schema_migrations.sql", true, 1, "init_schema_migrations"},
		{"0012_create_rising_payments.sql", true, 12, "create_rising_payments"},
		{"001_invalid.sql", false, 0, ""},        // wrong number format
		{"0001_test", false, 0, ""},              // missing .sql
		{"0001.sql", false, 0, ""},               // missing name
		{"invalid_0001_test.sql", false, 0, ""},  // wrong order
		{"0000_zero.sql", false, 0, ""},          // versions start at 1
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseFilename(tt.filename)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.version, version)
			assert.Equal(t, tt.name, name)
		})
	}
}

func TestChecksumIgnoresPlaceholders(t *testing.T) {
	content := []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.t` (id INT64);")

	assert.Equal(t, checksum(content), checksum([]byte(string(content))))
	assert.NotEqual(t, checksum(content), checksum([]byte("CREATE TABLE other (id INT64);")))
	assert.Equal(t, "CREATE TABLE `p.d.t` (id INT64);", render(content, "p", "d"))
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}

func TestReadMigrations(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"0002_second.sql": "SELECT 2 FROM `{{PROJECT_ID}}.{{DATASET_ID}}.x`",
		"0001_first.sql":  "SELECT 1",
		"README.md":       "not a migration",
	})

	migrations, err := readMigrations(dir, "proj", "ds", zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "first", migrations[0].Name)
	assert.Equal(t, 2, migrations[1].Version)
	assert.Equal(t, "SELECT 2 FROM `proj.ds.x`", migrations[1].SQL)
	assert.Len(t, migrations[1].Checksum, 64)
}

func TestReadMigrationsDuplicateVersion(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"0001_a.sql": "SELECT 1",
		"0001_b.sql": "SELECT 2",
	})

	_, err := readMigrations(dir, "proj", "ds", zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate migration version 0001")
}

func TestRepositoryMigrations(t *testing.T) {
	dir, err := findMigrationsDir("migrations/bigquery")
	require.NoError(t, err)

	migrations, err := readMigrations(dir, "proj", "ds", zerolog.Nop())
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version, "versions are contiguous")
		assert.NotContains(t, m.SQL, "{{", "%s has unreplaced placeholders", m.Filename)
		assert.True(t, strings.Contains(m.SQL, "`proj.ds."), "%s targets the dataset", m.Filename)
	}
}

func TestPending(t *testing.T) {
	migrations := []Migration{
		{Version: 1, Name: "a", Filename: "0001_a.sql", Checksum: "aaa"},
		{Version: 2, Name: "b", Filename: "0002_b.sql", Checksum: "bbb"},
		{Version: 3, Name: "c", Filename: "0003_c.sql", Checksum: "ccc"},
	}

	todo, err := pending(migrations, []AppliedMigration{
		{Version: 1, Checksum: "aaa"},
		{Version: 2},
	})
	require.NoError(t, err)
	require.Len(t, todo, 1)
	assert.Equal(t, 3, todo[0].Version)

	_, err = pending(migrations, []AppliedMigration{{Version: 2, Checksum: "changed"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0002_b.sql was modified")

	todo, err = pending(migrations, nil)
	require.NoError(t, err)
	assert.Len(t, todo, 3)
}
