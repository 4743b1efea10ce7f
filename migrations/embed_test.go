package migrations

import (
	"io/fs"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsHaveUpAndDown(t *testing.T) {
	files, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)
	for _, name := range files {
		raw, err := FS.ReadFile(name)
		require.NoError(t, err)
		body := string(raw)
		assert.True(t, strings.HasPrefix(body, "-- +goose Up"), name)
		assert.Contains(t, body, "-- +goose Down", name)
	}
}

func TestTeacherNamesUniquePerOwnerIgnoringCase(t *testing.T) {
	raw, err := FS.ReadFile("00002_create_teachers.sql")
	require.NoError(t, err)
	body := string(raw)

	index := regexp.MustCompile(`(?i)CREATE UNIQUE INDEX [^;]* ON teachers \(owner_id, lower\(name\)\)`)
	assert.Regexp(t, index, body)
	assert.NotRegexp(t, regexp.MustCompile(`(?i)UNIQUE \(owner_id, name\)`), body)
}
