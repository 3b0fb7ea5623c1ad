package archive_test

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/betstream/internal/adapters/archive"
)

func writePlain(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeGzip(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func collect(t *testing.T, path string) []string {
	t.Helper()
	var lines []string
	err := archive.EachLine(path, func(line []byte) error {
		lines = append(lines, string(line))
		return nil
	})
	require.NoError(t, err)
	return lines
}

func TestEachLine_Plain(t *testing.T) {
	path := writePlain(t, t.TempDir(), "feed.jsonl", "uno\ndos\ntres\n")

	assert.Equal(t, []string{"uno", "dos", "tres"}, collect(t, path))
}

func TestEachLine_Gzip(t *testing.T) {
	path := writeGzip(t, t.TempDir(), "feed.jsonl.gz", "uno\ndos\n")

	assert.Equal(t, []string{"uno", "dos"}, collect(t, path))
}

func TestEachLine_NoTrailingNewline(t *testing.T) {
	path := writePlain(t, t.TempDir(), "feed.jsonl", "uno\ndos")

	assert.Equal(t, []string{"uno", "dos"}, collect(t, path))
}

func TestEachLine_Restartable(t *testing.T) {
	path := writePlain(t, t.TempDir(), "feed.jsonl", "uno\ndos\n")

	first := collect(t, path)
	second := collect(t, path)
	assert.Equal(t, first, second)
}

func TestEachLine_CallbackErrorStopsIteration(t *testing.T) {
	path := writePlain(t, t.TempDir(), "feed.jsonl", "uno\ndos\ntres\n")

	calls := 0
	err := archive.EachLine(path, func(line []byte) error {
		calls++
		if calls == 2 {
			return os.ErrClosed
		}
		return nil
	})
	assert.ErrorIs(t, err, os.ErrClosed)
	assert.Equal(t, 2, calls)
}

func TestEachLine_MissingFile(t *testing.T) {
	err := archive.EachLine(filepath.Join(t.TempDir(), "nope.jsonl"), func([]byte) error { return nil })
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEachLine_CorruptGzip(t *testing.T) {
	path := writePlain(t, t.TempDir(), "feed.jsonl.gz", "esto no es gzip")

	err := archive.EachLine(path, func([]byte) error { return nil })
	assert.Error(t, err)
}

func TestExpand_GlobsAndLiterals(t *testing.T) {
	dir := t.TempDir()
	a := writePlain(t, dir, "2026-03-14.jsonl", "x\n")
	b := writePlain(t, dir, "2026-03-15.jsonl", "x\n")

	paths, err := archive.Expand([]string{
		filepath.Join(dir, "*.jsonl"),
		a, // duplicado vía glob y literal
		filepath.Join(dir, "literal-sin-match.jsonl"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{a, b, filepath.Join(dir, "literal-sin-match.jsonl")}, paths)
}

func TestExpand_BadPattern(t *testing.T) {
	_, err := archive.Expand([]string{"[!"})
	assert.Error(t, err)
}
