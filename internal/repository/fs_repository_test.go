package repository

import (
	"io"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDirectory(t *testing.T) (afero.Fs, ImageDirectory) {
	t.Helper()
	fs := afero.NewMemMapFs()
	dir, err := NewImageDirectory(fs, "/srv/images", zap.NewNop())
	require.NoError(t, err)
	return fs, dir
}

func TestImageDirectoryCreatesRoot(t *testing.T) {
	fs, dir := newTestDirectory(t)

	ok, err := afero.DirExists(fs, "/srv/images")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/srv/images", dir.Path())

	names, err := dir.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestImageDirectoryCreateIsExclusive(t *testing.T) {
	fs, dir := newTestDirectory(t)

	w, err := dir.Create("photo.jpg")
	require.NoError(t, err)
	require.NoError(t, WriteAll(w, []byte("first")))

	_, err = dir.Create("photo.jpg")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrExist)

	data, err := afero.ReadFile(fs, "/srv/images/photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestImageDirectoryReplaceTruncates(t *testing.T) {
	_, dir := newTestDirectory(t)

	w, err := dir.Replace("photo_tn.jpg")
	require.NoError(t, err)
	require.NoError(t, WriteAll(w, []byte("a longer body")))

	w, err = dir.Replace("photo_tn.jpg")
	require.NoError(t, err)
	require.NoError(t, WriteAll(w, []byte("short")))

	r, err := dir.Open("photo_tn.jpg")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "short", string(data))
}

func TestImageDirectoryListAndRemove(t *testing.T) {
	fs, dir := newTestDirectory(t)
	require.NoError(t, afero.WriteFile(fs, "/srv/images/a.png", []byte("a"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/srv/images/a_tn.png", []byte("a"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/srv/other.png", []byte("x"), 0o644))

	names, err := dir.List()
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"a.png": {}, "a_tn.png": {}}, names)

	require.NoError(t, dir.Remove("a_tn.png"))
	names, err = dir.List()
	require.NoError(t, err)
	assert.NotContains(t, names, "a_tn.png")
}

func TestImageDirectoryStaysInsideRoot(t *testing.T) {
	fs, dir := newTestDirectory(t)
	require.NoError(t, afero.WriteFile(fs, "/srv/secret.txt", []byte("x"), 0o644))

	_, err := dir.Open("../secret.txt")
	assert.Error(t, err)
}
