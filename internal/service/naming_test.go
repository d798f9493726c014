package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgupload/internal/domain"
)

func set(names ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		in, base, ext string
	}{
		{"photo.jpg", "photo", ".jpg"},
		{"archive.tar.gz", "archive.tar", ".gz"},
		{"README", "README", ""},
		{".profile", ".profile", ""},
		{"trailing.", "trailing", "."},
	}
	for _, tt := range tests {
		base, ext := SplitName(tt.in)
		assert.Equal(t, tt.base, base, tt.in)
		assert.Equal(t, tt.ext, ext, tt.in)
	}
}

func TestThumbName(t *testing.T) {
	assert.Equal(t, "photo_tn.jpg", ThumbName("photo.jpg"))
	assert.Equal(t, "scan_tn", ThumbName("scan"))
}

func TestResolveNameStable(t *testing.T) {
	name, err := ResolveName("photo.jpg", set("other.jpg", "photo.png"))
	require.NoError(t, err)
	assert.Equal(t, "photo.jpg", name)

	name, err = ResolveName("photo.jpg", nil)
	require.NoError(t, err)
	assert.Equal(t, "photo.jpg", name)
}

func TestResolveNameUniqueAndKeepsExtension(t *testing.T) {
	existing := set("photo.jpg")
	for i := 0; i < 200; i++ {
		name, err := ResolveName("photo.jpg", existing)
		require.NoError(t, err)
		assert.NotContains(t, existing, name)
		assert.True(t, strings.HasPrefix(name, "photo"))
		assert.True(t, strings.HasSuffix(name, ".jpg"))

		_, ext := SplitName(name)
		assert.Equal(t, ".jpg", ext)
		existing[name] = struct{}{}
	}
}

func TestResolveNameAppendsOneLetter(t *testing.T) {
	name, err := ResolveName("photo.jpg", set("photo.jpg"))
	require.NoError(t, err)
	require.Len(t, name, len("photoX.jpg"))
	assert.Contains(t, letters, string(name[len("photo")]))
}

func TestResolveNameWithoutExtension(t *testing.T) {
	next := func() byte { return 'q' }
	name, err := resolveName("scan", func(n string) bool { return n == "scan" }, next)
	require.NoError(t, err)
	assert.Equal(t, "scanq", name)
}

func TestResolveNameDeterministicSource(t *testing.T) {
	seq := []byte("abc")
	i := 0
	next := func() byte {
		b := seq[i%len(seq)]
		i++
		return b
	}
	taken := set("photo.jpg", "photoa.jpg")
	name, err := resolveName("photo.jpg", func(n string) bool { _, ok := taken[n]; return ok }, next)
	require.NoError(t, err)
	assert.Equal(t, "photoab.jpg", name)
}

func TestResolveNameExhausted(t *testing.T) {
	calls := 0
	_, err := resolveName("photo.jpg", func(string) bool { return true }, func() byte {
		calls++
		return 'x'
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNameResolutionExhausted)
	assert.Equal(t, MaxNameAttempts, calls)
}

func TestCleanFilename(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "photo.jpg", want: "photo.jpg"},
		{in: "../../etc/passwd", want: "passwd"},
		{in: `C:\Users\me\Pictures\cat.png`, want: "cat.png"},
		{in: "", wantErr: true},
		{in: "..", wantErr: true},
		{in: "/", wantErr: true},
	}
	for _, tt := range tests {
		got, err := CleanFilename(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, domain.ErrInvalidFilename, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
