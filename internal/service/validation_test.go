package service

import (
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeExtension(t *testing.T) {
	cases := map[string]string{
		"a.txt":                  ".txt",
		"photo.JPEG":             ".jpeg",
		"archive.tar.gz":         ".gz",
		"noext":                  "",
		"":                       "",
		"dir/evil.sh":            ".sh",
		`dir\evil.exe`:           ".exe",
		"x.t/../y":               "",
		"bad.ext!":               "",
		"trailing.":              "",
		"long.abcdefghijklmnopq": "",
	}
	for name, want := range cases {
		assert.Equal(t, want, safeExtension(name), name)
	}
}

func TestSniffContentTypeKeepsStream(t *testing.T) {
	payload := strings.Repeat("x", sniffLen*2)
	r, contentType, err := sniffContentType(strings.NewReader(payload))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(contentType, "text/plain"), contentType)

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))
}

func TestSniffContentTypeEmpty(t *testing.T) {
	r, _, err := sniffContentType(strings.NewReader(""))
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestValidUploadID(t *testing.T) {
	id := uuid.NewString()
	assert.True(t, validUploadID(id))
	assert.False(t, validUploadID(strings.ToUpper(id)))
	assert.False(t, validUploadID("{"+id+"}"))
	assert.False(t, validUploadID("urn:uuid:"+id))
	assert.False(t, validUploadID("1700000000000"))
}
