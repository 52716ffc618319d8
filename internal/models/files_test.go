package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveFileType(t *testing.T) {
	cases := map[string]FileType{
		"image/png":                 FileTypeImage,
		"image/jpeg":                FileTypeImage,
		"video/mp4":                 FileTypeVideo,
		"audio/mpeg":                FileTypeAudio,
		"application/pdf":           FileTypeDocument,
		"text/plain; charset=utf-8": FileTypeOther,
		"":                          FileTypeOther,
	}
	for contentType, want := range cases {
		assert.Equal(t, want, DeriveFileType(contentType), contentType)
	}
}

func TestThumbnailKey(t *testing.T) {
	f := FileRecord{StorageKey: "abc/0.png"}
	assert.Equal(t, "abc/0.png.thumb.jpg", f.ThumbnailKey())
	assert.Equal(t, FileTypeOther, f.FileType())
}
