package models

import (
	"strings"
	"time"
)

// Manifest ties an upload id to the files submitted with it.
type Manifest struct {
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"createdAt"`
	Files     []FileRecord `json:"files"`
}

// FileRecord is one stored file of a manifest. OriginalName is display-only
// and never used to build StorageKey.
type FileRecord struct {
	OriginalName string `json:"name"`
	StorageKey   string `json:"storageKey"`
	ContentType  string `json:"contentType"`
	Size         int64  `json:"size"`
}

func (f FileRecord) FileType() FileType {
	return DeriveFileType(f.ContentType)
}

// ThumbnailKey is where the worker writes the preview of an image file.
func (f FileRecord) ThumbnailKey() string {
	return f.StorageKey + ".thumb.jpg"
}

type FileType string

const (
	FileTypeImage    FileType = "image"
	FileTypeVideo    FileType = "video"
	FileTypeAudio    FileType = "audio"
	FileTypeDocument FileType = "document"
	FileTypeOther    FileType = "other"
)

func DeriveFileType(contentType string) FileType {
	if strings.HasPrefix(contentType, "image/") {
		return FileTypeImage
	}
	if strings.HasPrefix(contentType, "video/") {
		return FileTypeVideo
	}
	if strings.HasPrefix(contentType, "audio/") {
		return FileTypeAudio
	}
	if strings.Contains(contentType, "pdf") {
		return FileTypeDocument
	}
	return FileTypeOther
}
