package worker

import (
	"bytes"
	"context"
	"fmt"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/PaulBabatuyi/WeShare/internal/models"
	"github.com/PaulBabatuyi/WeShare/internal/storage"
	"github.com/disintegration/imaging"
)

// ImageProcessor renders a JPEG preview of a stored image.
type ImageProcessor struct {
	storage  storage.Storage
	maxWidth int
}

func NewImageProcessor(store storage.Storage, maxWidth int) *ImageProcessor {
	return &ImageProcessor{storage: store, maxWidth: maxWidth}
}

// ProcessImage writes the thumbnail of f under f.ThumbnailKey and returns the
// original dimensions.
func (ip *ImageProcessor) ProcessImage(ctx context.Context, f models.FileRecord) (width, height int, err error) {
	rc, err := ip.storage.Get(ctx, f.StorageKey)
	if err != nil {
		return 0, 0, fmt.Errorf("open file: %w", err)
	}
	defer rc.Close()

	img, err := imaging.Decode(rc, imaging.AutoOrientation(true))
	if err != nil {
		return 0, 0, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height = bounds.Dx(), bounds.Dy()

	thumb := img
	if width > ip.maxWidth {
		// height 0 keeps the aspect ratio
		thumb = imaging.Resize(img, ip.maxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return 0, 0, fmt.Errorf("encode thumbnail: %w", err)
	}

	if _, err := ip.storage.Put(ctx, f.ThumbnailKey(), &buf); err != nil {
		return 0, 0, fmt.Errorf("save thumbnail: %w", err)
	}

	return width, height, nil
}

