package imagefile

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Metadata describes decoded image headers.
type Metadata struct {
	Format string
	Width  int
	Height int
}

// Describe decodes only the image header. Unsupported formats return an error;
// callers treat that as advisory.
func Describe(ctx context.Context, img *Image) (Metadata, error) {
	data, err := img.Read(ctx)
	if err != nil {
		return Metadata{}, err
	}
	return DescribeBytes(data)
}

// DescribeBytes decodes the header of an in-memory image.
func DescribeBytes(data []byte) (Metadata, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}
