package imagefile

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"cloudpose/internal/services"
)

const sniffLen = 512

// Opener returns a fresh reader over the image content.
type Opener func() (io.ReadCloser, error)

// Image is a file the user selected for analysis.
type Image struct {
	Name     string
	MIMEType string
	Size     int64

	open Opener
}

// Open stats the file at path and returns an Image that reads lazily from disk.
// The MIME type is advisory: files that do not look like images are still
// returned, and IsImage reports whether the type matched image/*.
func Open(path string) (*Image, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrValidation, "imagefile", "open", "path is empty", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, services.Wrap(services.ErrEncoding, "imagefile", "open", "stat image", err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "imagefile", "open", fmt.Sprintf("%s is a directory", path), nil)
	}

	head, err := readHead(path)
	if err != nil {
		return nil, services.Wrap(services.ErrEncoding, "imagefile", "open", "read image header", err)
	}

	return &Image{
		Name:     filepath.Base(path),
		MIMEType: detectMIME(filepath.Base(path), head),
		Size:     info.Size(),
		open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// FromBytes wraps in-memory content as an Image. The slice is not copied.
func FromBytes(name string, data []byte) *Image {
	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	return &Image{
		Name:     name,
		MIMEType: detectMIME(name, head),
		Size:     int64(len(data)),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FromOpener builds an Image around a caller-supplied content source.
func FromOpener(name, mimeType string, size int64, open Opener) *Image {
	return &Image{Name: name, MIMEType: mimeType, Size: size, open: open}
}

// IsImage reports whether the sniffed MIME type falls under image/*.
func (img *Image) IsImage() bool {
	if img == nil {
		return false
	}
	return strings.HasPrefix(img.MIMEType, "image/")
}

// Read returns the full content of the image.
func (img *Image) Read(ctx context.Context) ([]byte, error) {
	if img == nil || img.open == nil {
		return nil, services.Wrap(services.ErrValidation, "imagefile", "read", "no image selected", nil)
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, services.Wrap(services.ErrEncoding, "imagefile", "read", img.Name, err)
		}
	}
	rc, err := img.open()
	if err != nil {
		return nil, services.Wrap(services.ErrEncoding, "imagefile", "read", img.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, services.Wrap(services.ErrEncoding, "imagefile", "read", img.Name, err)
	}
	return data, nil
}

func readHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

func detectMIME(name string, head []byte) string {
	if len(head) > 0 {
		sniffed := http.DetectContentType(head)
		if sniffed != "application/octet-stream" {
			return stripParams(sniffed)
		}
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		return stripParams(byExt)
	}
	return "application/octet-stream"
}

func stripParams(mediaType string) string {
	if idx := strings.IndexByte(mediaType, ';'); idx >= 0 {
		mediaType = mediaType[:idx]
	}
	return strings.TrimSpace(mediaType)
}
