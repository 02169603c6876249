package imagefile_test

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cloudpose/internal/imagefile"
	"cloudpose/internal/services"
	"cloudpose/internal/testsupport"
)

func TestOpenSniffsMIMEAndName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "person.png")
	data := testsupport.WritePNG(t, path, 4, 3)

	img, err := imagefile.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if img.Name != "person.png" {
		t.Fatalf("unexpected name %q", img.Name)
	}
	if img.MIMEType != "image/png" {
		t.Fatalf("unexpected mime %q", img.MIMEType)
	}
	if !img.IsImage() {
		t.Fatal("expected png to count as image")
	}
	if img.Size != int64(len(data)) {
		t.Fatalf("size = %d, want %d", img.Size, len(data))
	}
}

func TestOpenAcceptsNonImageFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("plain text content"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	img, err := imagefile.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if img.IsImage() {
		t.Fatalf("expected text file to be flagged, mime %q", img.MIMEType)
	}
}

func TestOpenRejectsDirectoriesAndMissingFiles(t *testing.T) {
	dir := t.TempDir()
	if _, err := imagefile.Open(dir); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for directory, got %v", err)
	}
	if _, err := imagefile.Open(filepath.Join(dir, "missing.jpg")); !errors.Is(err, services.ErrEncoding) {
		t.Fatalf("expected encoding error for missing file, got %v", err)
	}
}

func TestPreviewRoundTrip(t *testing.T) {
	data := testsupport.SamplePNG(t, 8, 8)
	img := imagefile.FromBytes("sample.png", data)

	preview, err := imagefile.Preview(context.Background(), img)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if !strings.HasPrefix(preview, "data:image/png;base64,") {
		t.Fatalf("unexpected preview prefix: %.40s", preview)
	}
	decoded, err := imagefile.DecodeDataURL(preview)
	if err != nil {
		t.Fatalf("DecodeDataURL: %v", err)
	}
	if string(decoded) != string(data) {
		t.Fatal("preview did not round trip to the original bytes")
	}
}

func TestEncodeBase64HasNoPrefix(t *testing.T) {
	data := []byte("\xff\xd8\xff\xe0 fake jpeg")
	img := imagefile.FromBytes("photo.jpg", data)

	encoded, err := imagefile.EncodeBase64(context.Background(), img)
	if err != nil {
		t.Fatalf("EncodeBase64: %v", err)
	}
	if encoded != base64.StdEncoding.EncodeToString(data) {
		t.Fatalf("unexpected payload %q", encoded)
	}
	if strings.Contains(encoded, "data:") {
		t.Fatal("payload must not carry a data URL prefix")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestEncodeBase64WrapsReadFailures(t *testing.T) {
	img := imagefile.FromOpener("broken.jpg", "image/jpeg", 10, func() (io.ReadCloser, error) {
		return io.NopCloser(failingReader{}), nil
	})
	_, err := imagefile.EncodeBase64(context.Background(), img)
	if !errors.Is(err, services.ErrEncoding) {
		t.Fatalf("expected encoding error, got %v", err)
	}
	if !strings.Contains(err.Error(), "disk gone") {
		t.Fatalf("expected cause in message, got %v", err)
	}
}

func TestEncodeBase64WithoutImage(t *testing.T) {
	_, err := imagefile.EncodeBase64(context.Background(), nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStripDataURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"data:image/jpeg;base64,QUJD", "QUJD"},
		{"base64,QUJD", "QUJD"},
		{"QUJD", "QUJD"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := imagefile.StripDataURL(tt.in); got != tt.want {
			t.Fatalf("StripDataURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDescribeReadsHeaders(t *testing.T) {
	img := imagefile.FromBytes("sample.png", testsupport.SamplePNG(t, 5, 7))
	meta, err := imagefile.Describe(context.Background(), img)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if meta.Format != "png" || meta.Width != 5 || meta.Height != 7 {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	if _, err := imagefile.DescribeBytes([]byte("nope")); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
