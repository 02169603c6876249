package imagefile

import (
	"context"
	"encoding/base64"
	"strings"
)

const dataURLMarker = "base64,"

// EncodeBase64 reads the whole image and returns its standard base64 encoding
// without a data URL prefix.
func EncodeBase64(ctx context.Context, img *Image) (string, error) {
	data, err := img.Read(ctx)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Preview returns a data URL suitable for displaying the image inline.
func Preview(ctx context.Context, img *Image) (string, error) {
	payload, err := EncodeBase64(ctx, img)
	if err != nil {
		return "", err
	}
	return DataURL(img.MIMEType, payload), nil
}

// DataURL assembles data:<mime>;base64,<payload>.
func DataURL(mimeType, payload string) string {
	if strings.TrimSpace(mimeType) == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";" + dataURLMarker + payload
}

// StripDataURL removes everything up to and including "base64," so data URLs and
// bare payloads can be handled alike.
func StripDataURL(value string) string {
	if idx := strings.Index(value, dataURLMarker); idx >= 0 {
		return value[idx+len(dataURLMarker):]
	}
	return value
}

// DecodeDataURL returns the raw bytes carried by a data URL or bare base64 payload.
func DecodeDataURL(value string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(StripDataURL(strings.TrimSpace(value)))
}
