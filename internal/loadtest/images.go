package loadtest

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"cloudpose/internal/logging"
	"cloudpose/internal/services"
)

// LoadImages reads every regular file in dir and returns their base64
// encodings in name order. Subdirectories are skipped and unreadable files are
// logged; an error is returned only when nothing could be loaded.
func LoadImages(dir string, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "loadtest", "load images", fmt.Sprintf("read %s", dir), err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	encoded := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			logger.Debug("skipping directory", logging.String("path", path))
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			logging.WarnWithContext(logger, "failed to load image", "image_load_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check file permissions"),
			)
			continue
		}
		encoded = append(encoded, base64.StdEncoding.EncodeToString(data))
	}

	if len(encoded) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "loadtest", "load images",
			fmt.Sprintf("no images loaded from %s; check that it exists and contains files", dir), nil)
	}
	logger.Info("images loaded", logging.Int("count", len(encoded)), logging.String("dir", dir))
	return encoded, nil
}
