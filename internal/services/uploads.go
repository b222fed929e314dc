package services

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// UploaderImpl stores base64 data-URL images on disk and hands back the
// public URL the page components reference.
type UploaderImpl struct {
	dir     string
	baseURL string
}

// NewUploader prepares the upload directory. baseURL is the public prefix
// uploads are served under (e.g. "/uploads").
func NewUploader(dir, baseURL string) (*UploaderImpl, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %q: %w", dir, err)
	}
	return &UploaderImpl{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

var extByMIME = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

// UploadFromBase64 decodes a data URL ("data:image/png;base64,...") and
// writes it under a fresh UUID filename. Only image MIME types are
// accepted; the original filename only contributes its extension when the
// MIME type doesn't determine one.
func (u *UploaderImpl) UploadFromBase64(filename, dataURL string) (string, error) {
	mime, payload, ok := splitDataURL(dataURL)
	if !ok {
		return "", fmt.Errorf("malformed data url")
	}
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("unsupported upload type: %s", mime)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("failed to decode image data: %w", err)
	}

	ext := extByMIME[mime]
	if ext == "" {
		ext = filepath.Ext(filename)
	}
	name := uuid.NewString() + ext

	if err := os.WriteFile(filepath.Join(u.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	return u.baseURL + "/" + name, nil
}

// Dir returns the directory uploads are written to (served statically).
func (u *UploaderImpl) Dir() string { return u.dir }

func splitDataURL(dataURL string) (mime, payload string, ok bool) {
	if !strings.HasPrefix(dataURL, "data:") {
		return "", "", false
	}
	rest := dataURL[len("data:"):]
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", "", false
	}
	if !strings.HasSuffix(meta, ";base64") {
		return "", "", false
	}
	mime = strings.TrimSuffix(meta, ";base64")
	if mime == "" {
		return "", "", false
	}
	return mime, payload, true
}
