package utils

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MaxScreenshotSize is the upload cap for a single screenshot.
const MaxScreenshotSize = 10 * 1024 * 1024

var (
	ErrScreenshotTooLarge = errors.New("screenshot must be at most 10MB")
	ErrScreenshotType     = errors.New("screenshot must be a jpeg, png, gif or webp image")
)

// allowed image MIME types mapped to a fallback extension for files uploaded
// without one.
var imageExtByType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// SaveScreenshot validates and stores an uploaded screenshot in dir, returning
// the stored filename. Names are <unix-millis>-<random-hex><ext> so they never
// collide and reveal nothing about the uploader.
func SaveScreenshot(dir string, fh *multipart.FileHeader) (string, error) {
	if fh.Size > MaxScreenshotSize {
		return "", ErrScreenshotTooLarge
	}
	contentType := fh.Header.Get("Content-Type")
	fallbackExt, ok := imageExtByType[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", ErrScreenshotType
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create uploads directory: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if ext == "" {
		ext = fallbackExt
	}
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate upload name: %w", err)
	}
	name := fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), hex.EncodeToString(buf), ext)

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dstPath := filepath.Join(dir, name)
	dst, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	// The header size is client supplied; enforce the cap on actual bytes too.
	lr := &io.LimitedReader{R: src, N: MaxScreenshotSize + 1}
	written, err := io.Copy(dst, lr)
	if err != nil {
		_ = dst.Close()
		_ = os.Remove(dstPath)
		return "", fmt.Errorf("write upload: %w", err)
	}
	if written > MaxScreenshotSize {
		_ = dst.Close()
		_ = os.Remove(dstPath)
		return "", ErrScreenshotTooLarge
	}

	return name, nil
}

// DeleteScreenshot removes a stored screenshot. Best-effort: a missing file is
// not an error, anything else is logged.
func DeleteScreenshot(dir, name string) {
	if name == "" {
		return
	}
	// stored names never contain path separators; refuse anything that does
	if filepath.Base(name) != name {
		return
	}
	if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
		if Sugar != nil {
			Sugar.Warnf("failed to delete screenshot %s: %v", name, err)
		}
	}
}
