package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var ErrDownloadTooLarge = errors.New("download exceeds size limit")

// DownloadImage fetches imageURL and returns its bytes with the sniffed content type.
// Bodies larger than maxSize are rejected rather than truncated.
func DownloadImage(ctx context.Context, client *http.Client, imageURL string, maxSize int64) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(io.LimitReader(resp.Body, maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image data: %w", err)
	}

	if int64(len(imageData)) > maxSize {
		return nil, "", fmt.Errorf("%w: more than %d bytes", ErrDownloadTooLarge, maxSize)
	}

	if len(imageData) == 0 {
		return nil, "", fmt.Errorf("empty image data")
	}

	return imageData, DetectContentType(imageData, resp.Header.Get("Content-Type")), nil
}

// DetectContentType returns declared when it names a concrete type, otherwise the
// type sniffed from the data.
func DetectContentType(data []byte, declared string) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && !strings.HasPrefix(strings.ToLower(declared), "application/octet-stream") {
		return declared
	}
	return mimetype.Detect(data).String()
}

// FilenameFromURL returns the last path element of rawURL, or fallback when there is none.
func FilenameFromURL(rawURL, fallback string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fallback
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return fallback
	}
	return base
}

// ExtensionForMIME returns a file extension (with dot) for an image MIME type.
func ExtensionForMIME(mimeType string) string {
	if mt := mimetype.Lookup(strings.ToLower(strings.TrimSpace(mimeType))); mt != nil {
		return mt.Extension()
	}
	return ""
}

// GenerateStorageKey builds a unique object key: <prefix>/<name>_<unix>_<uuid8><ext>.
func GenerateStorageKey(prefix, filename string) string {
	ext := filepath.Ext(filename)
	name := strings.TrimSuffix(filepath.Base(filename), ext)
	if name == "" || name == "." {
		name = "image"
	}
	timestamp := time.Now().Unix()
	id := uuid.New().String()[:8]

	return fmt.Sprintf("%s/%s_%d_%s%s", strings.Trim(prefix, "/"), name, timestamp, id, ext)
}
