package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"agrimarket-backend/internal/services"
	"agrimarket-backend/internal/utils"
)

const uploadsURLPrefix = "/uploads/"

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// ImageStore saves product images to disk and maps them to /uploads URLs
type ImageStore struct {
	dir          string
	maxSize      int64
	allowedTypes map[string]bool
}

// NewImageStore creates an image store rooted at dir
func NewImageStore(dir string, maxSize int64, allowedTypes []string) *ImageStore {
	allowed := make(map[string]bool, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return &ImageStore{dir: dir, maxSize: maxSize, allowedTypes: allowed}
}

// Save validates and stores an uploaded image, returning its public URL.
// The type is sniffed from the content, not taken from the client.
func (s *ImageStore) Save(header *multipart.FileHeader) (string, error) {
	if header.Size > s.maxSize {
		return "", &services.Error{
			Kind:    services.ErrValidation,
			Message: fmt.Sprintf("Image too large. Maximum size is %d bytes", s.maxSize),
		}
	}

	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()

	sniff := make([]byte, 512)
	n, err := io.ReadFull(file, sniff)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	contentType := http.DetectContentType(sniff[:n])
	if !s.allowedTypes[contentType] {
		return "", &services.Error{
			Kind:    services.ErrValidation,
			Message: "Invalid file type. Only JPEG, PNG and WebP images are allowed",
		}
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind upload: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	// extension follows the sniffed type, whatever the client named it
	filename := utils.TimestampedFilename(imageExtensions[contentType], time.Now())

	dst, err := os.Create(filepath.Join(s.dir, filename))
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(file, s.maxSize+1)); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("failed to save image: %w", err)
	}

	return uploadsURLPrefix + filename, nil
}

// Remove deletes the file behind an /uploads URL; other URLs are ignored
func (s *ImageStore) Remove(url string) {
	if !strings.HasPrefix(url, uploadsURLPrefix) {
		return
	}
	name := path.Base(url)
	if name == "." || name == "/" {
		return
	}
	os.Remove(filepath.Join(s.dir, name))
}
