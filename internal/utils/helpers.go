package utils

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SafeStringPointer returns nil for blank strings
func SafeStringPointer(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// TimestampedFilename builds a collision-free upload name that keeps the
// original extension, e.g. 1700000000000000000-1a2b3c4d.jpg
func TimestampedFilename(original string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(original))
	if len(ext) > 8 {
		ext = ""
	}
	return fmt.Sprintf("%d-%s%s", now.UnixNano(), uuid.New().String()[:8], ext)
}
