package storage

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// SanitizeFilename keeps alphanumerics, spaces, dots and underscores.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r == ' ' || r == '.' || r == '_' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// ObjectKey builds the bucket key for an uploaded file:
// <prefix>/<userID>_<unixts>_<sanitized original name>.
func ObjectKey(prefix string, userID uint, originalName string) string {
	return fmt.Sprintf("%s/%d_%d_%s", prefix, userID, time.Now().Unix(), SanitizeFilename(originalName))
}

// ContentTypeForFile maps a filename extension to a MIME type.
func ContentTypeForFile(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
