package helpers

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"
)

var (
	whitespaceRe      = regexp.MustCompile(`\s+`)
	invalidSlugRe     = regexp.MustCompile(`[^a-z0-9._-]`)
	multiUnderscoreRe = regexp.MustCompile(`_+`)
	multiDotRe        = regexp.MustCompile(`\.{2,}`)
)

// ConvertToSlug lowercases s and reduces it to characters that are safe in a filename.
func ConvertToSlug(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, ":", "-")
	s = whitespaceRe.ReplaceAllString(s, "_")
	s = invalidSlugRe.ReplaceAllString(s, "")
	s = multiUnderscoreRe.ReplaceAllString(s, "_")
	s = multiDotRe.ReplaceAllString(s, ".")
	s = strings.ReplaceAll(s, "_-", "-")
	s = strings.ReplaceAll(s, "-_", "-")
	return strings.Trim(s, "_-.")
}

// BytesToSize renders a byte count with a binary unit suffix.
func BytesToSize(bytes uint64) string {
	if bytes == 0 {
		return "0B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	value := float64(bytes)
	i := 0
	for value >= 1024 && i < len(units)-1 {
		value /= 1024
		i++
	}
	return fmt.Sprintf("%.2f%s", value, units[i])
}

var mimeExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"image/bmp":  ".bmp",
	"image/tiff": ".tiff",
	"image/heic": ".heic",
}

// GetExtensionFromMimeType maps a media type (parameters allowed) to a file extension.
func GetExtensionFromMimeType(mimeType string) (string, bool) {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.ToLower(mimeType))
	}
	ext, ok := mimeExtensions[mediaType]
	return ext, ok
}

// IsImageMediaType reports whether the media type belongs to the image/* family.
func IsImageMediaType(mimeType string) bool {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "image/")
}

// CheckAndMakeDir makes sure dir exists, creating it (and parents) when needed.
func CheckAndMakeDir(dir string) bool {
	dir = filepath.Clean(dir)
	if info, err := os.Stat(dir); err == nil {
		if !info.IsDir() {
			log.Errorf("Path %s exists but is not a directory", dir)
			return false
		}
		return true
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.WithError(err).Errorf("Error creating directory %s", dir)
		return false
	}
	return true
}

// CounterWriter counts the bytes passed through to Writer.
type CounterWriter struct {
	Writer io.Writer
	Total  uint64
}

func (cw *CounterWriter) Write(p []byte) (int, error) {
	n, err := cw.Writer.Write(p)
	cw.Total += uint64(n)
	return n, err
}
