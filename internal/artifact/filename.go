package artifact

import (
	"encoding/hex"
	"path/filepath"
	"strconv"
	"strings"

	"go-photoid/internal/helpers"
	"go-photoid/internal/models"
	"go-photoid/internal/outputspec"
	"go-photoid/internal/paths"

	log "github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"
)

// DefaultExtension is used when the media type has no known extension.
const DefaultExtension = ".png"

// SuggestedFilename derives the download name for a result, for example
// photoid_photo_passport_eu.png for photo.jpg converted to passport_eu.
func SuggestedFilename(source models.SourceFile, spec outputspec.OutputSpec, mediaType string) string {
	name, err := SuggestedFilenameFromPattern(paths.DefaultFilenamePattern, source, spec, mediaType)
	if err != nil {
		log.WithError(err).Warnf("[Artifact] Could not build filename from %q, using size only", source.Name)
		return "photoid_" + helpers.ConvertToSlug(spec.Token()) + extensionFor(mediaType)
	}
	return name
}

// SuggestedFilenameFromPattern is SuggestedFilename with a caller-supplied pattern.
func SuggestedFilenameFromPattern(pattern string, source models.SourceFile, spec outputspec.OutputSpec, mediaType string) (string, error) {
	data := map[string]string{
		"source": sourceSegment(source.Name),
		"size":   spec.Token(),
	}
	if id, ok := spec.PresetID(); ok {
		data["preset"] = string(id)
	}
	if w, h, ok := spec.Dimensions(); ok {
		data["width"] = strconv.Itoa(w)
		data["height"] = strconv.Itoa(h)
	}

	name, err := paths.GenerateFilename(pattern, data)
	if err != nil {
		return "", err
	}
	return name + extensionFor(mediaType), nil
}

func baseName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// sourceSegment is the source base name, or a short digest of it when no
// character of the name survives slugging (e.g. fully non-ASCII names).
func sourceSegment(name string) string {
	base := baseName(name)
	if base == "" || helpers.ConvertToSlug(base) != "" {
		return base
	}
	sum := blake3.Sum256([]byte(base))
	return "src-" + hex.EncodeToString(sum[:4])
}

func extensionFor(mediaType string) string {
	if ext, ok := helpers.GetExtensionFromMimeType(mediaType); ok {
		return ext
	}
	return DefaultExtension
}
