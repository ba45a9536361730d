package paths

import (
	"fmt"
	"regexp"
	"strings"

	"go-photoid/internal/helpers"
)

// DefaultFilenamePattern yields names like photoid_photo_passport_eu.
const DefaultFilenamePattern = "photoid_{source}_{size}"

// Define allowed tags using a map for easy lookup
var allowedTags = map[string]struct{}{
	"source": {}, // source file base name, extension stripped
	"size":   {}, // preset id or {width}x{height}
	"preset": {},
	"width":  {},
	"height": {},
}

// Regex to find tags like {tagName}
var tagRegex = regexp.MustCompile(`\{([^}]+)\}`)

// ValidatePattern reports unknown tags and path separators in a filename pattern.
func ValidatePattern(pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return fmt.Errorf("filename pattern is empty")
	}
	if strings.ContainsAny(pattern, `/\`) {
		return fmt.Errorf("filename pattern must not contain path separators: %q", pattern)
	}
	for _, match := range tagRegex.FindAllStringSubmatch(pattern, -1) {
		if _, ok := allowedTags[match[1]]; !ok {
			return fmt.Errorf("unknown tag found in filename pattern: %s", match[0])
		}
	}
	return nil
}

// GenerateFilename substitutes placeholders in pattern with slugged values from data.
// The result is a bare filename without extension.
func GenerateFilename(pattern string, data map[string]string) (string, error) {
	if err := ValidatePattern(pattern); err != nil {
		return "", err
	}

	generated := pattern
	for _, match := range tagRegex.FindAllStringSubmatch(pattern, -1) {
		tagName := match[1]
		tagWithBraces := match[0]

		sanitizedValue := helpers.ConvertToSlug(data[tagName])
		if sanitizedValue == "" {
			// Missing, empty or fully-stripped values still leave a readable segment.
			sanitizedValue = "empty_" + tagName
		}
		generated = strings.ReplaceAll(generated, tagWithBraces, sanitizedValue)
	}

	generated = strings.Trim(generated, " .")
	if generated == "" {
		return "", fmt.Errorf("filename pattern resulted in an empty name: '%s'", pattern)
	}
	if strings.Contains(generated, "..") {
		return "", fmt.Errorf("generated filename contains invalid sequence '..': %s", generated)
	}
	return generated, nil
}
