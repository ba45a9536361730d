package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go-photoid/internal/helpers"
	"go-photoid/internal/models"

	"github.com/gabriel-vasile/mimetype"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

var (
	ErrFileSystem  = errors.New("filesystem error") // Covers create, write, rename
	ErrInvalidName = errors.New("invalid output filename")
)

// Upper bound on numeric suffixes tried when the target name is taken.
const maxNameAttempts = 1000

// Save writes the artifact into dir under filename and returns the final path.
// The extension is corrected to match the detected content type. An existing
// file is never replaced: a numeric suffix (_1, _2, ...) is added instead. The
// write goes through a temporary file so a failed save never leaves a partial image.
func Save(fs afero.Fs, a *models.ResultArtifact, dir, filename string) (string, error) {
	if a == nil || len(a.Content) == 0 {
		return "", ErrEmptyArtifact
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if filename == "" {
		filename = a.Filename
	}
	if filename == "" || filename != filepath.Base(filename) || filename == "." || filename == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, filename)
	}
	if dir == "" {
		dir = "."
	}

	if err := fs.MkdirAll(filepath.Clean(dir), 0750); err != nil {
		return "", fmt.Errorf("%w: failed to create output directory %s: %w", ErrFileSystem, dir, err)
	}

	tempFile, err := afero.TempFile(fs, dir, filename+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: creating temporary file for %s: %w", ErrFileSystem, filename, err)
	}

	shouldCleanupTemp := true
	defer func() {
		if shouldCleanupTemp {
			log.Debugf("Cleaning up temporary file via defer: %s", tempFile.Name())
			if removeErr := fs.Remove(tempFile.Name()); removeErr != nil && !os.IsNotExist(removeErr) {
				log.WithError(removeErr).Warnf("Failed to remove temporary file %s during defer cleanup", tempFile.Name())
			}
		}
	}()

	counter := &helpers.CounterWriter{Writer: tempFile}
	if _, err := io.Copy(counter, bytes.NewReader(a.Content)); err != nil {
		_ = tempFile.Close()
		return "", fmt.Errorf("%w: writing temporary file %s: %w", ErrFileSystem, tempFile.Name(), err)
	}
	if err := tempFile.Close(); err != nil {
		return "", fmt.Errorf("%w: closing temporary file %s: %w", ErrFileSystem, tempFile.Name(), err)
	}

	finalPath, err := availablePath(fs, dir, withDetectedExtension(filename, a.Content))
	if err != nil {
		return "", err
	}
	log.Debugf("Renaming temporary file %s to final path %s", tempFile.Name(), finalPath)
	if err := fs.Rename(tempFile.Name(), finalPath); err != nil {
		return "", fmt.Errorf("%w: renaming temporary file %s to %s: %w", ErrFileSystem, tempFile.Name(), finalPath, err)
	}
	shouldCleanupTemp = false

	log.Infof("Saved %s (%s)", finalPath, helpers.BytesToSize(counter.Total))
	return finalPath, nil
}

// availablePath returns dir/filename, or the first dir/stem_N.ext that does not exist yet.
func availablePath(fs afero.Fs, dir, filename string) (string, error) {
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)

	candidate := filepath.Join(dir, filename)
	for i := 1; i <= maxNameAttempts; i++ {
		exists, err := afero.Exists(fs, candidate)
		if err != nil {
			return "", fmt.Errorf("%w: checking for existing file %s: %w", ErrFileSystem, candidate, err)
		}
		if !exists {
			return candidate, nil
		}
		log.Debugf("File %s already exists, trying next suffix", candidate)
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
	}
	return "", fmt.Errorf("%w: no free filename for %s in %s", ErrFileSystem, filename, dir)
}

func withDetectedExtension(filename string, content []byte) string {
	detected := mimetype.Detect(content).String()
	correctExt, ok := helpers.GetExtensionFromMimeType(detected)
	if !ok {
		log.Debugf("No standard extension for detected type %q, keeping %s", detected, filename)
		return filename
	}
	ext := filepath.Ext(filename)
	if strings.EqualFold(ext, correctExt) {
		return filename
	}
	return strings.TrimSuffix(filename, ext) + correctExt
}
