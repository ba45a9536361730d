package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// ErrShareCancelled is returned by a Sharer when the user dismissed the share.
var ErrShareCancelled = errors.New("share cancelled")

// Exit status a share command uses to report that the user cancelled.
const shareCancelledExitCode = 130

// ShareRequest is the payload handed to a Sharer.
type ShareRequest struct {
	Filename  string
	MediaType string
	Title     string
	Text      string
	Content   []byte
}

// Sharer hands a file to a platform share mechanism.
type Sharer interface {
	Available() bool
	Share(ctx context.Context, req ShareRequest) error
}

// CommandSharer shares by writing the image to a temporary directory and
// running Command with the file path as its last argument.
// PHOTOID_SHARE_TITLE and PHOTOID_SHARE_TEXT are set in the command's environment.
type CommandSharer struct {
	Fs      afero.Fs
	Command string
	Title   string
	Text    string
}

// NewCommandSharer returns nil when command is empty, which disables sharing.
func NewCommandSharer(command, title, text string) *CommandSharer {
	if strings.TrimSpace(command) == "" {
		return nil
	}
	return &CommandSharer{Fs: afero.NewOsFs(), Command: command, Title: title, Text: text}
}

func (s *CommandSharer) Available() bool {
	if s == nil {
		return false
	}
	fields := strings.Fields(s.Command)
	if len(fields) == 0 {
		return false
	}
	_, err := exec.LookPath(fields[0])
	return err == nil
}

func (s *CommandSharer) Share(ctx context.Context, req ShareRequest) error {
	fields := strings.Fields(s.Command)
	if len(fields) == 0 {
		return errors.New("share command is empty")
	}

	fs := s.Fs
	if fs == nil {
		// Must be the real filesystem, the command reads the file from disk.
		fs = afero.NewOsFs()
	}
	dir, err := afero.TempDir(fs, "", "photoid-share-")
	if err != nil {
		return fmt.Errorf("%w: creating share directory: %w", ErrFileSystem, err)
	}
	defer func() {
		if removeErr := fs.RemoveAll(dir); removeErr != nil {
			log.WithError(removeErr).Warnf("Failed to remove share directory %s", dir)
		}
	}()

	path := filepath.Join(dir, filepath.Base(req.Filename))
	if err := afero.WriteFile(fs, path, req.Content, 0600); err != nil {
		return fmt.Errorf("%w: writing share file: %w", ErrFileSystem, err)
	}

	title := req.Title
	if title == "" {
		title = s.Title
	}
	text := req.Text
	if text == "" {
		text = s.Text
	}

	args := append(fields[1:], path)
	// #nosec G204
	cmd := exec.CommandContext(ctx, fields[0], args...)
	cmd.Env = append(os.Environ(),
		"PHOTOID_SHARE_TITLE="+title,
		"PHOTOID_SHARE_TEXT="+text,
		"PHOTOID_SHARE_TYPE="+req.MediaType,
	)

	log.Debugf("[Share] Running %s %s", fields[0], strings.Join(args, " "))
	err = cmd.Run()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ErrShareCancelled
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == shareCancelledExitCode {
		return ErrShareCancelled
	}
	return fmt.Errorf("share command failed: %w", err)
}
