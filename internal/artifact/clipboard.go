package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	log "github.com/sirupsen/logrus"
)

var ErrNoClipboardTool = errors.New("no clipboard tool found")

// Clipboard writes images to the system clipboard.
type Clipboard interface {
	Available() bool
	WriteImage(ctx context.Context, mediaType string, content []byte) error
}

// ExecClipboard pipes images into an external clipboard tool such as
// wl-copy or xclip.
type ExecClipboard struct {
	// Candidates are tried in order; the first one found on PATH is used.
	Candidates []string
	lookPath   func(string) (string, error)
}

// NewExecClipboard returns a clipboard backed by wl-copy or xclip.
func NewExecClipboard() *ExecClipboard {
	return &ExecClipboard{
		Candidates: []string{"wl-copy", "xclip"},
		lookPath:   exec.LookPath,
	}
}

func (c *ExecClipboard) tool() (string, error) {
	lookPath := c.lookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	for _, name := range c.Candidates {
		if path, err := lookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w (tried %s)", ErrNoClipboardTool, strings.Join(c.Candidates, ", "))
}

// Available reports whether any candidate tool is installed.
func (c *ExecClipboard) Available() bool {
	_, err := c.tool()
	return err == nil
}

// WriteImage copies content to the clipboard as mediaType.
func (c *ExecClipboard) WriteImage(ctx context.Context, mediaType string, content []byte) error {
	path, err := c.tool()
	if err != nil {
		return err
	}

	var args []string
	if strings.HasSuffix(path, "xclip") {
		args = []string{"-selection", "clipboard", "-t", mediaType, "-i"}
	} else {
		args = []string{"--type", mediaType}
	}

	// #nosec G204
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = bytes.NewReader(content)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.Debugf("[Clipboard] Running %s %s", path, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
