// Package artifact owns the transient resources behind a conversion result:
// the in-memory handle used for preview, plus the download, clipboard and
// share actions built on it.
package artifact

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"mime"
	"sync"
	"time"

	"go-photoid/internal/helpers"
	"go-photoid/internal/models"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"
)

// HandlePrefix starts every artifact handle.
const HandlePrefix = "blob:photoid/"

var (
	ErrEmptyArtifact  = errors.New("artifact content is empty")
	ErrHandleReleased = errors.New("artifact handle has been released")
)

// Manager allocates and releases artifact handles and runs the actions on them.
type Manager struct {
	clipboard Clipboard
	sharer    Sharer
	live      map[string]*models.ResultArtifact
	allocated int
	mu        sync.Mutex
}

// NewManager creates a Manager. A nil clipboard or sharer means the platform lacks that capability.
func NewManager(clipboard Clipboard, sharer Sharer) *Manager {
	return &Manager{
		clipboard: clipboard,
		sharer:    sharer,
		live:      make(map[string]*models.ResultArtifact),
	}
}

// Present copies content into a new artifact and allocates its handle.
// The media type is inferred from content when mediaType is not an image type.
func (m *Manager) Present(content []byte, mediaType, filename string) (*models.ResultArtifact, error) {
	if len(content) == 0 {
		return nil, ErrEmptyArtifact
	}

	if !helpers.IsImageMediaType(mediaType) {
		detected := mimetype.Detect(content).String()
		log.Debugf("[Artifact] Declared media type %q replaced by detected %q", mediaType, detected)
		mediaType = detected
	}
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = parsed
	}

	data := make([]byte, len(content))
	copy(data, content)
	sum := blake3.Sum256(data)

	a := &models.ResultArtifact{
		Handle:    HandlePrefix + uuid.NewString(),
		Content:   data,
		MediaType: mediaType,
		Filename:  filename,
		Digest:    hex.EncodeToString(sum[:]),
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.live[a.Handle] = a
	m.allocated++
	live := len(m.live)
	m.mu.Unlock()

	log.Debugf("[Artifact] Allocated %s (%s, %s, live=%d)", a.Handle, a.MediaType, helpers.BytesToSize(uint64(len(data))), live)
	return a, nil
}

// Release frees the handle behind a. Releasing twice, or releasing nil, is a no-op.
func (m *Manager) Release(a *models.ResultArtifact) {
	if a == nil {
		return
	}
	m.mu.Lock()
	_, ok := m.live[a.Handle]
	delete(m.live, a.Handle)
	live := len(m.live)
	m.mu.Unlock()

	if ok {
		log.Debugf("[Artifact] Released %s (live=%d)", a.Handle, live)
	}
}

// ReleaseAll frees every live handle.
func (m *Manager) ReleaseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for handle := range m.live {
		delete(m.live, handle)
	}
}

// Open resolves a handle to its artifact.
func (m *Manager) Open(handle string) (*models.ResultArtifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.live[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandleReleased, handle)
	}
	return a, nil
}

// Live returns the number of handles currently allocated.
func (m *Manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// Allocated returns the number of handles allocated over the manager's lifetime.
func (m *Manager) Allocated() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allocated
}

// CanCopy reports whether a clipboard is available.
func (m *Manager) CanCopy() bool {
	return m.clipboard != nil && m.clipboard.Available()
}

// CopyToClipboard writes the artifact's image to the system clipboard.
// Failures are returned as *models.ErrorInfo and are not fatal to the session.
func (m *Manager) CopyToClipboard(ctx context.Context, a *models.ResultArtifact) error {
	if !m.CanCopy() {
		return models.NewErrorInfo(models.KindClipboardUnavailable, "clipboard is not available on this system", nil)
	}
	if a == nil {
		return models.NewErrorInfo(models.KindClipboardWriteFailed, "nothing to copy", nil)
	}

	current, err := m.Open(a.Handle)
	if err != nil {
		return models.NewErrorInfo(models.KindClipboardWriteFailed, "could not copy image: result is no longer available", err)
	}

	if err := m.clipboard.WriteImage(ctx, current.MediaType, current.Content); err != nil {
		log.WithError(err).Warn("[Artifact] Clipboard write failed")
		return models.NewErrorInfo(models.KindClipboardWriteFailed, "could not copy image to clipboard", err)
	}
	log.Infof("Copied %s to clipboard", current.Filename)
	return nil
}

// CanShare reports whether a native share capability is configured.
// Callers hide the share action when it is false.
func (m *Manager) CanShare() bool {
	return m.sharer != nil && m.sharer.Available()
}

// Share hands the artifact to the native share capability. A share the user
// cancels returns nil.
func (m *Manager) Share(ctx context.Context, a *models.ResultArtifact, filename string) error {
	if !m.CanShare() {
		return models.NewErrorInfo(models.KindShareUnavailable, "sharing is not available on this system", nil)
	}
	if a == nil {
		return models.NewErrorInfo(models.KindShareFailed, "nothing to share", nil)
	}

	current, err := m.Open(a.Handle)
	if err != nil {
		return models.NewErrorInfo(models.KindShareFailed, "could not share image: result is no longer available", err)
	}
	if filename == "" {
		filename = current.Filename
	}

	err = m.sharer.Share(ctx, ShareRequest{
		Filename:  filename,
		MediaType: current.MediaType,
		Content:   current.Content,
	})
	switch {
	case err == nil:
		log.Infof("Shared %s", filename)
		return nil
	case errors.Is(err, ErrShareCancelled):
		log.Info("Share cancelled")
		return nil
	default:
		log.WithError(err).Warn("[Artifact] Share failed")
		return models.NewErrorInfo(models.KindShareFailed, "could not share image", err)
	}
}
