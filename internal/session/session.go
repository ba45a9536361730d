// Package session drives one photo conversion: source selection, output
// size input, a single in-flight request to the processing service, and the
// resulting artifact.
package session

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"sync"

	"go-photoid/internal/api"
	"go-photoid/internal/artifact"
	"go-photoid/internal/helpers"
	"go-photoid/internal/models"
	"go-photoid/internal/outputspec"
	"go-photoid/internal/paths"

	"github.com/gabriel-vasile/mimetype"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// DefaultMaxFileSize matches the service's upload limit.
const DefaultMaxFileSize int64 = 10 << 20

var (
	ErrClosed   = errors.New("session is closed")
	ErrNoResult = errors.New("no converted image available")
)

// Source types the service accepts.
var acceptedMediaTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
}

// Previewer converts a source image to an output spec. *api.Client implements it.
type Previewer interface {
	Preview(ctx context.Context, file models.SourceFile, spec outputspec.OutputSpec) (*api.PreviewResult, error)
}

// Snapshot is a consistent copy of the session's observable state.
type Snapshot struct {
	Artifact   *models.ResultArtifact
	Err        *models.ErrorInfo
	SourceName string
	Input      outputspec.Input
	SourceSize int
	Generation uint64
	// Version increases with every state change; listeners never see it go backwards.
	Version    uint64
	Pending    int
	State      models.SessionState
	HasSource  bool
}

// CanSubmit reports whether Submit would start a request.
func (s Snapshot) CanSubmit() bool {
	return s.HasSource && s.State != models.StateSubmitting
}

// Option configures a Session.
type Option func(*Session)

// WithFs sets the filesystem used by SelectFile and Save.
func WithFs(fs afero.Fs) Option {
	return func(s *Session) { s.fs = fs }
}

// WithMaxFileSize sets the largest accepted source file in bytes.
func WithMaxFileSize(n int64) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxFileSize = n
		}
	}
}

// WithFilenamePattern sets the pattern for suggested result filenames.
func WithFilenamePattern(pattern string) Option {
	return func(s *Session) {
		if pattern != "" {
			s.filenamePattern = pattern
		}
	}
}

// WithInput sets the initial size input.
func WithInput(in outputspec.Input) Option {
	return func(s *Session) { s.input = in }
}

// Session is safe for concurrent use. Only the latest selected source is
// ever submitted, and a response is applied only if no newer selection or
// submission happened while it was in flight.
type Session struct {
	backend         Previewer
	artifacts       *artifact.Manager
	fs              afero.Fs
	filenamePattern string
	maxFileSize     int64

	mu         sync.Mutex
	state      models.SessionState
	source     *models.SourceFile
	input      outputspec.Input
	result     *models.ResultArtifact
	lastErr    *models.ErrorInfo
	generation uint64
	pending    int
	cancel     context.CancelFunc
	done       chan struct{}
	version    uint64
	listeners  map[int]func(Snapshot)
	nextID     int
	closed     bool

	notifyMu sync.Mutex
	notified uint64

	inflight sync.WaitGroup
}

// New creates an idle session.
func New(backend Previewer, artifacts *artifact.Manager, opts ...Option) *Session {
	if artifacts == nil {
		artifacts = artifact.NewManager(nil, nil)
	}
	s := &Session{
		backend:         backend,
		artifacts:       artifacts,
		fs:              afero.NewOsFs(),
		filenamePattern: paths.DefaultFilenamePattern,
		maxFileSize:     DefaultMaxFileSize,
		state:           models.StateIdle,
		input:           outputspec.DefaultInput(),
		listeners:       make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SelectFile reads path and makes it the active source.
// Oversized or non JPEG/PNG files are rejected with a ValidationError and
// leave the session untouched. A read failure moves the session to Failed.
func (s *Session) SelectFile(path string) error {
	info, err := s.fs.Stat(path)
	if err != nil {
		return s.failRead(path, err)
	}
	if info.IsDir() {
		return s.failRead(path, fmt.Errorf("%s is a directory", path))
	}
	if info.Size() > s.maxFileSize {
		return models.NewErrorInfo(models.KindValidation,
			fmt.Sprintf("file too large: %s (maximum %s)", helpers.BytesToSize(uint64(info.Size())), helpers.BytesToSize(uint64(s.maxFileSize))), nil)
	}

	content, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return s.failRead(path, err)
	}

	return s.Select(models.SourceFile{
		Name:      filepath.Base(path),
		MediaType: mimetype.Detect(content).String(),
		Content:   content,
	})
}

func (s *Session) failRead(path string, cause error) error {
	log.WithError(cause).Warnf("[Session] Could not read %s", path)
	info := models.NewErrorInfo(models.KindLocalReadFailure, "could not read selected file", cause)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.abandonLocked()
	s.source = nil
	s.lastErr = info
	s.state = models.StateFailed
	snap := s.changedLocked()
	s.mu.Unlock()

	s.notify(snap)
	return info
}

// Select makes file the active source. Any in-flight request is abandoned
// and the previous result is released. An empty MediaType is detected from
// the content; anything other than JPEG or PNG is a ValidationError.
func (s *Session) Select(file models.SourceFile) error {
	if len(file.Content) == 0 {
		return models.NewErrorInfo(models.KindValidation, "selected file is empty", nil)
	}
	if file.MediaType == "" {
		file.MediaType = mimetype.Detect(file.Content).String()
	}
	if parsed, _, err := mime.ParseMediaType(file.MediaType); err == nil {
		file.MediaType = parsed
	}
	if _, ok := acceptedMediaTypes[file.MediaType]; !ok {
		return models.NewErrorInfo(models.KindValidation,
			fmt.Sprintf("unsupported file type %s: only JPEG and PNG images are accepted", file.MediaType), nil)
	}
	src := file.Clone()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.abandonLocked()
	s.source = &src
	s.lastErr = nil
	s.state = models.StateFileSelected
	snap := s.changedLocked()
	s.mu.Unlock()

	log.Debugf("[Session] Selected %s (%s, %s, generation %d)", src.Name, src.MediaType, helpers.BytesToSize(uint64(src.Size())), snap.Generation)
	s.notify(snap)
	return nil
}

// abandonLocked invalidates the current generation, cancels the in-flight
// request and releases the current artifact. Callers hold s.mu.
func (s *Session) abandonLocked() {
	s.generation++
	if s.cancel != nil {
		log.Debugf("[Session] Abandoning in-flight request, generation now %d", s.generation)
		s.cancel()
		s.cancel = nil
	}
	s.pending = 0
	s.done = nil
	s.releaseResultLocked()
}

func (s *Session) releaseResultLocked() {
	if s.result != nil {
		s.artifacts.Release(s.result)
		s.result = nil
	}
}

// SetMode switches between preset and custom sizing.
func (s *Session) SetMode(mode outputspec.Mode) {
	s.updateInput(func(in *outputspec.Input) { in.Mode = mode })
}

// SetPreset selects the preset used in preset mode.
func (s *Session) SetPreset(id outputspec.PresetID) {
	s.updateInput(func(in *outputspec.Input) { in.Preset = id })
}

// SetCustomSize sets the dimensions used in custom mode. Values are checked at submit.
func (s *Session) SetCustomSize(width, height int) {
	s.updateInput(func(in *outputspec.Input) {
		in.CustomWidth = width
		in.CustomHeight = height
	})
}

// SetInput replaces the whole size input.
func (s *Session) SetInput(input outputspec.Input) {
	s.updateInput(func(in *outputspec.Input) { *in = input })
}

func (s *Session) updateInput(fn func(*outputspec.Input)) {
	s.mu.Lock()
	fn(&s.input)
	snap := s.changedLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// Submit starts converting the active source with the current size input.
// It returns once the request is started; use Wait or OnChange for the outcome.
// Submitting while a request is in flight does nothing.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state == models.StateSubmitting {
		s.mu.Unlock()
		log.Debug("[Session] Submit ignored, a request is already in flight")
		return nil
	}
	if s.source == nil {
		s.mu.Unlock()
		return models.NewErrorInfo(models.KindNoFileSelected, "no file selected", nil)
	}
	spec := s.input.Build()
	if err := spec.Validate(); err != nil {
		s.mu.Unlock()
		return models.NewErrorInfo(models.KindValidation, err.Error(), err)
	}

	s.releaseResultLocked()
	s.generation++
	gen := s.generation
	reqCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.pending = 1
	s.lastErr = nil
	s.state = models.StateSubmitting
	src := s.source.Clone()
	s.inflight.Add(1)
	snap := s.changedLocked()
	s.mu.Unlock()

	log.Debugf("[Session] Submitting %s as %s (generation %d)", src.Name, spec, gen)
	s.notify(snap)

	go s.run(reqCtx, cancel, done, gen, src, spec)
	return nil
}

func (s *Session) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}, gen uint64, src models.SourceFile, spec outputspec.OutputSpec) {
	defer s.inflight.Done()
	defer close(done)
	defer cancel()

	result, err := s.backend.Preview(ctx, src, spec)

	s.mu.Lock()
	if s.closed || gen != s.generation {
		current := s.generation
		s.mu.Unlock()
		log.Debugf("[Session] Discarding response for generation %d (current %d)", gen, current)
		return
	}

	s.cancel = nil
	s.pending = 0
	if err != nil {
		s.lastErr = classify(err)
		s.state = models.StateFailed
	} else {
		filename := s.suggestedFilename(src, spec, result.MediaType)
		a, perr := s.artifacts.Present(result.Content, result.MediaType, filename)
		if perr != nil {
			s.lastErr = models.NewErrorInfo(models.KindNetworkFailure, api.ErrMalformedResponse.Error(), perr)
			s.state = models.StateFailed
		} else {
			s.result = a
			s.state = models.StateSucceeded
		}
	}
	snap := s.changedLocked()
	s.mu.Unlock()

	if snap.Err != nil {
		log.WithError(snap.Err).Infof("[Session] Conversion of %s failed (%s)", src.Name, snap.Err.Kind)
	} else {
		log.Debugf("[Session] Conversion of %s succeeded: %s", src.Name, snap.Artifact.Handle)
	}
	s.notify(snap)
}

func (s *Session) suggestedFilename(src models.SourceFile, spec outputspec.OutputSpec, mediaType string) string {
	if s.filenamePattern != paths.DefaultFilenamePattern {
		name, err := artifact.SuggestedFilenameFromPattern(s.filenamePattern, src, spec, mediaType)
		if err == nil {
			return name
		}
		log.WithError(err).Warn("[Session] Filename pattern failed, using default name")
	}
	return artifact.SuggestedFilename(src, spec, mediaType)
}

// classify maps a request error onto the user-facing taxonomy.
func classify(err error) *models.ErrorInfo {
	var backendErr *api.BackendError
	if errors.As(err, &backendErr) {
		return models.NewErrorInfo(models.KindBackend, backendErr.Detail, err)
	}
	if errors.Is(err, api.ErrMalformedResponse) {
		return models.NewErrorInfo(models.KindNetworkFailure, api.ErrMalformedResponse.Error(), err)
	}
	return models.NewErrorInfo(models.KindNetworkFailure, api.ErrNetwork.Error(), err)
}

// Wait blocks until the current request finishes or ctx is done, then
// returns the session state. It returns immediately when nothing is in flight.
func (s *Session) Wait(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return s.Snapshot(), ctx.Err()
		}
	}
	return s.Snapshot(), nil
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// changedLocked records a state change and returns the snapshot to publish.
func (s *Session) changedLocked() Snapshot {
	s.version++
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Version:    s.version,
		State:      s.state,
		Input:      s.input,
		Artifact:   s.result,
		Err:        s.lastErr,
		Generation: s.generation,
		Pending:    s.pending,
	}
	if s.source != nil {
		snap.HasSource = true
		snap.SourceName = s.source.Name
		snap.SourceSize = s.source.Size()
	}
	return snap
}

// State returns the current state.
func (s *Session) State() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pending returns the number of requests whose outcome the session is waiting on.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Generation returns the current generation counter.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// OnChange registers fn to be called after every state change.
// Calls are serialized and arrive in change order; a snapshot overtaken by a
// newer one before delivery is dropped. fn runs on the goroutine that made
// the change, must not block and must not change session state.
// The returned func unregisters it.
func (s *Session) OnChange(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Session) notify(snap Snapshot) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if snap.Version <= s.notified {
		log.Debugf("[Session] Dropping stale notification (version %d, delivered %d)", snap.Version, s.notified)
		return
	}
	s.notified = snap.Version

	s.mu.Lock()
	listeners := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

func (s *Session) currentResult() *models.ResultArtifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Save writes the current result into dir and returns the file path.
func (s *Session) Save(dir string) (string, error) {
	a := s.currentResult()
	if a == nil {
		return "", ErrNoResult
	}
	return artifact.Save(s.fs, a, dir, a.Filename)
}

// CopyToClipboard copies the current result. Errors never change the session state.
func (s *Session) CopyToClipboard(ctx context.Context) error {
	a := s.currentResult()
	if a == nil {
		return models.NewErrorInfo(models.KindClipboardWriteFailed, ErrNoResult.Error(), ErrNoResult)
	}
	return s.artifacts.CopyToClipboard(ctx, a)
}

// CanShare reports whether Share is offered.
func (s *Session) CanShare() bool {
	return s.artifacts.CanShare()
}

// Share hands the current result to the configured share mechanism.
// Errors never change the session state.
func (s *Session) Share(ctx context.Context) error {
	a := s.currentResult()
	if a == nil {
		return models.NewErrorInfo(models.KindShareFailed, ErrNoResult.Error(), ErrNoResult)
	}
	return s.artifacts.Share(ctx, a, a.Filename)
}

// Close abandons any in-flight request, releases the result and waits for
// request goroutines to exit.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.abandonLocked()
	s.mu.Unlock()

	s.inflight.Wait()
}
