package models

import "time"

// SourceFile is the user-selected image.
type SourceFile struct {
	Name      string
	MediaType string
	Content   []byte
}

// Size returns the content length in bytes.
func (f SourceFile) Size() int {
	return len(f.Content)
}

// Clone returns a copy that shares no memory with f.
func (f SourceFile) Clone() SourceFile {
	content := make([]byte, len(f.Content))
	copy(content, f.Content)
	return SourceFile{Name: f.Name, MediaType: f.MediaType, Content: content}
}

// ResultArtifact is the transformed image returned by the processing service,
// exposed through a transient handle until released.
type ResultArtifact struct {
	CreatedAt time.Time
	Handle    string // blob:photoid/<uuid>
	MediaType string
	Filename  string
	Digest    string // BLAKE3, hex
	Content   []byte
}

// Size returns the content length in bytes.
func (a *ResultArtifact) Size() int {
	return len(a.Content)
}

// SessionState is the lifecycle of a conversion session.
type SessionState int

const (
	StateIdle SessionState = iota
	StateFileSelected
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateFileSelected:
		return "FileSelected"
	case StateSubmitting:
		return "Submitting"
	case StateSucceeded:
		return "Succeeded"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}
