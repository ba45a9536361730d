package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go-photoid/internal/helpers"
	"go-photoid/internal/models"
	"go-photoid/internal/outputspec"

	"github.com/gabriel-vasile/mimetype"
	log "github.com/sirupsen/logrus"
)

// Custom Error Types
var (
	ErrNetwork           = errors.New("could not reach the photo service")
	ErrMalformedResponse = errors.New("malformed response from the photo service")
	ErrRateLimited       = errors.New("photo service rate limit exceeded")
	ErrUnauthorized      = errors.New("photo service request unauthorized (check API key)")
	ErrServerError       = errors.New("photo service server error")
	ErrRequestRejected   = errors.New("photo service rejected the request")
)

const (
	DefaultBaseURL = "http://127.0.0.1:8000"
	PreviewPath    = "/api/v1/photos/preview"
	HealthPath     = "/health"

	// GenericErrorMessage is shown when a failed response carries no usable detail.
	GenericErrorMessage = "An error occurred."

	// DefaultMaxResponseBytes bounds a result image read into memory.
	DefaultMaxResponseBytes int64 = 64 << 20
)

// BackendError is a non-success response from the processing service.
// Detail is the backend's message, shown to the user verbatim.
type BackendError struct {
	Detail     string
	StatusCode int
}

func (e *BackendError) Error() string {
	return e.Detail
}

// Unwrap maps the status code onto the package's sentinel errors.
func (e *BackendError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case e.StatusCode >= 500:
		return ErrServerError
	default:
		return ErrRequestRejected
	}
}

// PreviewResult is the transformed image returned by a successful preview call.
type PreviewResult struct {
	MediaType string
	Content   []byte
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status string `json:"status"`
}

// Client talks to the photo processing service.
type Client struct {
	BaseURL    string
	ApiKey     string
	HttpClient *http.Client
	// MaxResponseBytes caps the result body; zero means DefaultMaxResponseBytes.
	MaxResponseBytes int64
}

// NewClient creates a new API client
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	log.Debugf("NewClient called for %s (API logging handled by transport if enabled)", baseURL)

	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		ApiKey:     apiKey,
		HttpClient: httpClient,
	}
}

func (c *Client) maxResponseBytes() int64 {
	if c.MaxResponseBytes > 0 {
		return c.MaxResponseBytes
	}
	return DefaultMaxResponseBytes
}

// PreviewURL returns the request URL for spec, query parameters included.
func (c *Client) PreviewURL(spec outputspec.OutputSpec) string {
	values := outputspec.Serialize(spec)
	if len(values) == 0 {
		return c.BaseURL + PreviewPath
	}
	return fmt.Sprintf("%s%s?%s", c.BaseURL, PreviewPath, values.Encode())
}

// Preview uploads file and returns the image converted to spec.
// Transport failures wrap ErrNetwork, unusable success bodies wrap
// ErrMalformedResponse, and non-2xx statuses return a *BackendError.
func (c *Client) Preview(ctx context.Context, file models.SourceFile, spec outputspec.OutputSpec) (*PreviewResult, error) {
	reqURL := c.PreviewURL(spec)

	body, contentType, err := encodeUpload(file)
	if err != nil {
		log.WithError(err).Errorf("Error encoding upload for %s", file.Name)
		return nil, fmt.Errorf("error encoding upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, body)
	if err != nil {
		log.WithError(err).Errorf("Error creating request for %s", reqURL)
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "image/*, application/json")
	if c.ApiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.ApiKey)
	}

	log.Debugf("Submitting %s (%s, %s) to %s", file.Name, file.MediaType, helpers.BytesToSize(uint64(file.Size())), reqURL)
	resp, err := c.HttpClient.Do(req) // Transport will log if enabled
	if err != nil {
		log.WithError(err).Warnf("Preview request to %s failed", reqURL)
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		backendErr := decodeBackendError(resp)
		log.WithError(backendErr).Warnf("Preview request returned status %d", resp.StatusCode)
		return nil, backendErr
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes()+1))
	if err != nil {
		log.WithError(err).Error("Error reading preview response body")
		return nil, fmt.Errorf("%w: reading body: %v", ErrNetwork, err)
	}
	if int64(len(content)) > c.maxResponseBytes() {
		return nil, fmt.Errorf("%w: body exceeds %s", ErrMalformedResponse, helpers.BytesToSize(uint64(c.maxResponseBytes())))
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}

	mediaType := resp.Header.Get("Content-Type")
	if !helpers.IsImageMediaType(mediaType) {
		detected := mimetype.Detect(content).String()
		log.Debugf("Response Content-Type %q is not an image, detected %q from content", mediaType, detected)
		if !helpers.IsImageMediaType(detected) {
			return nil, fmt.Errorf("%w: expected an image, got %q", ErrMalformedResponse, mediaType)
		}
		mediaType = detected
	}
	if parsed, _, perr := mime.ParseMediaType(mediaType); perr == nil {
		mediaType = parsed
	}

	return &PreviewResult{MediaType: mediaType, Content: content}, nil
}

// Health probes GET /health.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var status HealthStatus

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+HealthPath, nil)
	if err != nil {
		return status, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return status, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return status, decodeBackendError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return status, fmt.Errorf("%w: reading body: %v", ErrNetwork, err)
	}
	if err := json.Unmarshal(body, &status); err != nil {
		log.Debugf("Response body causing unmarshal error: %s", string(body))
		return status, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return status, nil
}

// encodeUpload builds the multipart body with the source image under "file".
// The part carries the source's declared media type, which the service checks.
func encodeUpload(file models.SourceFile) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	mediaType := file.MediaType
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     "file",
		"filename": file.Name,
	}))
	header.Set("Content-Type", mediaType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(file.Content); err != nil {
		return nil, "", fmt.Errorf("failed to write file part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}

// errorBody accepts both {"detail": "msg"} and the list form
// {"detail": [{"msg": "..."}]} used for request validation errors.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type validationItem struct {
	Msg string `json:"msg"`
}

func decodeBackendError(resp *http.Response) *BackendError {
	backendErr := &BackendError{StatusCode: resp.StatusCode, Detail: GenericErrorMessage}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil || len(body) == 0 {
		return backendErr
	}

	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Detail) == 0 {
		log.Debugf("Error body is not structured detail: %s", string(body))
		return backendErr
	}

	var detail string
	if err := json.Unmarshal(parsed.Detail, &detail); err == nil {
		if strings.TrimSpace(detail) != "" {
			backendErr.Detail = detail
		}
		return backendErr
	}

	var items []validationItem
	if err := json.Unmarshal(parsed.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}
		if len(msgs) > 0 {
			backendErr.Detail = strings.Join(msgs, "; ")
		}
	}
	return backendErr
}
