package api

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go-photoid/internal/models"
	"go-photoid/internal/outputspec"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode test PNG: %v", err)
	}
	return buf.Bytes()
}

func testSource() models.SourceFile {
	return models.SourceFile{
		Name:      "photo.jpg",
		MediaType: "image/jpeg",
		Content:   []byte("\xff\xd8\xff\xe0 fake jpeg payload"),
	}
}

// TestNewClient tests the API client creation
func TestNewClient(t *testing.T) {
	client := NewClient("", "test-api-key", nil)

	if client.BaseURL != DefaultBaseURL {
		t.Errorf("Expected base URL %s, got %s", DefaultBaseURL, client.BaseURL)
	}
	if client.ApiKey != "test-api-key" {
		t.Errorf("Expected API key test-api-key, got %s", client.ApiKey)
	}
	if client.HttpClient == nil {
		t.Fatal("Expected HTTP client to be initialized")
	}
	if client.HttpClient.Timeout != 60*time.Second {
		t.Errorf("Expected timeout to be 60s, got %v", client.HttpClient.Timeout)
	}

	trimmed := NewClient("http://example.test/", "", &http.Client{})
	if trimmed.BaseURL != "http://example.test" {
		t.Errorf("Expected trailing slash to be trimmed, got %s", trimmed.BaseURL)
	}
}

// TestPreview_PresetSuccess checks the request shape and the decoded result.
func TestPreview_PresetSuccess(t *testing.T) {
	pngBytes := testPNG(t)
	source := testSource()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != PreviewPath {
			t.Errorf("Expected path %s, got %s", PreviewPath, r.URL.Path)
		}
		if got := r.URL.Query().Get("output_format"); got != "passport_eu" {
			t.Errorf("Expected output_format=passport_eu, got %q", got)
		}
		if r.URL.Query().Has("custom_width") || r.URL.Query().Has("custom_height") {
			t.Errorf("Preset request must not carry custom dimensions: %s", r.URL.RawQuery)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Expected bearer token, got %q", got)
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("Expected multipart field 'file': %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		if header.Filename != "photo.jpg" {
			t.Errorf("Expected filename photo.jpg, got %s", header.Filename)
		}
		if ct := header.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("Expected part Content-Type image/jpeg, got %s", ct)
		}
		uploaded, _ := io.ReadAll(file)
		if !bytes.Equal(uploaded, source.Content) {
			t.Error("Uploaded content does not match source")
		}

		w.Header().Set("Content-Type", "image/png")
		w.Write(pngBytes)
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", server.Client())
	result, err := client.Preview(context.Background(), source, outputspec.Preset(outputspec.PassportEU))
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if result.MediaType != "image/png" {
		t.Errorf("Expected media type image/png, got %s", result.MediaType)
	}
	if !bytes.Equal(result.Content, pngBytes) {
		t.Error("Result content does not match server response")
	}
}

// TestPreview_CustomQuery checks the custom resolution path.
func TestPreview_CustomQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("output_format") != "custom" || q.Get("custom_width") != "600" || q.Get("custom_height") != "800" {
			t.Errorf("Unexpected query for custom spec: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(testPNG(t))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", server.Client())
	if _, err := client.Preview(context.Background(), testSource(), outputspec.Custom(600, 800)); err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
}

// TestPreview_BackendErrors tests decoding of non-success responses.
func TestPreview_BackendErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantDetail string
		wantIs     error
		status     int
	}{
		{
			name:       "detail string",
			status:     http.StatusBadRequest,
			body:       `{"detail":"invalid dimensions"}`,
			wantDetail: "invalid dimensions",
			wantIs:     ErrRequestRejected,
		},
		{
			name:       "validation list",
			status:     http.StatusUnprocessableEntity,
			body:       `{"detail":[{"loc":["body","file"],"msg":"field required"}]}`,
			wantDetail: "field required",
			wantIs:     ErrRequestRejected,
		},
		{
			name:       "non json body",
			status:     http.StatusBadGateway,
			body:       `<html>bad gateway</html>`,
			wantDetail: GenericErrorMessage,
			wantIs:     ErrServerError,
		},
		{
			name:       "empty detail",
			status:     http.StatusBadRequest,
			body:       `{"detail":""}`,
			wantDetail: GenericErrorMessage,
			wantIs:     ErrRequestRejected,
		},
		{
			name:       "rate limited",
			status:     http.StatusTooManyRequests,
			body:       `{"detail":"hourly limit reached"}`,
			wantDetail: "hourly limit reached",
			wantIs:     ErrRateLimited,
		},
		{
			name:       "unauthorized",
			status:     http.StatusUnauthorized,
			body:       `{"detail":"Not authenticated"}`,
			wantDetail: "Not authenticated",
			wantIs:     ErrUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(server.URL, "", server.Client())
			_, err := client.Preview(context.Background(), testSource(), outputspec.Custom(600, 800))

			var backendErr *BackendError
			if !errors.As(err, &backendErr) {
				t.Fatalf("Expected *BackendError, got %T: %v", err, err)
			}
			if backendErr.StatusCode != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, backendErr.StatusCode)
			}
			if backendErr.Detail != tt.wantDetail {
				t.Errorf("Expected detail %q, got %q", tt.wantDetail, backendErr.Detail)
			}
			if !errors.Is(err, tt.wantIs) {
				t.Errorf("Expected errors.Is(err, %v)", tt.wantIs)
			}
		})
	}
}

// TestPreview_NetworkFailure tests a backend that cannot be reached.
func TestPreview_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url, "", &http.Client{Timeout: 2 * time.Second})
	_, err := client.Preview(context.Background(), testSource(), outputspec.Preset(outputspec.VisaUS))
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("Expected ErrNetwork, got %v", err)
	}
}

// TestPreview_MalformedResponses tests success statuses without a usable image.
func TestPreview_MalformedResponses(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        []byte
	}{
		{name: "empty body", contentType: "image/png", body: nil},
		{name: "json instead of image", contentType: "application/json", body: []byte(`{"message":"Preview endpoint - to be implemented"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.Write(tt.body)
			}))
			defer server.Close()

			client := NewClient(server.URL, "", server.Client())
			_, err := client.Preview(context.Background(), testSource(), outputspec.Preset(outputspec.PassportEU))
			if !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("Expected ErrMalformedResponse, got %v", err)
			}
		})
	}
}

// TestPreview_OversizedBody tests that a body over the cap is rejected rather than truncated.
func TestPreview_OversizedBody(t *testing.T) {
	pngBytes := testPNG(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngBytes)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", server.Client())

	client.MaxResponseBytes = int64(len(pngBytes)) - 1
	_, err := client.Preview(context.Background(), testSource(), outputspec.Preset(outputspec.PassportEU))
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("Expected ErrMalformedResponse for oversized body, got %v", err)
	}

	client.MaxResponseBytes = int64(len(pngBytes))
	result, err := client.Preview(context.Background(), testSource(), outputspec.Preset(outputspec.PassportEU))
	if err != nil {
		t.Fatalf("Preview at exactly the cap failed: %v", err)
	}
	if len(result.Content) != len(pngBytes) {
		t.Errorf("Expected %d bytes, got %d", len(pngBytes), len(result.Content))
	}
}

// TestPreview_DetectsImageType tests sniffing when the server mislabels the body.
func TestPreview_DetectsImageType(t *testing.T) {
	pngBytes := testPNG(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(pngBytes)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", server.Client())
	result, err := client.Preview(context.Background(), testSource(), outputspec.Preset(outputspec.PassportEU))
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if result.MediaType != "image/png" {
		t.Errorf("Expected detected media type image/png, got %s", result.MediaType)
	}
}

// TestPreview_ContextCancelled tests that a cancelled context surfaces as a network failure.
func TestPreview_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.URL, "", server.Client())
	_, err := client.Preview(ctx, testSource(), outputspec.Preset(outputspec.PassportEU))
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("Expected ErrNetwork for cancelled context, got %v", err)
	}
}

func TestPreviewURL(t *testing.T) {
	client := NewClient("http://localhost:8000", "", &http.Client{})

	got := client.PreviewURL(outputspec.Preset(outputspec.IDCardTR))
	want := "http://localhost:8000/api/v1/photos/preview?output_format=id_card_tr"
	if got != want {
		t.Errorf("PreviewURL() = %s, want %s", got, want)
	}
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != HealthPath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", server.Client())
	status, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if status.Status != "healthy" {
		t.Errorf("Expected status healthy, got %s", status.Status)
	}
}

// TestLoggingTransport tests that JSON bodies are logged and image bodies are not.
func TestLoggingTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == HealthPath {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"healthy"}`))
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(testPNG(t))
	}))
	defer server.Close()

	logPath := filepath.Join(t.TempDir(), "api.log")
	transport, err := NewLoggingTransport(http.DefaultTransport, logPath)
	if err != nil {
		t.Fatalf("NewLoggingTransport failed: %v", err)
	}

	client := NewClient(server.URL, "", &http.Client{Transport: transport})
	if _, err := client.Health(context.Background()); err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if _, err := client.Preview(context.Background(), testSource(), outputspec.Preset(outputspec.PassportEU)); err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if err := transport.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	logged, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log: %v", err)
	}
	text := string(logged)
	if !strings.Contains(text, `{"status":"healthy"}`) {
		t.Error("Expected JSON body to be logged")
	}
	if !strings.Contains(text, "(Body not logged)") {
		t.Error("Expected image body to be skipped")
	}
	if !strings.Contains(text, "output_format=passport_eu") {
		t.Error("Expected request line with query to be logged")
	}
}
