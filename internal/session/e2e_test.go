package session

import (
	"bytes"
	"context"
	"image/png"
	"net/http/httptest"
	"testing"

	"go-photoid/internal/api"
	"go-photoid/internal/artifact"
	"go-photoid/internal/devbackend"
	"go-photoid/internal/models"
	"go-photoid/internal/outputspec"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndToEndAgainstDevBackend(t *testing.T) {
	gin.SetMode(gin.TestMode)
	backend := devbackend.New(models.DevBackendConfig{HourlyLimit: 2, DailyLimit: 10})
	server := httptest.NewServer(backend.Handler())
	defer server.Close()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/photos/portrait.jpg", encodeImage(t, "jpeg"), 0644))

	manager := artifact.NewManager(nil, nil)
	s := New(api.NewClient(server.URL, "", server.Client()), manager, WithFs(fs))
	defer s.Close()

	require.NoError(t, s.SelectFile("/photos/portrait.jpg"))

	// Preset run.
	require.NoError(t, s.Submit(context.Background()))
	snap, err := s.Wait(waitCtx(t))
	require.NoError(t, err)
	require.Equal(t, models.StateSucceeded, snap.State, "%v", snap.Err)
	assert.Equal(t, "photoid_portrait_passport_eu.png", snap.Artifact.Filename)
	cfg, err := png.DecodeConfig(bytes.NewReader(snap.Artifact.Content))
	require.NoError(t, err)
	assert.Equal(t, 413, cfg.Width)
	assert.Equal(t, 531, cfg.Height)

	// Custom run replaces the previous artifact.
	s.SetMode(outputspec.ModeCustom)
	s.SetCustomSize(300, 400)
	require.NoError(t, s.Submit(context.Background()))
	snap, err = s.Wait(waitCtx(t))
	require.NoError(t, err)
	require.Equal(t, models.StateSucceeded, snap.State, "%v", snap.Err)
	assert.Equal(t, "photoid_portrait_300x400.png", snap.Artifact.Filename)
	assert.Equal(t, 1, manager.Live())

	path, err := s.Save("/out")
	require.NoError(t, err)
	saved, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, snap.Artifact.Content, saved)

	// The third request in the hour is refused by the rate limiter.
	require.NoError(t, s.Submit(context.Background()))
	snap, err = s.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, models.StateFailed, snap.State)
	assert.Equal(t, models.KindBackend, snap.Err.Kind)
	assert.Contains(t, snap.Err.Message, "Hourly photo processing limit reached")
	assert.ErrorIs(t, snap.Err, api.ErrRateLimited)
	assert.Equal(t, 0, manager.Live())
}
