package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/Adrian2901/bloomwatch/internal/adapter/http"
	"github.com/Adrian2901/bloomwatch/internal/domain"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockArchive struct {
	climate []domain.ClimateScore
	bloom   []domain.BloomScore
	err     error
}

func (m *mockArchive) ClimateScores(_ context.Context) ([]domain.ClimateScore, error) {
	return m.climate, m.err
}

func (m *mockArchive) BloomScores(_ context.Context) ([]domain.BloomScore, error) {
	return m.bloom, m.err
}

func newTestServer(readyErr error, archive *mockArchive) *httpadapter.Server {
	if archive == nil {
		archive = &mockArchive{}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, archive, logger)
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(fmt.Errorf("store unreachable"), nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "store unreachable", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestClimateScoresEndpoint(t *testing.T) {
	archive := &mockArchive{
		climate: []domain.ClimateScore{{WaterYear: 2019, Final: 0.8}},
	}
	srv := newTestServer(nil, archive)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/scores/climate", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var scores []domain.ClimateScore
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scores))
	require.Len(t, scores, 1)
	assert.Equal(t, 2019, scores[0].WaterYear)
	assert.Equal(t, 0.8, scores[0].Final)
}

func TestBloomScoresEndpointEmptyArchive(t *testing.T) {
	srv := newTestServer(nil, &mockArchive{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/scores/bloom", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestScoresEndpointArchiveError(t *testing.T) {
	srv := newTestServer(nil, &mockArchive{err: fmt.Errorf("database locked")})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/scores/climate", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
