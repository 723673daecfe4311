package server

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arx-os/vecindex/pkg/vector"
)

func builtIndex(t *testing.T, dims int) *vector.Index {
	t.Helper()
	ix, err := vector.OpenMem(vector.Options{Dims: dims, Metric: vector.L2, Seed: 3})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(3))
	src := vector.BuildSource(func(yield func(payload uint64, vector []float32) bool) {
		for i := 0; i < 150; i++ {
			v := make([]float32, dims)
			for d := range v {
				v[d] = rng.Float32()*2 - 1
			}
			if !yield(uint64(i+1), v) {
				return
			}
		}
	})
	_, err = ix.Build(context.Background(), src, vector.BuildOptions{Lists: []int{8, 2}, SamplingFactor: 8})
	require.NoError(t, err)
	return ix
}

func testRouter(t *testing.T, ix *vector.Index) (http.Handler, string) {
	t.Helper()
	cfg := Config{
		Auth:      AuthConfig{JWTSecret: "test-secret", SkipPaths: []string{"/healthz", "/readyz"}},
		RateLimit: RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
	}
	token, err := IssueToken(cfg.Auth, "test-user")
	require.NoError(t, err)
	return NewRouter(ix, cfg), token
}

func TestHealthz_NoAuthRequired(t *testing.T) {
	ix := builtIndex(t, 8)
	defer ix.Close()
	router, _ := testRouter(t, ix)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestV1Routes_RejectMissingToken(t *testing.T) {
	ix := builtIndex(t, 8)
	defer ix.Close()
	router, _ := testRouter(t, ix)

	req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStats_WithValidToken(t *testing.T) {
	ix := builtIndex(t, 8)
	defer ix.Close()
	router, token := testRouter(t, ix)

	req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats vector.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 8, stats.Dims)
	assert.Greater(t, int(stats.HeightOfRoot), 0)
}

func TestInsertAndSearch_RoundTrips(t *testing.T) {
	ix := builtIndex(t, 8)
	defer ix.Close()
	router, token := testRouter(t, ix)

	insertBody, err := json.Marshal(insertRequest{Payload: 999, Vector: make([]float32, 8)})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/vectors", bytes.NewReader(insertBody))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	meta, err := ix.Stats(context.Background())
	require.NoError(t, err)
	probes := make([]int, meta.HeightOfRoot-1)
	for i := range probes {
		probes[i] = 8
	}
	searchBody, err := json.Marshal(searchRequest{
		Vector:        make([]float32, 8),
		Probes:        probes,
		Eps:           1.9,
		MaxScanTuples: 10000,
	})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPost, "/v1/search", bytes.NewReader(searchBody))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Results []searchResponseItem `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	found := false
	for _, r := range resp.Results {
		if r.Payload == 999 {
			found = true
		}
	}
	assert.True(t, found)
}

func TestReadyz_Prewarms(t *testing.T) {
	ix := builtIndex(t, 8)
	defer ix.Close()
	router, _ := testRouter(t, ix)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
