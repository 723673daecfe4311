package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectors_ObserveAndExpose(t *testing.T) {
	c := New()
	c.ObserveSearch("plain", "index", 2*time.Millisecond, 10)
	c.ObserveInsert(time.Millisecond, nil)
	c.ObserveInsert(time.Millisecond, assert.AnError)
	c.ObserveBuild(50*time.Millisecond, 1000)
	c.ObserveVacuum(10*time.Millisecond, 5, 3, 1)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	c.Handler().ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	for _, want := range []string{
		"vecindex_search_total",
		"vecindex_insert_total",
		"vecindex_insert_errors_total",
		"vecindex_build_vectors_total",
		"vecindex_vacuum_h0_slots_freed_total",
	} {
		assert.True(t, strings.Contains(body, want), "missing metric %s", want)
	}
}

func TestNew_IndependentRegistries(t *testing.T) {
	// Two Collectors instances must not collide on the global registerer.
	a := New()
	b := New()
	a.ObserveInsert(time.Millisecond, nil)
	b.ObserveInsert(time.Millisecond, nil)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
}
