package tui

import (
	"context"
	"math/rand"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arx-os/vecindex/pkg/vector"
)

func builtIndex(t *testing.T) *vector.Index {
	t.Helper()
	ix, err := vector.OpenMem(vector.Options{Dims: 8, Metric: vector.L2, Seed: 4})
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(4))
	src := vector.BuildSource(func(yield func(payload uint64, v []float32) bool) {
		for i := 0; i < 100; i++ {
			v := make([]float32, 8)
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

func TestModel_QuitsOnQ(t *testing.T) {
	ix := builtIndex(t)
	defer ix.Close()
	m := New(ix, time.Second, "dark")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.Quit(), cmd())
}

func TestModel_AppliesStatsMsg(t *testing.T) {
	ix := builtIndex(t)
	defer ix.Close()
	m := New(ix, time.Second, "dark")

	stats, err := ix.Stats(context.Background())
	require.NoError(t, err)

	updated, _ := m.Update(StatsMsg{Stats: stats})
	mm := updated.(Model)
	assert.False(t, mm.loading)
	assert.Equal(t, 8, mm.stats.Dims)
}

func TestModel_ViewRendersWithoutPanic(t *testing.T) {
	ix := builtIndex(t)
	defer ix.Close()
	m := New(ix, time.Second, "light")
	stats, err := ix.Stats(context.Background())
	require.NoError(t, err)
	updated, _ := m.Update(StatsMsg{Stats: stats})
	assert.NotEmpty(t, updated.(Model).View())
}
