package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/plucktune/internal/de"
)

func TestRecorder_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	require.NoError(t, err)

	r.Observe(de.Stats{Generation: 0, Evaluations: 40, Rejected: 2, BestFitness: 0.9, MeanFitness: 1.2, Spread: 0.3})
	r.Observe(de.Stats{Generation: 1, Evaluations: 80, Rejected: 3, BestFitness: 0.7, MeanFitness: 1.0, Spread: 0.2})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.generation))
	assert.Equal(t, 0.7, testutil.ToFloat64(r.bestFitness))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.meanFitness))
	assert.Equal(t, 0.2, testutil.ToFloat64(r.spread))
	assert.Equal(t, 80.0, testutil.ToFloat64(r.evaluations))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.rejected))
}

func TestRecorder_CheckpointOutcomes(t *testing.T) {
	r, err := NewRecorder(prometheus.NewRegistry())
	require.NoError(t, err)

	r.CheckpointSaved(nil)
	r.CheckpointSaved(nil)
	r.CheckpointSaved(errors.New("disk full"))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.checkpoints.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.checkpoints.WithLabelValues("error")))
}

func TestNewRecorder_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewRecorder(reg)
	require.NoError(t, err)

	_, err = NewRecorder(reg)
	assert.Error(t, err)
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	require.NoError(t, err)
	r.Observe(de.Stats{Generation: 5, Evaluations: 100, BestFitness: 0.25})

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, "plucktune_generation 5"), text)
	assert.True(t, strings.Contains(text, "plucktune_best_fitness 0.25"), text)
	assert.True(t, strings.Contains(text, "plucktune_evaluations_total 100"), text)
}
