package qbl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSampler(url string) *HTTPSampler {
	return NewHTTPSampler(url+"/", "secret", "anneal", 5*time.Second, zerolog.Nop())
}

func TestHTTPSamplerSubmitsProblem(t *testing.T) {
	var received ProblemRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/problems", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Auth-Token"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ProblemResponse{
			ID:             received.ID,
			Status:         StatusCompleted,
			Samples:        [][]int{{0, 1}, {1, 0}},
			Energies:       []float64{-2, 1},
			NumOccurrences: []int{7, 3},
		})
	}))
	defer server.Close()

	opts := SamplerOptions{NumReads: 10, AutoScale: true, NumSpinReversalTransforms: 2, AnnealingTime: 20, Label: "test"}
	set, err := newTestSampler(server.URL).SampleQUBO(context.Background(), smallQUBO(), opts)
	require.NoError(t, err)

	_, err = uuid.Parse(received.ID)
	assert.NoError(t, err)
	assert.Equal(t, ProblemTypeQUBO, received.Type)
	assert.Equal(t, "anneal", received.Solver)
	assert.Equal(t, "test", received.Label)
	assert.Equal(t, 2, received.NumVariables)
	assert.Equal(t, []ProblemTerm{{0, 0, 1}, {0, 1, 3}, {1, 1, -2}}, received.Terms)
	assert.Equal(t, opts, received.Options())

	q, err := received.QUBO()
	require.NoError(t, err)
	assert.Equal(t, smallQUBO(), q)

	assert.Equal(t, 2, set.Len())
	assert.Equal(t, []int{7, 3}, set.NumOccurrences)
	first, err := set.First()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, first)
}

func TestHTTPSamplerErrors(t *testing.T) {
	testCases := []struct {
		name    string
		handler http.HandlerFunc
		target  error
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			target: ErrSampler,
		},
		{
			name: "failed problem",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(ProblemResponse{ID: "x", Status: StatusFailed, Error: "no solver"})
			},
			target: ErrSampler,
		},
		{
			name: "no samples",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(ProblemResponse{ID: "x", Status: StatusCompleted})
			},
			target: ErrEmptySampleSet,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("{not json"))
			},
			target: ErrSampler,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			defer server.Close()

			_, err := newTestSampler(server.URL).SampleQUBO(context.Background(), smallQUBO(), SamplerOptions{})
			assert.ErrorIs(t, err, tc.target)
		})
	}
}

func TestHTTPSamplerCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not reach the server")
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestSampler(server.URL).SampleQUBO(ctx, smallQUBO(), SamplerOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrSampler)
}

func TestProblemRequestRejectsBadTerms(t *testing.T) {
	req := ProblemRequest{Type: ProblemTypeQUBO, NumVariables: 2, Terms: []ProblemTerm{{0, 2, 1}}}
	_, err := req.QUBO()
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	req = ProblemRequest{Type: ProblemTypeQUBO, NumVariables: MaxProblemVariables + 1,
		Terms: []ProblemTerm{{MaxProblemVariables, MaxProblemVariables, 1}}}
	_, err = req.QUBO()
	assert.ErrorIs(t, err, ErrTooManyVariables)

	req = ProblemRequest{Type: "ising", NumVariables: 1}
	_, err = req.QUBO()
	assert.Error(t, err)
}

func TestProblemResponseWithoutEnergies(t *testing.T) {
	set, err := ProblemResponse{Status: StatusCompleted, Samples: [][]int{{1, 1}}}.SampleSet()
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, set.Energies)
	assert.Equal(t, []int{1}, set.NumOccurrences)
}
