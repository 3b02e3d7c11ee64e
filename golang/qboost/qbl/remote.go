package qbl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

//HTTPSampler sends QUBO problems to a remote sampling service.
//A failed call is returned to the caller, there are no retries.
type HTTPSampler struct {
	baseURL    string
	token      string
	solver     string
	httpClient *http.Client
	log        zerolog.Logger
}

//NewHTTPSampler creates a client of the sampling service at baseURL.
//Zero timeout leaves the call bounded by the context only.
func NewHTTPSampler(baseURL, token, solver string, timeout time.Duration, log zerolog.Logger) *HTTPSampler {
	return &HTTPSampler{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		solver:  solver,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log.With().Str("component", "sampler_client").Logger(),
	}
}

//SampleQUBO implements Sampler.
func (s *HTTPSampler) SampleQUBO(ctx context.Context, q QUBO, opts SamplerOptions) (*SampleSet, error) {
	problem := NewProblemRequest(q, s.solver, opts)
	body, err := json.Marshal(problem)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal problem: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/problems", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("X-Auth-Token", s.token)
	}

	s.log.Debug().
		Str("problem", problem.ID).
		Str("label", problem.Label).
		Int("variables", problem.NumVariables).
		Int("reads", opts.NumReads).
		Msg("Submitting QUBO")

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %w", ErrSampler, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d, body: %s", ErrSampler, resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	var answer ProblemResponse
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrSampler, err)
	}

	set, err := answer.SampleSet()
	if err != nil {
		return nil, err
	}
	s.log.Debug().
		Str("problem", answer.ID).
		Int("samples", set.Len()).
		Dur("elapsed", time.Since(start)).
		Msg("QUBO sampled")
	return set, nil
}
