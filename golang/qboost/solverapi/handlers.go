// Package solverapi serves local QUBO samplers over the wire contract of the remote sampling service.
package solverapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/tarstars/quantum_boosting/golang/qboost/qbl"
)

const (
	// maxBodyBytes bounds a submitted problem.
	maxBodyBytes = 8 << 20
	// MaxNumReads bounds the reads a single problem may ask for.
	MaxNumReads = 10000
)

// Handler answers sampling requests with one of the registered samplers.
type Handler struct {
	samplers      map[string]qbl.Sampler
	defaultSolver string
	token         string
	log           zerolog.Logger
}

// NewHandler creates a handler. Problems without a solver name go to defaultSolver.
// An empty token disables authentication.
func NewHandler(samplers map[string]qbl.Sampler, defaultSolver, token string, log zerolog.Logger) *Handler {
	return &Handler{
		samplers:      samplers,
		defaultSolver: defaultSolver,
		token:         token,
		log:           log.With().Str("component", "solver_handler").Logger(),
	}
}

// HandleSubmitProblem handles POST /problems - samples a QUBO and returns the ordered sample set.
func (h *Handler) HandleSubmitProblem(w http.ResponseWriter, r *http.Request) {
	if h.token != "" && r.Header.Get("X-Auth-Token") != h.token {
		h.writeError(w, http.StatusUnauthorized, "invalid auth token")
		return
	}

	var problem qbl.ProblemRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&problem); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid problem body")
		return
	}

	solver := problem.Solver
	if solver == "" {
		solver = h.defaultSolver
	}
	sampler, ok := h.samplers[solver]
	if !ok {
		h.writeJSON(w, http.StatusBadRequest, qbl.FailedProblemResponse(problem.ID, errors.New("unknown solver "+solver)))
		return
	}

	q, err := problem.QUBO()
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, qbl.FailedProblemResponse(problem.ID, err))
		return
	}
	if problem.Params.NumReads < 0 || problem.Params.NumReads > MaxNumReads {
		h.writeJSON(w, http.StatusBadRequest, qbl.FailedProblemResponse(problem.ID,
			fmt.Errorf("num_reads %d outside of [0, %d]", problem.Params.NumReads, MaxNumReads)))
		return
	}

	start := time.Now()
	set, err := sampler.SampleQUBO(r.Context(), q, problem.Options())
	if err != nil {
		h.log.Warn().Err(err).Str("problem", problem.ID).Str("solver", solver).Msg("Sampling failed")
		h.writeJSON(w, http.StatusUnprocessableEntity, qbl.FailedProblemResponse(problem.ID, err))
		return
	}

	answer, err := qbl.NewProblemResponse(problem.ID, set)
	if err != nil {
		h.log.Error().Err(err).Str("problem", problem.ID).Msg("Failed to encode sample set")
		h.writeError(w, http.StatusInternalServerError, "failed to encode sample set")
		return
	}

	h.log.Info().
		Str("problem", problem.ID).
		Str("label", problem.Label).
		Str("solver", solver).
		Int("variables", problem.NumVariables).
		Int("samples", set.Len()).
		Dur("elapsed", time.Since(start)).
		Msg("Problem solved")
	h.writeJSON(w, http.StatusOK, answer)
}

// HandleListSolvers handles GET /solvers - returns the registered solver names.
func (h *Handler) HandleListSolvers(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.samplers))
	for name := range h.samplers {
		names = append(names, name)
	}
	sort.Strings(names)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"solvers": names,
		"default": h.defaultSolver,
	})
}

// HandleHealth handles GET /health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]interface{}{
		"status": qbl.StatusFailed,
		"error":  message,
	})
}
