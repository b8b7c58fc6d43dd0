// Package server exposes the trajectory calculator over HTTP/JSON.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/iwvelando/trajectory-calc/internal/ballistics"
	"github.com/iwvelando/trajectory-calc/internal/presets"
	"github.com/iwvelando/trajectory-calc/internal/telemetry"
	"github.com/iwvelando/trajectory-calc/pkg/constants"
	"github.com/iwvelando/trajectory-calc/pkg/validation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Settings configures the calculation behaviour of the handler.
type Settings struct {
	MaxBodySize int64
	Version     string
	Defaults    ballistics.Defaults
	Strategy    ballistics.Strategy
	Step        float64
	Presets     *presets.Catalog
}

type handler struct {
	logger   *zap.Logger
	settings Settings
}

// NewHandler constructs the HTTP handler that serves the ballistics API.
func NewHandler(logger *zap.Logger, settings Settings) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.MaxBodySize <= 0 {
		settings.MaxBodySize = constants.DefaultMaxBodySizeBytes
	}
	settings.Version = strings.TrimSpace(settings.Version)
	if settings.Version == "" {
		settings.Version = "dev"
	}
	if settings.Defaults == (ballistics.Defaults{}) {
		settings.Defaults = ballistics.StandardDefaults()
	}
	if settings.Strategy == nil {
		settings.Strategy = ballistics.Siacci{}
	}
	if settings.Step < constants.MinSampleStep {
		settings.Step = constants.DefaultSampleStep
	}
	if settings.Presets == nil {
		settings.Presets = presets.MustLoad()
	}

	h := &handler{logger: logger, settings: settings}

	mux := http.NewServeMux()

	// Single-shot calculation
	mux.HandleFunc("/api/ballistics", h.handleCalculate)

	// Calculation plus sampled curve for charting
	mux.HandleFunc("/api/ballistics/trajectory", h.handleTrajectory)

	// Same conditions across several ammunition presets
	mux.HandleFunc("/api/ballistics/compare", h.handleCompare)

	mux.HandleFunc("/api/presets", h.handlePresets)
	mux.HandleFunc("/api/version", h.handleVersion)

	return withRequestID(logger, mux)
}

// CalculationRequest is the JSON body accepted by the calculation endpoints.
type CalculationRequest struct {
	ballistics.Input
	Model  string   `json:"model,omitempty"`
	Preset string   `json:"preset,omitempty"`
	Step   *float64 `json:"step,omitempty"`
}

// CompareRequest evaluates one set of conditions for several presets.
type CompareRequest struct {
	CalculationRequest
	Presets []string `json:"presets"`
}

// Response is the envelope returned by every calculation endpoint.
type Response struct {
	Success bool                   `json:"success"`
	Data    json.RawMessage        `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Details []validation.Violation `json:"details,omitempty"`
}

// TrajectoryData is the payload of a trajectory response.
type TrajectoryData struct {
	Result ballistics.Result  `json:"result"`
	Points []ballistics.Point `json:"points"`
}

// Comparison is one entry of a compare response.
type Comparison struct {
	Preset presets.Preset    `json:"preset"`
	Result ballistics.Result `json:"result"`
}

type envelope struct {
	Success bool                   `json:"success"`
	Data    interface{}            `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Details []validation.Violation `json:"details,omitempty"`
}

func (h *handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleCalculate"
	if !h.allowMethod(w, r, http.MethodPost) {
		return
	}

	start := time.Now()
	var req CalculationRequest
	if !h.decode(w, r, &req, op) {
		return
	}

	p, err := h.prepare(req)
	if err != nil {
		h.respondInvalid(w, r, err, op)
		return
	}

	result, err := h.compute(r.Context(), p.Strategy, p.Params)
	if err != nil {
		h.respondFailure(w, r, err, op)
		return
	}

	h.logger.Info("trajectory computed",
		zap.String("op", op),
		zap.String("requestId", RequestID(r.Context())),
		zap.String("model", result.Model),
		zap.Float64("distance", result.Distance),
		zap.Duration("duration", time.Since(start)),
	)
	h.writeJSON(w, http.StatusOK, envelope{Success: true, Data: result})
}

func (h *handler) handleTrajectory(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleTrajectory"
	if !h.allowMethod(w, r, http.MethodPost) {
		return
	}

	start := time.Now()
	var req CalculationRequest
	if !h.decode(w, r, &req, op) {
		return
	}

	p, err := h.prepare(req)
	if err != nil {
		h.respondInvalid(w, r, err, op)
		return
	}

	result, err := h.compute(r.Context(), p.Strategy, p.Params)
	if err != nil {
		h.respondFailure(w, r, err, op)
		return
	}
	points := ballistics.Sample(p.Strategy, p.Params, p.Step)

	h.logger.Info("trajectory sampled",
		zap.String("op", op),
		zap.String("requestId", RequestID(r.Context())),
		zap.String("model", result.Model),
		zap.Int("points", len(points)),
		zap.Duration("duration", time.Since(start)),
	)
	h.writeJSON(w, http.StatusOK, envelope{Success: true, Data: TrajectoryData{Result: result, Points: points}})
}

func (h *handler) handleCompare(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleCompare"
	if !h.allowMethod(w, r, http.MethodPost) {
		return
	}

	var req CompareRequest
	if !h.decode(w, r, &req, op) {
		return
	}

	loads, err := CheckCompare(req, h.settings.Presets)
	if err != nil {
		h.respondInvalid(w, r, err, op)
		return
	}

	jobs := make([]Prepared, len(loads))
	for i, preset := range loads {
		single := req.CalculationRequest
		single.Input = preset.Apply(single.Input)
		p, err := h.prepare(single)
		if err != nil {
			h.respondInvalid(w, r, err, op)
			return
		}
		jobs[i] = p
	}

	results := make([]Comparison, len(jobs))
	g, ctx := errgroup.WithContext(r.Context())
	for i := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			result, err := h.compute(ctx, jobs[i].Strategy, jobs[i].Params)
			if err != nil {
				return err
			}
			results[i] = Comparison{Preset: loads[i], Result: result}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.respondFailure(w, r, err, op)
		return
	}

	h.logger.Info("presets compared",
		zap.String("op", op),
		zap.String("requestId", RequestID(r.Context())),
		zap.Int("presets", len(results)),
	)
	h.writeJSON(w, http.StatusOK, envelope{Success: true, Data: results})
}

func (h *handler) handlePresets(w http.ResponseWriter, r *http.Request) {
	if !h.allowMethod(w, r, http.MethodGet) {
		return
	}
	h.writeJSON(w, http.StatusOK, envelope{Success: true, Data: h.settings.Presets.All()})
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !h.allowMethod(w, r, http.MethodGet) {
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"version": h.settings.Version,
		"model":   h.settings.Strategy.Name(),
		"models":  ballistics.Models(),
	})
}

// CheckCompare validates the compare-specific fields of req and resolves its
// presets in request order. The projectile comes from each preset, so the
// single-load fields preset, bulletWeight, muzzleVelocity and
// ballisticCoefficient are rejected.
func CheckCompare(req CompareRequest, catalog *presets.Catalog) ([]presets.Preset, error) {
	var c validation.Collector
	if len(req.Presets) == 0 || len(req.Presets) > constants.MaxComparePresets {
		c.Add("presets", fmt.Sprintf("must list between 1 and %d presets", constants.MaxComparePresets), float64(len(req.Presets)))
	}
	if req.Preset != "" {
		c.Invalid("preset", "is not accepted by compare; use presets")
	}
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"bulletWeight", req.BulletWeight},
		{"muzzleVelocity", req.MuzzleVelocity},
		{"ballisticCoefficient", req.BallisticCoefficient},
	} {
		if f.v != nil {
			c.Add(f.name, "is not accepted by compare; it comes from each preset", *f.v)
		}
	}

	loads := make([]presets.Preset, len(req.Presets))
	for i, name := range req.Presets {
		preset, ok := catalog.Lookup(name)
		if !ok {
			c.Invalid(fmt.Sprintf("presets[%d]", i), fmt.Sprintf("unknown preset %q", name))
			continue
		}
		loads[i] = preset
	}
	if err := c.Err(); err != nil {
		return nil, err
	}
	return loads, nil
}

// Prepared is a validated request ready to compute.
type Prepared struct {
	Params   ballistics.ShotParameters
	Strategy ballistics.Strategy
	Step     float64
}

// Prepare applies the preset, selects the model and resolves defaults for
// req. fallback is used when req names no model and step when it names no
// step. Every problem is reported in a single *validation.Error.
func Prepare(req CalculationRequest, defaults ballistics.Defaults, fallback ballistics.Strategy, step float64, catalog *presets.Catalog) (Prepared, error) {
	var c validation.Collector

	in := req.Input
	if req.Preset != "" {
		preset, ok := catalog.Lookup(req.Preset)
		if !ok {
			c.Invalid("preset", fmt.Sprintf("unknown preset %q", req.Preset))
		} else {
			in = preset.Apply(in)
		}
	}

	strategy := fallback
	if req.Model != "" {
		s, err := ballistics.ModelByName(req.Model)
		if err != nil {
			c.Invalid("model", err.Error())
		} else {
			strategy = s
		}
	}

	if req.Step != nil {
		step = *req.Step
		c.Range("step", step, constants.MinSampleStep, constants.MaxDistance)
	}

	params, err := defaults.Prepare(in)
	if err != nil && !c.Merge(err) {
		return Prepared{}, err
	}

	if err := c.Err(); err != nil {
		return Prepared{}, err
	}
	return Prepared{Params: params, Strategy: strategy, Step: step}, nil
}

func (h *handler) prepare(req CalculationRequest) (Prepared, error) {
	return Prepare(req, h.settings.Defaults, h.settings.Strategy, h.settings.Step, h.settings.Presets)
}

func (h *handler) compute(ctx context.Context, s ballistics.Strategy, p ballistics.ShotParameters) (ballistics.Result, error) {
	_, span := telemetry.Tracer().Start(ctx, "ballistics.Calculate")
	defer span.End()
	span.SetAttributes(
		attribute.String("ballistics.model", s.Name()),
		attribute.Float64("ballistics.distance_yd", p.Distance),
		attribute.Float64("ballistics.muzzle_velocity_fps", p.MuzzleVelocity),
		attribute.Float64("ballistics.bc", p.BallisticCoefficient),
	)

	result, err := ballistics.Compute(s, p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ballistics.Result{}, err
	}
	return result, nil
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, target interface{}, op string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.settings.MaxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondErrorWithOp(w, r, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds limit of %d bytes", h.settings.MaxBodySize), nil, op)
			return false
		}
		h.respondErrorWithOp(w, r, http.StatusBadRequest, fmt.Sprintf("failed to decode request: %v", err), nil, op)
		return false
	}
	return true
}

func (h *handler) allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	return false
}

func (h *handler) respondInvalid(w http.ResponseWriter, r *http.Request, err error, op string) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		h.respondErrorWithOp(w, r, http.StatusBadRequest, "invalid input", verr.Violations, op)
		return
	}
	h.respondErrorWithOp(w, r, http.StatusBadRequest, err.Error(), nil, op)
}

// respondFailure hides computation details from the caller; they are logged.
func (h *handler) respondFailure(w http.ResponseWriter, r *http.Request, err error, op string) {
	h.logger.Error("trajectory computation failed",
		zap.String("op", op),
		zap.String("requestId", RequestID(r.Context())),
		zap.Error(err),
	)
	h.respondErrorWithOp(w, r, http.StatusInternalServerError, "trajectory calculation failed", nil, op)
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, r *http.Request, status int, msg string, details []validation.Violation, op string) {
	h.logger.Warn("ballistics request failed",
		zap.String("op", op),
		zap.String("requestId", RequestID(r.Context())),
		zap.Int("status", status),
		zap.String("error", msg),
		zap.Int("violations", len(details)),
	)

	h.writeJSON(w, status, envelope{Success: false, Error: msg, Details: details})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}
