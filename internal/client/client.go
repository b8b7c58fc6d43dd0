// Package client calls a trajectory-calc server and falls back to the local
// approximation when the server cannot produce an answer.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iwvelando/trajectory-calc/internal/ballistics"
	"github.com/iwvelando/trajectory-calc/internal/presets"
	"github.com/iwvelando/trajectory-calc/internal/server"
	"github.com/iwvelando/trajectory-calc/internal/telemetry"
	"github.com/iwvelando/trajectory-calc/pkg/constants"
	"github.com/iwvelando/trajectory-calc/pkg/validation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

// Source tells where an Outcome was computed.
type Source string

const (
	SourceServer   Source = "server"
	SourceFallback Source = "fallback"
)

// ErrTransport wraps every failure that triggers the local fallback.
var ErrTransport = errors.New("trajectory server unavailable")

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 1 << 20

// Outcome is a calculation result together with its provenance.
type Outcome struct {
	Result ballistics.Result
	Points []ballistics.Point
	Source Source
	// Reason holds the transport failure that caused a fallback.
	Reason string
}

// Options configures a Client.
type Options struct {
	Endpoint string
	Timeout  time.Duration
	Defaults ballistics.Defaults
	Step     float64
	Presets  *presets.Catalog
}

// Client is safe for concurrent use.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *zap.Logger
	defaults ballistics.Defaults
	step     float64
	presets  *presets.Catalog
	fallback ballistics.Strategy
}

// New constructs a Client. Zero-valued options take the built-in defaults.
func New(logger *zap.Logger, opts Options) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(constants.DefaultClientTimeoutSeconds) * time.Second
	}
	if opts.Defaults == (ballistics.Defaults{}) {
		opts.Defaults = ballistics.StandardDefaults()
	}
	if opts.Step < constants.MinSampleStep {
		opts.Step = constants.DefaultSampleStep
	}
	if opts.Presets == nil {
		opts.Presets = presets.MustLoad()
	}

	return &Client{
		endpoint: strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/"),
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
		logger:   logger,
		defaults: opts.Defaults,
		step:     opts.Step,
		presets:  opts.Presets,
		fallback: ballistics.Approximation{},
	}
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// Calculate asks the server for a trajectory summary. Input errors are
// returned as *validation.Error; anything else falls back to the local
// approximation.
func (c *Client) Calculate(ctx context.Context, req server.CalculationRequest) (Outcome, error) {
	return c.run(ctx, "/api/ballistics", req, false)
}

// Trajectory is Calculate plus the sampled curve.
func (c *Client) Trajectory(ctx context.Context, req server.CalculationRequest) (Outcome, error) {
	return c.run(ctx, "/api/ballistics/trajectory", req, true)
}

func (c *Client) run(ctx context.Context, path string, req server.CalculationRequest, withPoints bool) (Outcome, error) {
	const op = "client.run"

	ctx, span := telemetry.Tracer().Start(ctx, "client.Calculate")
	defer span.End()
	span.SetAttributes(attribute.String("http.path", path))

	params, step, err := c.prepareLocal(req)
	if err != nil {
		return Outcome{}, err
	}

	outcome, remoteErr := c.remote(ctx, path, req, withPoints)
	if remoteErr == nil {
		span.SetAttributes(attribute.String("trajectory.source", string(SourceServer)))
		return outcome, nil
	}

	var verr *validation.Error
	if errors.As(remoteErr, &verr) {
		return Outcome{}, remoteErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Outcome{}, ctxErr
	}

	c.logger.Warn("falling back to local approximation",
		zap.String("op", op),
		zap.String("endpoint", c.endpoint),
		zap.Error(remoteErr),
	)
	span.SetAttributes(attribute.String("trajectory.source", string(SourceFallback)))

	result, err := ballistics.Compute(c.fallback, params)
	if err != nil {
		return Outcome{}, err
	}
	outcome = Outcome{Result: result, Source: SourceFallback, Reason: remoteErr.Error()}
	if withPoints {
		outcome.Points = ballistics.Sample(c.fallback, params, step)
	}
	return outcome, nil
}

// prepareLocal validates req exactly as the server would, so that a request
// the server would reject never silently degrades into a fallback answer.
func (c *Client) prepareLocal(req server.CalculationRequest) (ballistics.ShotParameters, float64, error) {
	p, err := server.Prepare(req, c.defaults, c.fallback, c.step, c.presets)
	if err != nil {
		return ballistics.ShotParameters{}, 0, err
	}
	return p.Params, p.Step, nil
}

func (c *Client) remote(ctx context.Context, path string, req server.CalculationRequest, withPoints bool) (Outcome, error) {
	if c.endpoint == "" {
		return Outcome{}, fmt.Errorf("%w: no endpoint configured", ErrTransport)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close response body",
				zap.String("op", "client.remote"),
				zap.Error(closeErr),
			)
		}
	}()

	var envelope server.Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&envelope); err != nil {
		return Outcome{}, fmt.Errorf("%w: status %d with unreadable body: %v", ErrTransport, resp.StatusCode, err)
	}

	if resp.StatusCode == http.StatusBadRequest && len(envelope.Details) > 0 {
		return Outcome{}, &validation.Error{Violations: envelope.Details}
	}
	if resp.StatusCode != http.StatusOK || !envelope.Success {
		msg := envelope.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return Outcome{}, fmt.Errorf("%w: status %d: %s", ErrTransport, resp.StatusCode, msg)
	}

	outcome := Outcome{Source: SourceServer}
	if withPoints {
		var data server.TrajectoryData
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return Outcome{}, fmt.Errorf("%w: malformed trajectory payload: %v", ErrTransport, err)
		}
		outcome.Result = data.Result
		outcome.Points = data.Points
		return outcome, nil
	}

	if err := json.Unmarshal(envelope.Data, &outcome.Result); err != nil {
		return Outcome{}, fmt.Errorf("%w: malformed result payload: %v", ErrTransport, err)
	}
	return outcome, nil
}
