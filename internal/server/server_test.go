package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/iwvelando/trajectory-calc/internal/ballistics"
	"github.com/iwvelando/trajectory-calc/internal/presets"
	"github.com/iwvelando/trajectory-calc/pkg/validation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestHandler() http.Handler {
	return NewHandler(zap.NewNop(), Settings{Version: "1.2.3"})
}

func TestHandleCalculateSuccess(t *testing.T) {
	handler := newTestHandler()

	rr := performJSON(t, handler, http.MethodPost, "/api/ballistics", map[string]interface{}{
		"distance":             100,
		"bulletWeight":         147,
		"muzzleVelocity":       900,
		"ballisticCoefficient": 0.168,
		"windSpeed":            0,
		"temperature":          59,
		"humidity":             50,
		"barometricPressure":   29.92,
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get(RequestIDHeader) == "" {
		t.Fatal("expected request id header")
	}

	resp := decodeResponse(t, rr)
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}

	var result ballistics.Result
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if result.Model != "siacci" {
		t.Errorf("expected siacci model, got %s", result.Model)
	}
	if result.VelocityAtDistance >= 900 || result.VelocityAtDistance <= 0 {
		t.Errorf("unexpected velocity %v", result.VelocityAtDistance)
	}
	if result.DropInches <= 0 {
		t.Errorf("expected positive drop, got %v", result.DropInches)
	}
	if result.WindDriftInches != 0 {
		t.Errorf("expected zero drift, got %v", result.WindDriftInches)
	}
	if result.EnergyAtMuzzle != math.Round(147*900*900/450240.0) {
		t.Errorf("unexpected muzzle energy %v", result.EnergyAtMuzzle)
	}
}

func TestHandleCalculateAppliesDefaults(t *testing.T) {
	handler := newTestHandler()

	explicit := decodeResult(t, performJSON(t, handler, http.MethodPost, "/api/ballistics", map[string]interface{}{
		"distance": 250, "bulletWeight": 147, "muzzleVelocity": 900, "ballisticCoefficient": 0.168,
		"windSpeed": 0, "temperature": 59, "humidity": 50, "barometricPressure": 29.92,
	}))
	defaulted := decodeResult(t, performJSON(t, handler, http.MethodPost, "/api/ballistics", map[string]interface{}{
		"distance": 250,
	}))

	if explicit != defaulted {
		t.Fatalf("expected defaults to match explicit standard values:\n%+v\n%+v", explicit, defaulted)
	}
}

func TestHandleCalculateModelAndPreset(t *testing.T) {
	handler := newTestHandler()

	result := decodeResult(t, performJSON(t, handler, http.MethodPost, "/api/ballistics", map[string]interface{}{
		"distance": 300,
		"preset":   "308-168-bthp",
		"model":    "approximation",
	}))

	if result.Model != "approximation" {
		t.Errorf("expected approximation model, got %s", result.Model)
	}
	if result.BulletWeight != 168 || result.MuzzleVelocity != 2650 || result.BallisticCoefficient != 0.462 {
		t.Errorf("expected preset projectile values, got %+v", result)
	}
}

func TestHandleCalculateValidationFailure(t *testing.T) {
	handler := newTestHandler()

	rr := performJSON(t, handler, http.MethodPost, "/api/ballistics", map[string]interface{}{
		"distance":             2500,
		"ballisticCoefficient": 0.001,
		"windDirection":        "up",
		"model":                "g7",
		"preset":               "unknown",
	})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp.Success {
		t.Fatal("expected success=false")
	}
	if resp.Error == "" {
		t.Fatal("expected error message")
	}

	fields := make(map[string]bool)
	for _, d := range resp.Details {
		fields[d.Field] = true
	}
	for _, field := range []string{"distance", "ballisticCoefficient", "windDirection", "model", "preset"} {
		if !fields[field] {
			t.Errorf("expected violation for %s, got %+v", field, resp.Details)
		}
	}
}

func TestHandleCalculateMissingDistance(t *testing.T) {
	rr := performJSON(t, newTestHandler(), http.MethodPost, "/api/ballistics", map[string]interface{}{})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	resp := decodeResponse(t, rr)
	if len(resp.Details) != 1 || resp.Details[0].Field != "distance" {
		t.Fatalf("expected a single distance violation, got %+v", resp.Details)
	}
}

func TestHandleCalculateMalformedJSON(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"Truncated", `{"distance": `},
		{"Unknown field", `{"distance": 100, "range": 5}`},
		{"Wrong type", `{"distance": "far"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/ballistics", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			newTestHandler().ServeHTTP(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rr.Code)
			}
			resp := decodeResponse(t, rr)
			if resp.Success || !strings.Contains(resp.Error, "failed to decode request") {
				t.Fatalf("unexpected response %+v", resp)
			}
		})
	}
}

func TestHandleCalculateBodyTooLarge(t *testing.T) {
	handler := NewHandler(zap.NewNop(), Settings{MaxBodySize: 16})

	req := httptest.NewRequest(http.MethodPost, "/api/ballistics",
		strings.NewReader(`{"distance": 100, "bulletWeight": 147, "muzzleVelocity": 900}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d", rr.Code)
	}
	if resp := decodeResponse(t, rr); !strings.Contains(resp.Error, "exceeds limit") {
		t.Fatalf("expected size limit error, got %q", resp.Error)
	}
}

type panickingStrategy struct{}

func (panickingStrategy) Name() string { return "panicking" }

func (panickingStrategy) Calculate(ballistics.ShotParameters) ballistics.Result {
	panic("division by zero")
}

func TestHandleCalculateComputationFailure(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	handler := NewHandler(zap.New(core), Settings{Strategy: panickingStrategy{}})

	rr := performJSON(t, handler, http.MethodPost, "/api/ballistics", map[string]interface{}{"distance": 100})

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
	resp := decodeResponse(t, rr)
	if resp.Success || resp.Error != "trajectory calculation failed" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if strings.Contains(rr.Body.String(), "division by zero") {
		t.Fatal("internal failure detail leaked to the caller")
	}

	failures := logs.FilterMessage("trajectory computation failed").All()
	if len(failures) != 1 {
		t.Fatalf("expected one logged computation failure, got %d", len(failures))
	}
	if failures[0].Level != zapcore.ErrorLevel {
		t.Errorf("expected error level, got %s", failures[0].Level)
	}
}

func TestHandleTrajectory(t *testing.T) {
	rr := performJSON(t, newTestHandler(), http.MethodPost, "/api/ballistics/trajectory", map[string]interface{}{
		"distance":  400,
		"step":      100,
		"windSpeed": 10,
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var data TrajectoryData
	if err := json.Unmarshal(decodeResponse(t, rr).Data, &data); err != nil {
		t.Fatalf("failed to decode trajectory: %v", err)
	}
	if len(data.Points) != 5 {
		t.Fatalf("expected 5 points, got %d", len(data.Points))
	}
	last := data.Points[len(data.Points)-1]
	if last.Distance != 400 || last.Drop != data.Result.DropInches {
		t.Errorf("expected last point to match result, got %+v vs %+v", last, data.Result)
	}
	if last.WindDrift == nil || *last.WindDrift != data.Result.WindDriftInches {
		t.Errorf("expected wind drift on points, got %+v", last.WindDrift)
	}
}

func TestHandleTrajectoryInvalidStep(t *testing.T) {
	rr := performJSON(t, newTestHandler(), http.MethodPost, "/api/ballistics/trajectory", map[string]interface{}{
		"distance": 400,
		"step":     0,
	})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if resp := decodeResponse(t, rr); len(resp.Details) != 1 || resp.Details[0].Field != "step" {
		t.Fatalf("expected a step violation, got %+v", resp.Details)
	}
}

func TestHandleCompare(t *testing.T) {
	rr := performJSON(t, newTestHandler(), http.MethodPost, "/api/ballistics/compare", map[string]interface{}{
		"distance": 500,
		"presets":  []string{"308-168-bthp", "223-55-fmj", "9mm-147-fmj"},
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var comparisons []Comparison
	if err := json.Unmarshal(decodeResponse(t, rr).Data, &comparisons); err != nil {
		t.Fatalf("failed to decode comparisons: %v", err)
	}
	if len(comparisons) != 3 {
		t.Fatalf("expected 3 comparisons, got %d", len(comparisons))
	}
	expectedOrder := []string{"308-168-bthp", "223-55-fmj", "9mm-147-fmj"}
	for i, c := range comparisons {
		if c.Preset.ID != expectedOrder[i] {
			t.Errorf("comparison %d: expected %s, got %s", i, expectedOrder[i], c.Preset.ID)
		}
		if c.Result.BulletWeight != c.Preset.BulletWeight {
			t.Errorf("comparison %d: result not computed from preset", i)
		}
		if c.Result.Distance != 500 {
			t.Errorf("comparison %d: expected distance 500, got %v", i, c.Result.Distance)
		}
	}
}

func TestHandleCompareValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]interface{}
		field   string
	}{
		{"No presets", map[string]interface{}{"distance": 100}, "presets"},
		{"Unknown preset", map[string]interface{}{"distance": 100, "presets": []string{"9mm-147-fmj", "bogus"}}, "presets[1]"},
		{"Single preset field", map[string]interface{}{"distance": 100, "presets": []string{"9mm-147-fmj"}, "preset": "9mm-147-fmj"}, "preset"},
		{"Bad conditions", map[string]interface{}{"distance": -5, "presets": []string{"9mm-147-fmj"}}, "distance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := performJSON(t, newTestHandler(), http.MethodPost, "/api/ballistics/compare", tt.payload)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
			}
			resp := decodeResponse(t, rr)
			if len(resp.Details) == 0 || resp.Details[0].Field != tt.field {
				t.Fatalf("expected %s violation, got %+v", tt.field, resp.Details)
			}
		})
	}
}

func TestHandleCompareRejectsProjectileFields(t *testing.T) {
	rr := performJSON(t, newTestHandler(), http.MethodPost, "/api/ballistics/compare", map[string]interface{}{
		"presets":              []string{"9mm-147-fmj", "308-168-bthp"},
		"distance":             300,
		"bulletWeight":         150,
		"muzzleVelocity":       2800,
		"ballisticCoefficient": 0.4,
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	got := map[string]float64{}
	for _, v := range resp.Details {
		if v.Value == nil {
			t.Fatalf("expected a value on %s violation", v.Field)
		}
		got[v.Field] = *v.Value
	}
	want := map[string]float64{"bulletWeight": 150, "muzzleVelocity": 2800, "ballisticCoefficient": 0.4}
	if len(got) != len(want) {
		t.Fatalf("expected %d violations, got %+v", len(want), resp.Details)
	}
	for field, value := range want {
		if got[field] != value {
			t.Errorf("%s: expected value %v, got %v", field, value, got[field])
		}
	}
}

func TestCheckCompareResolvesPresetsInOrder(t *testing.T) {
	req := CompareRequest{
		CalculationRequest: CalculationRequest{Input: ballistics.Input{Distance: ballistics.Float(100)}},
		Presets:            []string{"308-168-bthp", "9mm-147-fmj"},
	}
	loads, err := CheckCompare(req, presets.MustLoad())
	if err != nil {
		t.Fatalf("CheckCompare() error = %v", err)
	}
	if len(loads) != 2 || loads[0].ID != "308-168-bthp" || loads[1].ID != "9mm-147-fmj" {
		t.Fatalf("unexpected loads %+v", loads)
	}

	req.BulletWeight = ballistics.Float(0)
	_, err = CheckCompare(req, presets.MustLoad())
	var verr *validation.Error
	if !errors.As(err, &verr) || len(verr.Violations) != 1 || verr.Violations[0].Field != "bulletWeight" {
		t.Fatalf("expected a bulletWeight violation, got %v", err)
	}
}

func TestHandlePresets(t *testing.T) {
	rr := performJSON(t, newTestHandler(), http.MethodGet, "/api/presets", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var presets []map[string]interface{}
	if err := json.Unmarshal(decodeResponse(t, rr).Data, &presets); err != nil {
		t.Fatalf("failed to decode presets: %v", err)
	}
	if len(presets) == 0 || presets[0]["id"] != "9mm-147-fmj" {
		t.Fatalf("unexpected presets %v", presets)
	}
}

func TestHandleVersion(t *testing.T) {
	rr := performJSON(t, newTestHandler(), http.MethodGet, "/api/version", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["version"] != "1.2.3" {
		t.Fatalf("expected version 1.2.3, got %v", resp["version"])
	}
	if resp["model"] != "siacci" {
		t.Fatalf("expected siacci model, got %v", resp["model"])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/ballistics"},
		{http.MethodGet, "/api/ballistics/trajectory"},
		{http.MethodGet, "/api/ballistics/compare"},
		{http.MethodPost, "/api/presets"},
		{http.MethodPost, "/api/version"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		rr := httptest.NewRecorder()
		newTestHandler().ServeHTTP(rr, req)

		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: expected status 405, got %d", tt.method, tt.path, rr.Code)
		}
	}
}

func TestRequestIDPropagation(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	newTestHandler().ServeHTTP(rr, req)

	if got := rr.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Fatalf("expected caller request id to be echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/version", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
	rr = httptest.NewRecorder()
	newTestHandler().ServeHTTP(rr, req)

	if got := rr.Header().Get(RequestIDHeader); len(got) != 36 {
		t.Fatalf("expected a generated uuid for an oversized id, got %q", got)
	}
}

func TestRequestIDExtractsTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator()) })

	var got trace.SpanContext
	handler := withRequestID(zap.NewNop(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = trace.SpanContextFromContext(r.Context())
		if RequestID(r.Context()) == "" {
			t.Error("expected a request id on the context")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !got.IsRemote() {
		t.Fatalf("expected a remote span context, got %+v", got)
	}
	if got.TraceID().String() != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Fatalf("unexpected trace id %s", got.TraceID())
	}
	if got.SpanID().String() != "00f067aa0ba902b7" {
		t.Fatalf("unexpected span id %s", got.SpanID())
	}
}

func TestPrepareCollectsEveryViolation(t *testing.T) {
	step := 0.5
	_, err := Prepare(CalculationRequest{
		Input:  ballistics.Input{Distance: ballistics.Float(-1)},
		Model:  "g7",
		Preset: "nope",
		Step:   &step,
	}, ballistics.StandardDefaults(), ballistics.Siacci{}, 50, presets.MustLoad())

	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *validation.Error, got %v", err)
	}
	fields := map[string]bool{}
	for _, v := range verr.Violations {
		fields[v.Field] = true
	}
	for _, want := range []string{"preset", "model", "step", "distance"} {
		if !fields[want] {
			t.Errorf("missing violation for %s in %v", want, verr.Violations)
		}
	}
}

func TestPrepareUsesFallbackModelAndStep(t *testing.T) {
	p, err := Prepare(CalculationRequest{Input: ballistics.Input{Distance: ballistics.Float(100)}},
		ballistics.StandardDefaults(), ballistics.Approximation{}, 25, presets.MustLoad())
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if p.Strategy.Name() != "approximation" || p.Step != 25 {
		t.Fatalf("unexpected prepared request %+v", p)
	}
	if p.Params.BulletWeight != 147 {
		t.Fatalf("expected default bullet weight, got %v", p.Params.BulletWeight)
	}
}

func performJSON(t *testing.T, handler http.Handler, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) Response {
	t.Helper()

	var resp Response
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v (%s)", err, rr.Body.String())
	}
	return resp
}

func decodeResult(t *testing.T, rr *httptest.ResponseRecorder) ballistics.Result {
	t.Helper()

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var result ballistics.Result
	if err := json.Unmarshal(decodeResponse(t, rr).Data, &result); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	return result
}
