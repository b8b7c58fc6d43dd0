// Package output provides utilities for formatting and displaying trajectory results.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/iwvelando/trajectory-calc/internal/ballistics"
	"github.com/iwvelando/trajectory-calc/internal/presets"
	"github.com/iwvelando/trajectory-calc/pkg/constants"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Report is one calculation ready for display.
type Report struct {
	Result ballistics.Result  `json:"result"`
	Points []ballistics.Point `json:"points,omitempty"`
	// Source is where the result was computed: local, server or fallback.
	Source string `json:"source,omitempty"`
	// Note explains a degraded result, such as the reason for a fallback.
	Note string `json:"note,omitempty"`
}

// Entry is one labelled row of a comparison.
type Entry struct {
	Label  string            `json:"label"`
	Result ballistics.Result `json:"result"`
}

// Write renders r in the named format.
func Write(w io.Writer, format string, r Report) error {
	switch format {
	case constants.OutputFormatCSV:
		_, err := io.WriteString(w, CsvString(r))
		return err
	case constants.OutputFormatJSON:
		return JSONFormat(w, r)
	case constants.OutputFormatPretty, "":
		return PrettyFormat(w, r)
	}
	return fmt.Errorf("unsupported output format %q", format)
}

// WriteComparison renders entries in the named format.
func WriteComparison(w io.Writer, format string, entries []Entry) error {
	switch format {
	case constants.OutputFormatCSV:
		return CsvComparison(w, entries)
	case constants.OutputFormatJSON:
		return JSONFormat(w, entries)
	case constants.OutputFormatPretty, "":
		return PrettyComparison(w, entries)
	}
	return fmt.Errorf("unsupported output format %q", format)
}

// WritePresets renders the preset catalog in the named format.
func WritePresets(w io.Writer, format string, list []presets.Preset) error {
	switch format {
	case constants.OutputFormatCSV:
		return CsvPresets(w, list)
	case constants.OutputFormatJSON:
		return JSONFormat(w, list)
	case constants.OutputFormatPretty, "":
		return PrettyPresets(w, list)
	}
	return fmt.Errorf("unsupported output format %q", format)
}

// PrettyFormat outputs a human-readable rather than machine-readable summary.
func PrettyFormat(w io.Writer, r Report) error {
	p := message.NewPrinter(language.English)
	res := r.Result
	ew := &errWriter{w: w}

	ew.printf(p, "--- Trajectory at %.0f yards (%s model) ---\n", res.Distance, res.Model)
	if r.Source != "" {
		ew.printf(p, "Source:              %s\n", r.Source)
	}
	if r.Note != "" {
		ew.printf(p, "Note:                %s\n", r.Note)
	}
	ew.printf(p, "Bullet:              %.0f gr @ %d fps, BC %.3f\n", res.BulletWeight, int(res.MuzzleVelocity), res.BallisticCoefficient)
	ew.printf(p, "Drop:                %.2f in\n", res.DropInches)
	ew.printf(p, "Wind drift:          %.2f in\n", res.WindDriftInches)
	ew.printf(p, "Time of flight:      %.3f s\n", res.TimeOfFlight)
	ew.printf(p, "Velocity:            %d fps (%d%% retained)\n", int(res.VelocityAtDistance), int(res.VelocityRetention))
	ew.printf(p, "Energy:              %d ft-lb (muzzle %d ft-lb)\n", int(res.EnergyAtDistance), int(res.EnergyAtMuzzle))

	if len(r.Points) > 0 {
		withDrift := r.Points[0].WindDrift != nil
		ew.printf(p, "\n")
		if withDrift {
			ew.printf(p, "Range (yd) | Drop (in) | Drift (in) | Velocity (fps) | Energy (ft-lb)\n")
			ew.printf(p, "__________ | _________ | __________ | ______________ | ______________\n")
		} else {
			ew.printf(p, "Range (yd) | Drop (in) | Velocity (fps) | Energy (ft-lb)\n")
			ew.printf(p, "__________ | _________ | ______________ | ______________\n")
		}
		for _, pt := range r.Points {
			if withDrift {
				ew.printf(p, "%10.0f | %9.2f | %10.2f | %14d | %14d\n", pt.Distance, pt.Drop, driftValue(pt), int(pt.Velocity), int(pt.Energy))
				continue
			}
			ew.printf(p, "%10.0f | %9.2f | %14d | %14d\n", pt.Distance, pt.Drop, int(pt.Velocity), int(pt.Energy))
		}
	}
	return ew.err
}

// PrettyComparison outputs one row per entry.
func PrettyComparison(w io.Writer, entries []Entry) error {
	p := message.NewPrinter(language.English)
	ew := &errWriter{w: w}
	if len(entries) == 0 {
		return nil
	}

	ew.printf(p, "--- Comparison at %.0f yards (%s model) ---\n", entries[0].Result.Distance, entries[0].Result.Model)
	ew.printf(p, "Load | Drop (in) | Drift (in) | Time (s) | Velocity (fps) | Energy (ft-lb)\n")
	ew.printf(p, "____ | _________ | __________ | ________ | ______________ | ______________\n")
	for _, e := range entries {
		res := e.Result
		ew.printf(p, "%s | %.2f | %.2f | %.3f | %d | %d\n",
			e.Label, res.DropInches, res.WindDriftInches, res.TimeOfFlight, int(res.VelocityAtDistance), int(res.EnergyAtDistance))
	}
	return ew.err
}

// PrettyPresets lists the catalog.
func PrettyPresets(w io.Writer, list []presets.Preset) error {
	p := message.NewPrinter(language.English)
	ew := &errWriter{w: w}

	ew.printf(p, "ID | Name | Weight (gr) | Velocity (fps) | BC\n")
	ew.printf(p, "__ | ____ | ___________ | ______________ | __\n")
	for _, preset := range list {
		ew.printf(p, "%s | %s | %.0f | %d | %.3f\n",
			preset.ID, preset.Name, preset.BulletWeight, int(preset.MuzzleVelocity), preset.BallisticCoefficient)
	}
	return ew.err
}

// CsvFormat outputs in comma-separated value format.
func CsvFormat(w io.Writer, r Report) error {
	_, err := io.WriteString(w, CsvString(r))
	return err
}

// CsvString returns the CSV rendering of r. With points the rows are the
// sampled curve; without them a single summary row is produced.
func CsvString(r Report) string {
	var b strings.Builder

	if len(r.Points) == 0 {
		b.WriteString(`"distance","dropInches","windDriftInches","timeOfFlight","velocityAtDistance","energyAtMuzzle","energyAtDistance","velocityRetention","model"` + "\n")
		res := r.Result
		fmt.Fprintf(&b, `"%s","%.2f","%.2f","%.3f","%.0f","%.0f","%.0f","%.0f","%s"`+"\n",
			number(res.Distance), res.DropInches, res.WindDriftInches, res.TimeOfFlight,
			res.VelocityAtDistance, res.EnergyAtMuzzle, res.EnergyAtDistance, res.VelocityRetention, res.Model)
		return b.String()
	}

	withDrift := r.Points[0].WindDrift != nil
	b.WriteString(`"distance","drop"`)
	if withDrift {
		b.WriteString(`,"windDrift"`)
	}
	b.WriteString(`,"velocity","energy"` + "\n")
	for _, pt := range r.Points {
		fmt.Fprintf(&b, `"%s","%.2f"`, number(pt.Distance), pt.Drop)
		if withDrift {
			fmt.Fprintf(&b, `,"%.2f"`, driftValue(pt))
		}
		fmt.Fprintf(&b, `,"%.0f","%.0f"`+"\n", pt.Velocity, pt.Energy)
	}
	return b.String()
}

// CsvComparison outputs one CSV row per entry.
func CsvComparison(w io.Writer, entries []Entry) error {
	var b strings.Builder
	b.WriteString(`"load","distance","dropInches","windDriftInches","timeOfFlight","velocityAtDistance","energyAtDistance","model"` + "\n")
	for _, e := range entries {
		res := e.Result
		fmt.Fprintf(&b, `"%s","%s","%.2f","%.2f","%.3f","%.0f","%.0f","%s"`+"\n",
			csvEscape(e.Label), number(res.Distance), res.DropInches, res.WindDriftInches,
			res.TimeOfFlight, res.VelocityAtDistance, res.EnergyAtDistance, res.Model)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// CsvPresets outputs the catalog as CSV.
func CsvPresets(w io.Writer, list []presets.Preset) error {
	var b strings.Builder
	b.WriteString(`"id","name","caliber","bulletWeight","muzzleVelocity","ballisticCoefficient"` + "\n")
	for _, preset := range list {
		fmt.Fprintf(&b, `"%s","%s","%s","%s","%s","%s"`+"\n",
			csvEscape(preset.ID), csvEscape(preset.Name), csvEscape(preset.Caliber),
			number(preset.BulletWeight), number(preset.MuzzleVelocity), number(preset.BallisticCoefficient))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// JSONFormat outputs v as indented JSON.
func JSONFormat(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// number prints v without trailing zeros.
func number(v float64) string {
	return fmt.Sprintf("%g", v)
}

func csvEscape(s string) string {
	return strings.ReplaceAll(s, `"`, `""`)
}

func driftValue(pt ballistics.Point) float64 {
	if pt.WindDrift == nil {
		return 0
	}
	return *pt.WindDrift
}

// errWriter keeps the first write error so a table can be printed without
// checking every line.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(p *message.Printer, format string, args ...interface{}) {
	if e.err != nil {
		return
	}
	_, e.err = p.Fprintf(e.w, format, args...)
}
