// Package diagnostics persists and summarizes tracking error traces. Every output file is keyed by
// the PID gains that produced the trace.
package diagnostics

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"go.viam.com/gridnav/control"
)

// plotted error range.
const (
	plotMinError = -1.5
	plotMaxError = 1.5
)

// GainsKey names a trace by its gains, for example "kp=1.0,ki=0.0,kd=0.25".
func GainsKey(gains control.PIDConfig) string {
	return fmt.Sprintf("kp=%s,ki=%s,kd=%s", formatGain(gains.Kp), formatGain(gains.Ki), formatGain(gains.Kd))
}

// ParseGainsKey recovers the gains from a key or trace file name produced by GainsKey. The error
// buffer length is not part of the key and is left zero.
func ParseGainsKey(key string) (control.PIDConfig, error) {
	key = filepath.Base(key)
	for _, ext := range []string{".txt", ".png"} {
		key = strings.TrimSuffix(key, ext)
	}
	var gains control.PIDConfig
	fields := map[string]*float64{"kp": &gains.Kp, "ki": &gains.Ki, "kd": &gains.Kd}
	parts := strings.Split(key, ",")
	if len(parts) != len(fields) {
		return control.PIDConfig{}, errors.Errorf("%q is not a gains key", key)
	}
	for _, part := range parts {
		name, value, ok := strings.Cut(part, "=")
		dst, known := fields[name]
		if !ok || !known {
			return control.PIDConfig{}, errors.Errorf("%q is not a gains key", key)
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return control.PIDConfig{}, errors.Wrapf(err, "parsing %s", name)
		}
		*dst = v
	}
	return gains, nil
}

// formatGain always keeps a decimal point so integral gains read as 1.0 rather than 1.
func formatGain(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if v == math.Trunc(v) && !math.IsInf(v, 0) {
		s += ".0"
	}
	return s
}

// DumpErrors writes errs as a JSON array to <dir>/<gains key>.txt and returns the file path.
func DumpErrors(dir string, gains control.PIDConfig, errs []float64) (string, error) {
	if errs == nil {
		errs = []float64{}
	}
	data, err := json.Marshal(errs)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, GainsKey(gains)+".txt")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", errors.Wrapf(err, "writing error trace %q", path)
	}
	return path, nil
}

// ReadErrors reads a trace written by DumpErrors.
func ReadErrors(path string) ([]float64, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var errs []float64
	if err := json.Unmarshal(data, &errs); err != nil {
		return nil, errors.Wrapf(err, "parsing error trace %q", path)
	}
	return errs, nil
}

// PlotErrors draws errs against iteration into <dir>/<gains key>.png and returns the file path.
func PlotErrors(dir string, gains control.PIDConfig, errs []float64) (string, error) {
	key := GainsKey(gains)

	p := plot.New()
	p.Title.Text = "Tracking error"
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "Error"
	p.Y.Min = plotMinError
	p.Y.Max = plotMaxError

	pts := make(plotter.XYs, len(errs))
	for i, e := range errs {
		pts[i] = plotter.XY{X: float64(i), Y: e}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return "", errors.Wrap(err, "creating error line")
	}
	line.Width = vg.Points(1)
	p.Add(line, plotter.NewGrid())
	p.Legend.Add(key, line)
	p.Legend.Top = true

	path := filepath.Join(dir, key+".png")
	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return "", errors.Wrapf(err, "saving error plot %q", path)
	}
	return path, nil
}

// Summary describes an error trace.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	MaxAbs float64 `json:"max_abs"`
	Median float64 `json:"median"`
}

// Summarize computes summary statistics over errs. It fails on an empty trace.
func Summarize(errs []float64) (Summary, error) {
	data := stats.Float64Data(errs)
	mean, err := data.Mean()
	if err != nil {
		return Summary{}, err
	}
	stdDev, err := data.StandardDeviation()
	if err != nil {
		return Summary{}, err
	}
	median, err := data.Median()
	if err != nil {
		return Summary{}, err
	}
	maxAbs, err := stats.Max(lo.Map(errs, func(e float64, _ int) float64 { return math.Abs(e) }))
	if err != nil {
		return Summary{}, err
	}
	return Summary{Count: len(errs), Mean: mean, StdDev: stdDev, MaxAbs: maxAbs, Median: median}, nil
}
