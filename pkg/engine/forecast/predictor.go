package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rmax-ai/restock/pkg/engine/history"
)

// declaredConfidence marks predictions built from a user-declared rate.
const declaredConfidence = 0.5

// infiniteDaysSentinel replaces +Inf days remaining in presented output.
const infiniteDaysSentinel = 999

// Predictor derives usage rates and purchase forecasts from a history
// snapshot. It holds no per-item state; every call fits a fresh model.
type Predictor struct {
	model Model
	log   *zap.SugaredLogger
}

// NewPredictor returns a predictor for the given capability. With
// CapabilityNone (or any unknown value) no statistical model is available
// and rate predictions always come back empty.
func NewPredictor(c Capability) *Predictor {
	if c == CapabilityRegression {
		return NewPredictorWithModel(&LinearModel{})
	}
	return NewPredictorWithModel(nil)
}

// NewPredictorWithModel returns a predictor backed by m. A nil model disables
// statistical prediction.
func NewPredictorWithModel(m Model) *Predictor {
	return &Predictor{model: m, log: zap.NewNop().Sugar()}
}

// SetLogger sets the logger used to report failed fits.
func (p *Predictor) SetLogger(l *zap.SugaredLogger) {
	if l != nil {
		p.log = l
	}
}

// Enabled reports whether a statistical model backs the predictor.
func (p *Predictor) Enabled() bool {
	return p.model != nil
}

// points converts the valid observations of h into regression samples,
// using whole days since the earliest valid timestamp as the x axis.
func points(h history.History) []Point {
	type sample struct {
		at  time.Time
		qty float64
	}

	samples := make([]sample, 0, len(h))
	var earliest time.Time
	for _, o := range h {
		if o.Quantity == nil {
			continue
		}
		at, ok := o.Time()
		if !ok {
			continue
		}
		if len(samples) == 0 || at.Before(earliest) {
			earliest = at
		}
		samples = append(samples, sample{at: at, qty: *o.Quantity})
	}

	pts := make([]Point, 0, len(samples))
	for _, s := range samples {
		pts = append(pts, Point{
			Day:      float64(int64(s.at.Sub(earliest) / (24 * time.Hour))),
			Quantity: s.qty,
		})
	}
	return pts
}

// fit runs the model over the valid points of h. It reports false when the
// model is unavailable, there are too few valid points or the fit fails.
func (p *Predictor) fit(h history.History) (f Fit, n int, ok bool) {
	if p.model == nil {
		return Fit{}, 0, false
	}

	pts := points(h)
	if len(pts) < MinDataPoints {
		return Fit{}, len(pts), false
	}

	defer func() {
		if r := recover(); r != nil {
			p.log.Debugw("usage_fit_panicked", "error", fmt.Sprint(r), "points", len(pts))
			f, n, ok = Fit{}, len(pts), false
		}
	}()

	f, err := p.model.Fit(pts)
	if err != nil {
		p.log.Debugw("usage_fit_failed", "error", err, "points", len(pts))
		return Fit{}, len(pts), false
	}
	if math.IsNaN(f.Slope) || math.IsInf(f.Slope, 0) {
		return Fit{}, len(pts), false
	}
	return f, len(pts), true
}

// PredictUsageRate returns the fitted consumption per day. A rising
// quantity trend is reported as zero consumption, never a negative rate.
func (p *Predictor) PredictUsageRate(h history.History) (float64, bool) {
	f, _, ok := p.fit(h)
	if !ok {
		return 0, false
	}
	return math.Max(0, -f.Slope), true
}

// PredictionConfidence scores how well a straight line explains the history,
// weighted by how much history there is. It is 0 whenever no fit is
// possible.
func (p *Predictor) PredictionConfidence(h history.History) float64 {
	f, n, ok := p.fit(h)
	if !ok || math.IsNaN(f.R2) {
		return 0
	}
	volume := math.Min(1, float64(n)/saturationPoints)
	return math.Max(0, f.R2*volume)
}

// Forecast assembles the full purchase prediction for an item.
func (p *Predictor) Forecast(h history.History, item Item, now time.Time) Prediction {
	rate, haveRate := p.PredictUsageRate(h)
	confidence := p.PredictionConfidence(h)

	var (
		daily  float64
		source Source
	)
	switch {
	case haveRate:
		daily, source = rate, SourceRegression
	case item.UsageRate != nil:
		daily, source = DailyUsage(*item.UsageRate, item.UsagePeriod), SourceDeclared
		confidence = declaredConfidence
	default:
		daily, source, confidence = 0, SourceNone, 0
	}

	days := DaysRemaining(item.CurrentQuantity, daily)
	presented := float64(infiniteDaysSentinel)
	if !math.IsInf(days, 1) {
		presented = round(days, 1)
	}

	pred := Prediction{
		DaysRemaining: presented,
		BufferDays:    BufferDays(item.Difficulty),
		PurchaseBy:    PurchaseBy(item.CurrentQuantity, daily, item.Difficulty, now),
		Urgency:       UrgencyFor(item.CurrentQuantity, daily, item.Difficulty),
		Confidence:    round(confidence, 2),
		NeedsTracking: !haveRate && item.UsageRate == nil,
		DailyUsage:    daily,
		Source:        source,
	}
	if avg, ok := h.AverageDailyUsage(); ok {
		pred.AverageDailyUsage = &avg
	}
	return pred
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
