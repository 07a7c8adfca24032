package history

import (
	"encoding/json"
	"strings"
	"time"
)

// MaxSize bounds the number of observations kept per item. Older entries are
// discarded first once the window is full.
const MaxSize = 90

// DefaultCheckThresholdDays is how long an item may go without an observation
// before a manual quantity check is suggested.
const DefaultCheckThresholdDays = 7

const day = 24 * time.Hour

// Observation is a single quantity reading. The JSON field names match the
// stored blob format ({"date", "quantity", "change"}).
type Observation struct {
	Date     string   `json:"date"`
	Quantity *float64 `json:"quantity"`
	Change   *float64 `json:"change,omitempty"`
}

// NewObservation builds an observation stamped at the given instant.
func NewObservation(at time.Time, quantity, change float64) Observation {
	return Observation{
		Date:     at.UTC().Format(time.RFC3339Nano),
		Quantity: &quantity,
		Change:   &change,
	}
}

// Time parses the observation timestamp. It accepts RFC 3339 with a trailing
// Z or offset, naive ISO-8601 timestamps (read as UTC) and bare dates.
func (o Observation) Time() (time.Time, bool) {
	return parseTimestamp(o.Date)
}

// Valid reports whether the observation has both a parseable timestamp and a
// quantity.
func (o Observation) Valid() bool {
	if o.Quantity == nil {
		return false
	}
	_, ok := o.Time()
	return ok
}

// Delta returns the recorded change, treating a missing value as zero.
func (o Observation) Delta() float64 {
	if o.Change == nil {
		return 0
	}
	return *o.Change
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
}

func parseTimestamp(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if len(s) >= 10 {
		if t, err := time.Parse(time.DateOnly, s[:10]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// History is an append-ordered, size-bounded log of observations.
type History []Observation

// Parse decodes a serialized history. Missing or malformed input yields an
// empty history; individual elements that cannot be decoded are skipped.
func Parse(raw string) History {
	if strings.TrimSpace(raw) == "" {
		return History{}
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		return History{}
	}

	h := make(History, 0, len(elems))
	for _, elem := range elems {
		// json.Unmarshal accepts `null` for a struct without error.
		if string(elem) == "null" {
			continue
		}
		var o Observation
		if err := json.Unmarshal(elem, &o); err != nil {
			continue
		}
		h = append(h, o)
	}
	return h
}

// String serializes the history. An empty history encodes as "[]".
func (h History) String() string {
	if h == nil {
		h = History{}
	}
	data, err := json.Marshal([]Observation(h))
	if err != nil {
		return "[]"
	}
	return string(data)
}

// Append returns a new history with an observation for the change from
// oldQty to newQty. The receiver is not modified.
func (h History) Append(oldQty, newQty float64, at time.Time) History {
	next := make(History, 0, min(len(h)+1, MaxSize))
	start := 0
	if len(h)+1 > MaxSize {
		start = len(h) + 1 - MaxSize
	}
	next = append(next, h[start:]...)
	return append(next, NewObservation(at, newQty, newQty-oldQty))
}

// Append records a quantity change against a serialized history and returns
// the re-serialized result. Corrupt input is replaced by a single-entry
// history.
func Append(raw string, oldQty, newQty float64, at time.Time) string {
	return Parse(raw).Append(oldQty, newQty, at).String()
}

// LastCheck returns the timestamp of the most recent observation.
func (h History) LastCheck() (time.Time, bool) {
	if len(h) == 0 {
		return time.Time{}, false
	}
	return h[len(h)-1].Time()
}

// NeedsCheckReminder reports whether the item has never been observed or
// whether at least thresholdDays whole days have passed since the last
// observation.
func (h History) NeedsCheckReminder(now time.Time, thresholdDays int) bool {
	last, ok := h.LastCheck()
	if !ok {
		return true
	}
	return wholeDays(now.Sub(last)) >= thresholdDays
}

// NeedsCheckReminder is the serialized-history form of
// History.NeedsCheckReminder using DefaultCheckThresholdDays.
func NeedsCheckReminder(raw string, now time.Time) bool {
	return Parse(raw).NeedsCheckReminder(now, DefaultCheckThresholdDays)
}

// AverageDailyUsage divides total consumption (the sum of negative changes)
// by the whole-day span between the first and last observation. It reports
// false with fewer than two observations, unparseable endpoints or a
// non-positive span.
func (h History) AverageDailyUsage() (float64, bool) {
	if len(h) < 2 {
		return 0, false
	}

	first, ok := h[0].Time()
	if !ok {
		return 0, false
	}
	last, ok := h[len(h)-1].Time()
	if !ok {
		return 0, false
	}

	days := wholeDays(last.Sub(first))
	if days <= 0 {
		return 0, false
	}

	var consumed float64
	for _, o := range h {
		if d := o.Delta(); d < 0 {
			consumed += -d
		}
	}
	return consumed / float64(days), true
}

// wholeDays floors a duration to whole days, rounding toward negative
// infinity for negative spans.
func wholeDays(d time.Duration) int {
	n := int(d / day)
	if d < 0 && d%day != 0 {
		n--
	}
	return n
}
