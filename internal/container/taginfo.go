package container

import (
	"math"
	"strconv"
	"strings"
)

// ParseDuration parses a tag-style duration: "HH:MM:SS.fff",
// "MM:SS.fff", or a bare number of seconds, returning milliseconds.
// Used for the "length" and "fade" tags in section 6.
func ParseDuration(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, false
	}
	var ms int64
	for _, p := range parts {
		secPart, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, false
		}
		ms = ms*60 + int64(secPart*1000+0.5)
	}
	return ms, true
}

// Volume reads the "volume" tag as a linear float, defaulting to 1
// when absent or unparsable.
func (t Tags) Volume() float32 {
	v := t.Get("volume")
	if v == "" {
		return 1
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 32)
	if err != nil {
		return 1
	}
	return float32(f)
}

// ReplayGain reads a replaygain_{scope}_gain tag, accepting an
// optional " dB" suffix, and returns the linear multiplier 10^(gain/20).
// ok is false when the tag is absent or malformed.
func (t Tags) ReplayGain(scope string) (linear float32, ok bool) {
	raw := t.Get("replaygain_" + scope + "_gain")
	if raw == "" {
		return 0, false
	}
	raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "dB"))
	raw = strings.TrimSpace(raw)
	db, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return float32(dbToLinear(db)), true
}

// ReplayGainPeak reads a replaygain_{scope}_peak tag as a linear peak.
func (t Tags) ReplayGainPeak(scope string) (peak float32, ok bool) {
	raw := strings.TrimSpace(t.Get("replaygain_" + scope + "_peak"))
	if raw == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return float32(f), true
}

func dbToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}
