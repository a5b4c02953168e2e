package render

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand"
	"strings"
)

// Reading is a displayed widget value. Readings are synthesized from the
// element label for illustration only; they are not process data.
type Reading struct {
	Value float64
	Min   float64
	Max   float64
	Unit  string
}

// Fraction is the position of Value within [Min, Max].
func (r Reading) Fraction() float64 {
	if r.Max <= r.Min {
		return 0
	}
	f := (r.Value - r.Min) / (r.Max - r.Min)
	return min(max(f, 0), 1)
}

// ValueSource supplies the values shown inside widgets.
type ValueSource interface {
	Reading(label string) Reading
}

// ScreenValues is a ValueSource that can be narrowed to one screen. The
// renderer asks for the narrowed source before drawing each screen, so
// a screen shows the same readings wherever it is drawn.
type ScreenValues interface {
	ValueSource
	ForScreen(title string) ValueSource
}

type valueRange struct {
	keywords []string
	min, max float64
	unit     string
}

// valueRanges is matched in order against the lowercased label.
var valueRanges = []valueRange{
	{[]string{"temperature", "temp"}, 20, 50, "°C"},
	{[]string{"pressure"}, 1, 10, "bar"},
	{[]string{"voltage", "volt"}, 380, 420, "V"},
	{[]string{"current", "amp"}, 10, 100, "A"},
	{[]string{"frequency", "freq", "hz"}, 49.5, 50.5, "Hz"},
	{[]string{"speed", "rpm"}, 1000, 1800, "rpm"},
	{[]string{"level", "%", "percent", "load", "charge", "battery"}, 0, 100, "%"},
	{[]string{"flow"}, 10, 200, "m³/h"},
	{[]string{"power", "kw"}, 50, 500, "kW"},
}

var defaultRange = valueRange{min: 0, max: 100, unit: ""}

// RangeFor returns the value range and unit for a label.
func RangeFor(label string) (lo, hi float64, unit string) {
	lower := strings.ToLower(label)
	for _, r := range valueRanges {
		for _, k := range r.keywords {
			if strings.Contains(lower, k) {
				return r.min, r.max, r.unit
			}
		}
	}
	return defaultRange.min, defaultRange.max, defaultRange.unit
}

// RandomValues draws from the label's range. Each reading is derived
// from the seed, the screen title and the label alone, so output does
// not depend on draw order or on which goroutine renders a screen.
type RandomValues struct {
	seed   int64
	screen string
}

// NewRandomValues creates a source seeded with seed.
func NewRandomValues(seed int64) *RandomValues {
	return &RandomValues{seed: seed}
}

// ForScreen returns the source used for the screen with the given title.
func (v *RandomValues) ForScreen(title string) ValueSource {
	return &RandomValues{seed: v.seed, screen: title}
}

func (v *RandomValues) Reading(label string) Reading {
	lo, hi, unit := RangeFor(label)
	f := rand.New(rand.NewSource(v.labelSeed(label))).Float64()
	return Reading{Value: lo + f*(hi-lo), Min: lo, Max: hi, Unit: unit}
}

func (v *RandomValues) labelSeed(label string) int64 {
	h := fnv.New64a()
	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], uint64(v.seed))
	h.Write(seed[:])
	h.Write([]byte(v.screen))
	h.Write([]byte{0})
	h.Write([]byte(label))
	return int64(h.Sum64())
}

// FixedValues always reports the midpoint of the label's range.
type FixedValues struct{}

func (FixedValues) Reading(label string) Reading {
	lo, hi, unit := RangeFor(label)
	return Reading{Value: (lo + hi) / 2, Min: lo, Max: hi, Unit: unit}
}
