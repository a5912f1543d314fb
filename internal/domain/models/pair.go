package models

import (
	"math"
	"strings"
	"time"
)

// PairKey identifies a two-asset combination. AssetA/AssetB keep the configured order,
// which is the order signal directions refer to.
type PairKey struct {
	AssetA string `json:"asset1"`
	AssetB string `json:"asset2"`
}

func NewPairKey(a, b string) PairKey {
	return PairKey{AssetA: strings.ToUpper(strings.TrimSpace(a)), AssetB: strings.ToUpper(strings.TrimSpace(b))}
}

// ParsePairKey parses the "A,B" combination form.
func ParsePairKey(s string) (PairKey, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return PairKey{}, false
	}
	k := NewPairKey(parts[0], parts[1])
	if k.AssetA == "" || k.AssetB == "" || k.AssetA == k.AssetB {
		return PairKey{}, false
	}
	return k, true
}

// ID returns the display id, e.g. "BTCUSDT,ETHUSDT".
func (k PairKey) ID() string { return k.AssetA + "," + k.AssetB }

// Key returns the canonical unordered identity used for map lookups.
func (k PairKey) Key() string {
	if k.AssetB < k.AssetA {
		return k.AssetB + "," + k.AssetA
	}
	return k.AssetA + "," + k.AssetB
}

func (k PairKey) String() string { return k.ID() }

// SignalType is the trading action suggested for a pair.
type SignalType string

const (
	SignalLongAShortB    SignalType = "LONG_A_SHORT_B"
	SignalShortALongB    SignalType = "SHORT_A_LONG_B"
	SignalClosePositions SignalType = "CLOSE_POSITIONS"
	SignalNone           SignalType = "NO_SIGNAL"
)

// ParseSignalType accepts both the short names and the backend's ASSET1/ASSET2 spelling.
// Anything unrecognised maps to SignalNone.
func ParseSignalType(s string) SignalType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LONG_A_SHORT_B", "LONG_ASSET1_SHORT_ASSET2":
		return SignalLongAShortB
	case "SHORT_A_LONG_B", "SHORT_ASSET1_LONG_ASSET2":
		return SignalShortALongB
	case "CLOSE_POSITIONS":
		return SignalClosePositions
	default:
		return SignalNone
	}
}

// Directional reports whether the signal opens a position.
func (t SignalType) Directional() bool {
	return t == SignalLongAShortB || t == SignalShortALongB
}

// Signal strength labels as produced by the backend, strongest first.
const (
	RatingExtreme    = "極強"
	RatingVeryStrong = "很強"
	RatingStrong     = "強"
	RatingModerate   = "中等"
	RatingWeak       = "弱"
	RatingVeryWeak   = "很弱"
)

// RatingForZScore maps |z| onto the backend's strength ladder.
func RatingForZScore(z float64) string {
	abs := SafeAbs(z)
	switch {
	case abs > 3.0:
		return RatingExtreme
	case abs > 2.5:
		return RatingVeryStrong
	case abs > 2.0:
		return RatingStrong
	case abs > 1.5:
		return RatingModerate
	case abs > 1.0:
		return RatingWeak
	default:
		return RatingVeryWeak
	}
}

// SafeAbs returns |v|, with NaN and infinities collapsed to 0.
func SafeAbs(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Abs(v)
}

// ResultRecord is the normalized per-pair metrics of one poll cycle. Treat as immutable.
type ResultRecord struct {
	Pair             PairKey    `json:"pair"`
	Correlation      float64    `json:"correlation"`
	Beta             float64    `json:"beta"`
	ZScore           float64    `json:"zScore"`
	SignalType       SignalType `json:"signalType"`
	SignalRating     string     `json:"signalRating"`
	Spread           float64    `json:"spread"`
	SpreadMean       float64    `json:"spreadMean"`
	SpreadStd        float64    `json:"spreadStd"`
	ArbitrageCount   int        `json:"arbitrageCount"`
	LiquidationCount int        `json:"liquidationCount"`
	StationaryTest   bool       `json:"stationaryTest"`
	ReceivedAt       time.Time  `json:"receivedAt"`
}

// Oriented relabels r to the asset order of p. When r arrived as B,A the directional
// signal is swapped and the z-score negated so both still describe the same trade.
func (r ResultRecord) Oriented(p PairKey) ResultRecord {
	if r.Pair == p || r.Pair.AssetA != p.AssetB || r.Pair.AssetB != p.AssetA {
		return r
	}
	r.Pair = p
	r.ZScore = -r.ZScore
	switch r.SignalType {
	case SignalLongAShortB:
		r.SignalType = SignalShortALongB
	case SignalShortALongB:
		r.SignalType = SignalLongAShortB
	}
	return r
}

// ResultSet is an insertion-ordered map of pair key to its latest record.
// Replacing a record keeps the pair's original position.
type ResultSet struct {
	order []string
	items map[string]ResultRecord
}

func NewResultSet() *ResultSet {
	return &ResultSet{items: make(map[string]ResultRecord)}
}

// Put stores r under its pair's canonical key; last write wins.
func (s *ResultSet) Put(r ResultRecord) {
	k := r.Pair.Key()
	if _, ok := s.items[k]; !ok {
		s.order = append(s.order, k)
	}
	s.items[k] = r
}

func (s *ResultSet) Get(p PairKey) (ResultRecord, bool) {
	r, ok := s.items[p.Key()]
	return r, ok
}

func (s *ResultSet) Delete(p PairKey) {
	k := p.Key()
	if _, ok := s.items[k]; !ok {
		return
	}
	delete(s.items, k)
	for i, o := range s.order {
		if o == k {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *ResultSet) Len() int { return len(s.order) }

// Records returns the records in insertion order.
func (s *ResultSet) Records() []ResultRecord {
	out := make([]ResultRecord, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.items[k])
	}
	return out
}

// Clone returns an independent copy.
func (s *ResultSet) Clone() *ResultSet {
	c := &ResultSet{
		order: append([]string(nil), s.order...),
		items: make(map[string]ResultRecord, len(s.items)),
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	return c
}
