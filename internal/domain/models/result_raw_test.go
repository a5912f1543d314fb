package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func decodeRaw(t *testing.T, s string) RawResult {
	t.Helper()
	var r RawResult
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return r
}

func TestNormalizeZScoreFallback(t *testing.T) {
	now := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	fb := NewPairKey("btcusdt", "ethusdt")

	rec, err := decodeRaw(t, `{"zscore": -2.7}`).Normalize(fb, now)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if rec.ZScore != -2.7 {
		t.Fatalf("zscore=%v want -2.7", rec.ZScore)
	}
	if rec.SignalRating != RatingVeryStrong {
		t.Fatalf("derived rating=%q", rec.SignalRating)
	}

	rec, _ = decodeRaw(t, `{"zScore": 1.2, "zscore": 3}`).Normalize(fb, now)
	if rec.ZScore != 1.2 {
		t.Fatalf("zScore should win, got %v", rec.ZScore)
	}

	rec, _ = decodeRaw(t, `{}`).Normalize(fb, now)
	if rec.ZScore != 0 || rec.SignalType != SignalNone || !rec.StationaryTest {
		t.Fatalf("unexpected defaults %+v", rec)
	}
	if rec.Pair.ID() != "BTCUSDT,ETHUSDT" || !rec.ReceivedAt.Equal(now) {
		t.Fatalf("unexpected pair/time %+v", rec)
	}
}

func TestNormalizeFields(t *testing.T) {
	raw := decodeRaw(t, `{
		"asset1": "SOLUSDT", "asset2": "AVAXUSDT",
		"correlation": 0.83, "beta": 1.4, "zScore": 2.1,
		"signalType": "SHORT_ASSET1_LONG_ASSET2", "signalRating": "強",
		"spread": 0.4, "spreadMean": 0.1, "spreadStd": 0.2,
		"arbitrageCount": 7, "liquidationCount": -3, "stationaryTest": false
	}`)
	rec, err := raw.Normalize(PairKey{}, time.Now())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if rec.Pair != NewPairKey("SOLUSDT", "AVAXUSDT") {
		t.Fatalf("pair=%v", rec.Pair)
	}
	if rec.SignalType != SignalShortALongB || !rec.SignalType.Directional() {
		t.Fatalf("signal=%v", rec.SignalType)
	}
	if rec.ArbitrageCount != 7 || rec.LiquidationCount != 0 {
		t.Fatalf("counts arb=%d liq=%d", rec.ArbitrageCount, rec.LiquidationCount)
	}
	if rec.StationaryTest {
		t.Fatalf("stationary test should be false")
	}
	if rec.SignalRating != RatingStrong {
		t.Fatalf("rating=%q", rec.SignalRating)
	}
}

func TestNormalizeMissingPair(t *testing.T) {
	_, err := RawResult{Asset1: "BTCUSDT"}.Normalize(PairKey{}, time.Now())
	if !errors.Is(err, ErrMissingPair) {
		t.Fatalf("expected ErrMissingPair, got %v", err)
	}
}

func TestParseSignalTypeUnknown(t *testing.T) {
	if got := ParseSignalType("BUY_EVERYTHING"); got != SignalNone {
		t.Fatalf("got %v", got)
	}
	if got := ParseSignalType(" close_positions "); got != SignalClosePositions {
		t.Fatalf("got %v", got)
	}
}

func TestPairKey(t *testing.T) {
	a := NewPairKey("ethusdt", "btcusdt")
	b := NewPairKey("BTCUSDT", "ETHUSDT")
	if a.Key() != b.Key() {
		t.Fatalf("canonical keys differ: %s %s", a.Key(), b.Key())
	}
	if a.ID() == b.ID() {
		t.Fatalf("display ids should keep order")
	}
	if _, ok := ParsePairKey("BTCUSDT"); ok {
		t.Fatalf("single asset should not parse")
	}
	if _, ok := ParsePairKey("BTC,BTC"); ok {
		t.Fatalf("same asset twice should not parse")
	}
	k, ok := ParsePairKey(" btc , eth ")
	if !ok || k.ID() != "BTC,ETH" {
		t.Fatalf("parse=%v ok=%v", k, ok)
	}
}

func TestResultSetLastWriteKeepsPosition(t *testing.T) {
	s := NewResultSet()
	s.Put(ResultRecord{Pair: NewPairKey("A", "B"), ZScore: 1})
	s.Put(ResultRecord{Pair: NewPairKey("C", "D"), ZScore: 2})
	s.Put(ResultRecord{Pair: NewPairKey("B", "A"), ZScore: 3})

	if s.Len() != 2 {
		t.Fatalf("len=%d want 2", s.Len())
	}
	recs := s.Records()
	if recs[0].ZScore != 3 || recs[1].ZScore != 2 {
		t.Fatalf("unexpected order %+v", recs)
	}

	c := s.Clone()
	s.Delete(NewPairKey("A", "B"))
	if s.Len() != 1 || c.Len() != 2 {
		t.Fatalf("clone not independent: %d %d", s.Len(), c.Len())
	}
	if _, ok := s.Get(NewPairKey("C", "D")); !ok {
		t.Fatalf("expected C,D")
	}
}

func TestRatingForZScore(t *testing.T) {
	cases := map[float64]string{
		3.1: RatingExtreme, -2.6: RatingVeryStrong, 2.01: RatingStrong,
		1.6: RatingModerate, -1.1: RatingWeak, 1.0: RatingVeryWeak, 0: RatingVeryWeak,
	}
	for z, want := range cases {
		if got := RatingForZScore(z); got != want {
			t.Fatalf("z=%v got %q want %q", z, got, want)
		}
	}
}

func TestOrientedSwapsDirection(t *testing.T) {
	tracked := NewPairKey("BTCUSDT", "ETHUSDT")
	in := ResultRecord{Pair: NewPairKey("ETHUSDT", "BTCUSDT"), ZScore: 2.5, SignalType: SignalLongAShortB}

	out := in.Oriented(tracked)
	if out.Pair != tracked || out.ZScore != -2.5 || out.SignalType != SignalShortALongB {
		t.Fatalf("reversed record not reoriented: %+v", out)
	}
	if back := out.Oriented(in.Pair); back.SignalType != SignalLongAShortB || back.ZScore != 2.5 {
		t.Fatalf("round trip changed record: %+v", back)
	}

	same := ResultRecord{Pair: tracked, ZScore: 1.2, SignalType: SignalShortALongB}
	if got := same.Oriented(tracked); got != same {
		t.Fatalf("same order should be untouched: %+v", got)
	}
	closing := ResultRecord{Pair: in.Pair, ZScore: 0.3, SignalType: SignalClosePositions}
	if got := closing.Oriented(tracked); got.SignalType != SignalClosePositions || got.ZScore != -0.3 {
		t.Fatalf("non-directional signal changed: %+v", got)
	}
	other := ResultRecord{Pair: NewPairKey("SOL", "ADA"), ZScore: 1}
	if got := other.Oriented(tracked); got != other {
		t.Fatalf("unrelated pair relabelled: %+v", got)
	}
}
