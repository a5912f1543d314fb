package usecase

import (
	"context"
	"testing"

	"PairWatch/internal/domain/models"
	"PairWatch/internal/services/classify"
	"PairWatch/pkg/logger"
)

func TestKafkaResultsHandler(t *testing.T) {
	mon, metrics := newMonitor(newFakePairSource(), models.NewPairKey("BTCUSDT", "ETHUSDT"))
	h := NewKafkaResultsHandler("pair-results", mon, metrics, logger.Nop())
	if h.Topic() != "pair-results" {
		t.Fatalf("topic=%s", h.Topic())
	}

	msg := []byte(`{"asset1":"BTCUSDT","asset2":"ETHUSDT","correlation":0.91,"zscore":-2.4,"signalType":"LONG_ASSET1_SHORT_ASSET2"}`)
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	rec, ok := mon.Get(models.NewPairKey("BTCUSDT", "ETHUSDT"))
	if !ok || rec.ZScore != -2.4 || rec.SignalType != models.SignalLongAShortB {
		t.Fatalf("unexpected record %+v ok=%v", rec, ok)
	}

	if err := h.Handle(context.Background(), []byte(`{"asset1":"SOL","asset2":"ADA","zScore":1}`)); err != nil {
		t.Fatalf("untracked pair should be skipped, got %v", err)
	}
	if err := h.Handle(context.Background(), []byte(`{not json`)); err == nil {
		t.Fatalf("expected unmarshal error")
	}
	if err := h.Handle(context.Background(), []byte(`{"zScore":1}`)); err == nil {
		t.Fatalf("expected missing pair error")
	}
	if metrics.count("consumer_unmarshal") != 1 || metrics.count("consumer_normalize") != 1 {
		t.Fatalf("errors not counted: %+v", metrics.errors)
	}
}

func TestKafkaResultsHandlerReversedOrder(t *testing.T) {
	tracked := models.NewPairKey("BTCUSDT", "ETHUSDT")
	mon, metrics := newMonitor(newFakePairSource(), tracked)
	h := NewKafkaResultsHandler("pair-results", mon, metrics, logger.Nop())

	msg := []byte(`{"asset1":"ETHUSDT","asset2":"BTCUSDT","correlation":0.93,"zScore":-2.7,"signalType":"LONG_ASSET1_SHORT_ASSET2"}`)
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	rec, ok := mon.Get(tracked)
	if !ok {
		t.Fatalf("record not stored")
	}
	if rec.Pair != tracked || rec.SignalType != models.SignalShortALongB || rec.ZScore != 2.7 {
		t.Fatalf("record not reoriented: %+v", rec)
	}
	if got := classify.SignalText(rec.SignalType, rec.Pair.AssetA, rec.Pair.AssetB); got != "short BTCUSDT, long ETHUSDT" {
		t.Fatalf("action=%q", got)
	}
}
