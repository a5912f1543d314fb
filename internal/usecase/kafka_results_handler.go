package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"PairWatch/internal/domain/models"
	domrepo "PairWatch/internal/domain/repository"
	pkgkafka "PairWatch/pkg/kafka"
	"PairWatch/pkg/logger"
)

// KafkaResultsHandler merges backtest results pushed on a topic into the monitor.
// Results for pairs that are not tracked are skipped without error.
type KafkaResultsHandler struct {
	topic   string
	monitor *PairMonitor
	metrics domrepo.Metrics
	log     *logger.Logger
	now     func() time.Time
}

func NewKafkaResultsHandler(topic string, monitor *PairMonitor, metrics domrepo.Metrics, log *logger.Logger) *KafkaResultsHandler {
	return &KafkaResultsHandler{topic: topic, monitor: monitor, metrics: metrics, log: log, now: time.Now}
}

func (h *KafkaResultsHandler) Topic() string { return h.topic }

// message schema: the backend's backtest result, asset1/asset2 required
func (h *KafkaResultsHandler) Handle(ctx context.Context, b []byte) error {
	var raw models.RawResult
	if err := json.Unmarshal(b, &raw); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Permanent(err)
	}
	rec, err := raw.Normalize(models.PairKey{}, h.now())
	if err != nil {
		h.metrics.RecordError("consumer_normalize")
		return pkgkafka.Permanent(err)
	}

	if err := h.monitor.Merge(rec); err != nil {
		if errors.Is(err, ErrPairNotTracked) {
			h.log.Debug("skipping result for untracked pair", logger.String("pair", rec.Pair.ID()))
			return nil
		}
		return err
	}
	h.metrics.RecordFetch("kafka")
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaResultsHandler)(nil)
