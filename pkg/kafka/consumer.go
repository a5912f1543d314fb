package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"PairWatch/pkg/logger"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. The message goes straight to the DLQ.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func isPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// Consumer reads registered topics and dispatches messages to a worker pool.
// Messages of one partition are handled one at a time.
type Consumer struct {
	cfg       *ConsumerConfig
	log       *logger.Logger
	newReader func(topic string) MessageReader
	readers   map[string]MessageReader
	handlers  map[string]MessageHandler
	dlq       MessageWriter

	msgChan  chan kafka.Message
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu        sync.Mutex
	partLocks map[string]*sync.Mutex
}

func NewConsumer(log *logger.Logger, opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "pairwatch",
		WorkerCount: 1,
		BufferSize:  16,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    1,
		MaxBytes:    10e6,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	c := newConsumer(cfg, log)
	c.newReader = func(topic string) MessageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    topic,
			GroupID:  cfg.GroupID,
			MinBytes: cfg.MinBytes,
			MaxBytes: cfg.MaxBytes,
		})
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}
	return c, nil
}

func newConsumer(cfg *ConsumerConfig, log *logger.Logger) *Consumer {
	if log == nil {
		log = logger.Nop()
	}
	initMetrics()
	return &Consumer{
		cfg:       cfg,
		log:       log.With(logger.String("component", "kafka_consumer")),
		readers:   make(map[string]MessageReader),
		handlers:  make(map[string]MessageHandler),
		msgChan:   make(chan kafka.Message, cfg.BufferSize),
		stop:      make(chan struct{}),
		partLocks: make(map[string]*sync.Mutex),
	}
}

// RegisterHandler registers a handler for its topic. A second handler for the same topic is ignored.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	if _, ok := c.handlers[h.Topic()]; ok {
		c.log.Warn("handler already registered", logger.String("topic", h.Topic()))
		return
	}
	c.handlers[h.Topic()] = h
}

// Start opens one reader per registered topic and starts the workers.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("no handlers registered")
	}
	for topic := range c.handlers {
		c.readers[topic] = c.newReader(topic)
	}
	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.wg.Add(1)
		go c.worker()
	}
	for topic, r := range c.readers {
		c.wg.Add(1)
		go c.read(topic, r)
	}
	c.log.Info("kafka consumer started",
		logger.Int("workers", c.cfg.WorkerCount),
		logger.Int("topics", len(c.readers)),
	)
	return nil
}

// Stop stops reading, drains in-flight messages and closes the readers.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		close(c.stop)

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
		}

		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.log.Error("close reader", logger.String("topic", topic), logger.Error(cerr))
			}
		}
		if c.dlq != nil {
			if cerr := c.dlq.Close(); cerr != nil {
				c.log.Error("close dlq writer", logger.Error(cerr))
			}
		}
		if err == nil {
			c.log.Info("kafka consumer stopped")
		}
	})
	return err
}

func (c *Consumer) read(topic string, r MessageReader) {
	defer c.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-c.stop
		cancel()
	}()

	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Error("fetch message", logger.String("topic", topic), logger.Error(err))
			select {
			case <-time.After(c.cfg.BackoffMin):
				continue
			case <-c.stop:
				return
			}
		}
		if msg.Topic == "" {
			msg.Topic = topic
		}

		select {
		case c.msgChan <- msg:
			consumerQueue.WithLabelValues(topic).Set(float64(len(c.msgChan)))
		case <-c.stop:
			return
		}
	}
}

func (c *Consumer) worker() {
	defer c.wg.Done()
	for {
		select {
		case msg := <-c.msgChan:
			c.process(msg)
		case <-c.stop:
			return
		}
	}
}

// process handles one message with retries, sends failures to the DLQ and commits.
// It reports whether the offset was committed.
func (c *Consumer) process(msg kafka.Message) bool {
	h, ok := c.handlers[msg.Topic]
	if !ok {
		return false
	}

	pl := c.partitionLock(msg.Topic, msg.Partition)
	pl.Lock()
	defer pl.Unlock()

	start := time.Now()
	err := c.handleWithRetry(h, msg)
	observeHandle(msg.Topic, time.Since(start), err)

	if err != nil {
		c.log.Error("message handling failed",
			logger.String("topic", msg.Topic),
			logger.Int("partition", msg.Partition),
			logger.Int64("offset", msg.Offset),
			logger.Error(err),
		)
		if c.dlq == nil || c.cfg.DLQTopic == "" {
			return false
		}
		if derr := c.sendDLQ(msg, err); derr != nil {
			c.log.Error("write dlq", logger.String("topic", c.cfg.DLQTopic), logger.Error(derr))
			return false
		}
	}

	r := c.readers[msg.Topic]
	if r == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if cerr := r.CommitMessages(ctx, msg); cerr != nil {
		c.log.Error("commit offset", logger.String("topic", msg.Topic), logger.Error(cerr))
		return false
	}
	return true
}

func (c *Consumer) handleWithRetry(h MessageHandler, msg kafka.Message) (err error) {
	for attempt := 1; ; attempt++ {
		err = c.safeHandle(h, msg.Value)
		if err == nil || isPermanent(err) || attempt > c.cfg.RetryMax {
			return err
		}
		select {
		case <-time.After(backoff(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)):
		case <-c.stop:
			return err
		}
	}
}

func (c *Consumer) safeHandle(h MessageHandler, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(fmt.Errorf("handler panic: %v", r))
		}
	}()
	return h.Handle(context.Background(), data)
}

func (c *Consumer) sendDLQ(msg kafka.Message, cause error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.dlq.WriteMessages(ctx, kafka.Message{
		Topic: c.cfg.DLQTopic,
		Key:   msg.Key,
		Value: msg.Value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "source_topic", Value: []byte(msg.Topic)},
			{Key: "error", Value: []byte(cause.Error())},
		},
	})
}

func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	key := fmt.Sprintf("%s/%d", topic, partition)
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.partLocks[key]
	if !ok {
		l = &sync.Mutex{}
		c.partLocks[key] = l
	}
	return l
}

func backoff(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	d := min << uint(attempt-1)
	if d > max || d <= 0 {
		d = max
	}
	if half := int64(d) / 2; half > 0 {
		d -= time.Duration(rand.Int63n(half))
	}
	return d
}
