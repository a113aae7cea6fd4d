package outbox

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// ErrProducerClosed is returned by WriteMessages after Close.
var ErrProducerClosed = errors.New("outbox producer closed")

// ProducerOption configures optional behaviour for the KafkaProducer.
type ProducerOption func(*KafkaProducer)

// WithProducerLogger routes kafka-go writer errors to logger.
func WithProducerLogger(logger *log.Logger) ProducerOption {
	return func(p *KafkaProducer) {
		p.logger = logger
	}
}

// WithBatchTimeout bounds how long a writer waits to fill a batch. Outbox
// batches are already grouped, so the default is short.
func WithBatchTimeout(d time.Duration) ProducerOption {
	return func(p *KafkaProducer) {
		if d > 0 {
			p.batchTimeout = d
		}
	}
}

// WithRequiredAcks overrides the acknowledgement level. Health events
// default to waiting for all in-sync replicas.
func WithRequiredAcks(acks kafka.RequiredAcks) ProducerOption {
	return func(p *KafkaProducer) {
		p.acks = acks
	}
}

// KafkaProducer publishes outbox records, keeping one synchronous writer per
// health event topic. Records are hashed on their key, the owner's tenant
// and user, so one owner's events keep their order on a single partition.
type KafkaProducer struct {
	brokers      []string
	logger       *log.Logger
	batchTimeout time.Duration
	acks         kafka.RequiredAcks

	mu      sync.Mutex
	closed  bool
	writers map[string]*kafka.Writer
}

// NewKafkaProducer returns a producer for brokers. Writers are created on
// first use of each topic.
func NewKafkaProducer(brokers []string, opts ...ProducerOption) *KafkaProducer {
	p := &KafkaProducer{
		brokers:      brokers,
		logger:       log.New(log.Writer(), "[outbox] ", log.LstdFlags),
		batchTimeout: 10 * time.Millisecond,
		acks:         kafka.RequireAll,
		writers:      make(map[string]*kafka.Writer),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WriteMessages publishes msgs to topic and blocks until the brokers
// acknowledge them.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	writer, err := p.writerFor(topic)
	if err != nil {
		return err
	}
	if err := writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d record(s) to %s: %w", len(msgs), topic, err)
	}
	return nil
}

func (p *KafkaProducer) writerFor(topic string) (*kafka.Writer, error) {
	if topic == "" {
		return nil, errors.New("outbox record has no topic")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrProducerClosed
	}
	if w, ok := p.writers[topic]; ok {
		return w, nil
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: p.acks,
		BatchTimeout: p.batchTimeout,
		Compression:  kafka.Snappy,
		ErrorLogger: kafka.LoggerFunc(func(format string, args ...interface{}) {
			p.logger.Printf("%s: "+format, append([]interface{}{topic}, args...)...)
		}),
	}
	p.writers[topic] = w
	return w, nil
}

// Close flushes every writer. Later writes fail with ErrProducerClosed.
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	var errs []error
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close writer for %s: %w", topic, err))
		}
		delete(p.writers, topic)
	}
	return errors.Join(errs...)
}
