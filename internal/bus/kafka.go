package bus

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/models"
	domrepo "github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/repository"
	"github.com/yybrother989/tesla-trading-agent-sub000/pkg/config"
	pkgkafka "github.com/yybrother989/tesla-trading-agent-sub000/pkg/kafka"
	"github.com/yybrother989/tesla-trading-agent-sub000/pkg/logger"
)

// Kafka carries pipeline events over a Kafka topic so that several API
// replicas can feed their own stream clients from one ingesting instance.
// Events are keyed by symbol: the hash balancer pins a symbol to one
// partition, which keeps its events ordered end to end.
type Kafka struct {
	producer *pkgkafka.Producer
	consumer *pkgkafka.Consumer
	topic    string

	mu       sync.Mutex
	handlers []domrepo.EventHandler

	metrics domrepo.Metrics
	l       *logger.Logger
}

func NewKafka(cfg *config.Config, metrics domrepo.Metrics, l *logger.Logger) (*Kafka, error) {
	kc := cfg.Bus.Kafka

	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(kc.Brokers),
		pkgkafka.WithRequiredAcks(kc.RequiredAcks),
		pkgkafka.WithTimeouts(kc.WriteTimeout, kc.ReadTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, err
	}

	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(kc.Brokers),
		pkgkafka.WithConsumerGroupID(kc.GroupID),
		pkgkafka.WithConsumerAutoOffsetReset("latest"),
		pkgkafka.WithConsumerFetch(kc.MinBytes, kc.MaxBytes),
	)
	if err != nil {
		_ = producer.Close()
		return nil, err
	}

	k := &Kafka{
		producer: producer,
		consumer: consumer,
		topic:    kc.Topic,
		metrics:  metrics,
		l:        l,
	}
	consumer.RegisterHandler(k)
	return k, nil
}

func (k *Kafka) Publish(ctx context.Context, evt *models.Event) error {
	if evt == nil {
		return nil
	}
	return k.producer.Publish(ctx, k.topic, []byte(evt.Symbol), evt)
}

func (k *Kafka) Subscribe(h domrepo.EventHandler) {
	if h == nil {
		return
	}
	k.mu.Lock()
	k.handlers = append(k.handlers, h)
	k.mu.Unlock()
}

func (k *Kafka) Start(context.Context) error {
	return k.consumer.Start()
}

func (k *Kafka) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := k.consumer.Stop(ctx)
	if cerr := k.producer.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Topic implements kafka.MessageHandler.
func (k *Kafka) Topic() string { return k.topic }

// Handle implements kafka.MessageHandler: decode one event and fan it out.
// Undecodable messages are counted and skipped; retrying them cannot help.
func (k *Kafka) Handle(_ context.Context, data []byte) error {
	var evt models.Event
	if err := json.Unmarshal(data, &evt); err != nil {
		k.metrics.RecordError("bus_decode")
		k.l.Warn("dropping undecodable bus event", logger.Error(err))
		return nil
	}

	k.mu.Lock()
	handlers := k.handlers
	k.mu.Unlock()
	dispatchEvent(handlers, &evt, k.l)
	return nil
}
