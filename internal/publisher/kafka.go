package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/ternarybob/arbor"

	"PennyAI/internal/config"
	"PennyAI/internal/model"
)

// KafkaPublisher sends one message per verdict, keyed by ticker so a ticker's
// verdicts stay ordered within a partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   arbor.ILogger
	now      func() time.Time
}

// NewKafkaPublisher connects a synchronous producer to the configured brokers.
func NewKafkaPublisher(cfg config.KafkaConfig, logger arbor.ILogger) (*KafkaPublisher, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, producerConfig(cfg.ClientID))
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	logger.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("kafka publisher connected")
	return NewKafkaPublisherWithProducer(producer, cfg.Topic, logger), nil
}

// NewKafkaPublisherWithProducer wraps an existing producer.
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string, logger arbor.ILogger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, logger: logger, now: time.Now}
}

func producerConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Version = sarama.V2_8_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	return cfg
}

// PublishVerdicts sends every update carrying a verdict. A failed send is
// logged and the rest are still attempted; the joined error is returned.
func (p *KafkaPublisher) PublishVerdicts(ctx context.Context, updates []model.AnnotationUpdate) (int, error) {
	var (
		sent int
		errs []error
	)
	for _, u := range updates {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if u.Annotation.Verdict == model.VerdictUnset {
			continue
		}
		payload, err := json.Marshal(NewVerdictEvent(u, p.now()))
		if err != nil {
			errs = append(errs, fmt.Errorf("marshal verdict %d: %w", u.RowID, err))
			continue
		}
		partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
			Topic: p.topic,
			Key:   sarama.StringEncoder(u.Ticker),
			Value: sarama.ByteEncoder(payload),
		})
		if err != nil {
			p.logger.Warn().Err(err).Int64("row_id", u.RowID).Str("ticker", u.Ticker).Msg("verdict publish failed")
			errs = append(errs, fmt.Errorf("send verdict %d: %w", u.RowID, err))
			continue
		}
		p.logger.Debug().
			Int64("row_id", u.RowID).
			Str("ticker", u.Ticker).
			Int("partition", int(partition)).
			Int64("offset", offset).
			Msg("verdict published")
		sent++
	}
	return sent, errors.Join(errs...)
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
