// Package kafka publishes score records to a Kafka topic for downstream
// consumers. Publishing is optional; the pipeline runs without it when no
// brokers are configured.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adrian2901/bloomwatch/internal/config"
	"github.com/Adrian2901/bloomwatch/internal/domain"
	"github.com/Adrian2901/bloomwatch/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces one message per scored year per model.
// It implements pipeline.ScoreSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured score topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaScoreTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// WriteScores serializes every score record from a run and publishes them in
// a single WriteMessages call. Messages are keyed by model and year, so a
// compacted topic retains only the latest record per scored year.
func (w *Writer) WriteScores(ctx context.Context, result pipeline.Result) error {
	msgs := make([]kafkago.Message, 0, len(result.Climate)+len(result.Bloom.Scores))
	for _, rec := range result.Climate {
		msg, err := serializeToMessage(domain.ModelClimate, rec.WaterYear, rec.ComputedAt, rec)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	for _, rec := range result.Bloom.Scores {
		msg, err := serializeToMessage(domain.ModelBloom, rec.Year, rec.ComputedAt, rec)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return nil
	}

	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish scores: %w", err)
	}
	w.logger.Debug("scores published", "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals one score record into a Kafka message keyed by
// model and year, e.g. "climate-2019".
func serializeToMessage(model domain.Model, year int, computedAt time.Time, rec any) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s score: %w", model, err)
	}
	return kafkago.Message{
		Key:   []byte(fmt.Sprintf("%s-%d", model, year)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "model", Value: []byte(model)},
			{Key: "computed_at", Value: []byte(computedAt.Format(time.RFC3339))},
		},
	}, nil
}
