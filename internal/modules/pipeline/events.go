// README: Run-finished events published to Kafka (sarama sync producer).
package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/rotisserie/eris"
)

type EventPublisher interface {
	Publish(ctx context.Context, run *Run) error
}

// RunEvent is the compact wire form of a finished run.
type RunEvent struct {
	RunID         string          `json:"run_id"`
	TriggerSource string          `json:"trigger_source"`
	Status        Status          `json:"status"`
	StartedAt     time.Time       `json:"started_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	DurationMs    int64           `json:"duration_ms"`
	Phases        map[string]bool `json:"phases"`
	Errors        []string        `json:"errors,omitempty"`
	Retrained     bool            `json:"retrained"`
}

func NewRunEvent(run *Run) RunEvent {
	ev := RunEvent{
		RunID:         string(run.ID),
		TriggerSource: run.TriggerSource,
		Status:        run.Status,
		StartedAt:     run.StartedAt,
		CompletedAt:   run.CompletedAt,
		DurationMs:    run.DurationMs,
		Phases:        make(map[string]bool, len(run.Results)),
		Errors:        run.Errors,
		Retrained:     run.Retrain != nil && run.Retrain.Trained,
	}
	for name, res := range run.Results {
		ev.Phases[name] = res.Success
	}
	return ev
}

type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, run *Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(NewRunEvent(run))
	if err != nil {
		return eris.Wrap(err, "pipeline: encode run event")
	}
	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(run.ID),
		Value: sarama.ByteEncoder(body),
	})
	if err != nil {
		return eris.Wrapf(err, "pipeline: publish run %s", run.ID)
	}
	return nil
}
