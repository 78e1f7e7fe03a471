// README: Kafka sync producer (sarama) for pipeline run events.
package infra

import (
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/rotisserie/eris"
)

func NewKafkaProducer(brokers string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Retry.Backoff = 100 * time.Millisecond
	cfg.Producer.Return.Successes = true
	cfg.Net.DialTimeout = 10 * time.Second

	list := strings.Split(brokers, ",")
	producer, err := sarama.NewSyncProducer(list, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "infra: kafka producer")
	}
	return producer, nil
}
