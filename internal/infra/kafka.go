// README: Kafka producer for order lifecycle export.
package infra

import (
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// NewKafkaProducer returns nil when no brokers are configured. The producer is
// async; failures arrive on Errors() and are never seen by request handlers.
func NewKafkaProducer(brokers []string) (sarama.AsyncProducer, error) {
	if len(brokers) == 0 {
		return nil, nil
	}
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Retry.Backoff = 250 * time.Millisecond
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false
	cfg.Producer.Timeout = 5 * time.Second
	cfg.Net.DialTimeout = 3 * time.Second
	cfg.Net.WriteTimeout = 5 * time.Second

	p, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating kafka producer: %w", err)
	}
	return p, nil
}
