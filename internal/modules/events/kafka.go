// README: Kafka export of order lifecycle frames.
package events

import (
	"context"
	"errors"
	"sync"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"courier/internal/types"
)

const DefaultTopic = "courier.order-events"

var (
	ErrExportBacklog = errors.New("kafka export backlog is full")
	ErrSinkClosed    = errors.New("kafka sink is closed")
)

// KafkaSink hands frames to an async producer keyed by order id so one order's
// events stay in one partition. Export never waits on the brokers: when the
// producer's input buffer is full the frame is dropped.
type KafkaSink struct {
	producer sarama.AsyncProducer
	topic    string
	log      *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewKafkaSink(producer sarama.AsyncProducer, topic string, log *zap.Logger) *KafkaSink {
	if topic == "" {
		topic = DefaultTopic
	}
	if log == nil {
		log = zap.NewNop()
	}
	k := &KafkaSink{producer: producer, topic: topic, log: log, done: make(chan struct{})}
	go k.drain()
	return k
}

// drain consumes delivery reports until the producer shuts down.
func (k *KafkaSink) drain() {
	defer close(k.done)
	errs, oks := k.producer.Errors(), k.producer.Successes()
	for errs != nil || oks != nil {
		select {
		case pe, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			fields := []zap.Field{zap.String("topic", k.topic), zap.Error(pe.Err)}
			if pe.Msg != nil && pe.Msg.Key != nil {
				if key, err := pe.Msg.Key.Encode(); err == nil {
					fields = append(fields, zap.String("order_id", string(key)))
				}
			}
			k.log.Warn("order event export failed", fields...)
		case _, ok := <-oks:
			if !ok {
				oks = nil
			}
		}
	}
}

func (k *KafkaSink) Export(_ context.Context, orderID types.ID, frame []byte) error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return ErrSinkClosed
	}
	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(orderID.String()),
		Value: sarama.ByteEncoder(frame),
	}
	select {
	case k.producer.Input() <- msg:
		return nil
	default:
		return ErrExportBacklog
	}
}

// Close flushes buffered frames and waits for their delivery reports.
func (k *KafkaSink) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	k.mu.Unlock()

	k.producer.AsyncClose()
	<-k.done
	return nil
}
