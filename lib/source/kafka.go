package source

import (
	"context"
	"errors"
	"fmt"
	"github.com/segmentio/kafka-go"
	"sync/atomic"
	"time"
)

// messageReader is the part of *kafka.Reader the source uses
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaSource consumes commands from a kafka topic. Every message value is one command
// line, a non empty message key overrides the routing key.
type KafkaSource struct {
	topic  string
	reader messageReader

	read    atomic.Int64
	skipped atomic.Int64
}

// NewKafkaSource creates a consumer group reader. Offsets are committed by the reader
// as messages are read.
func NewKafkaSource(brokers []string, topic, group string) *KafkaSource {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        group,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: time.Second,
	})
	return &KafkaSource{topic: topic, reader: reader}
}

func (s *KafkaSource) GetName() string {
	return "kafka(" + s.topic + ")"
}

// Run implements ISource. It returns once ctx is cancelled.
func (s *KafkaSource) Run(ctx context.Context, sink Sink) error {
	for {
		msg, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				Logger.Infof("Stopped consuming %s: %d commands, %d skipped", s.topic, s.read.Load(), s.skipped.Load())
				return nil
			}
			return fmt.Errorf("failed to read from %s: %w", s.topic, err)
		}

		cmd, ok, err := ParseLine(string(msg.Value))
		if err != nil {
			s.skipped.Add(1)
			Logger.Warningf("%s[%d]@%d: %v", msg.Topic, msg.Partition, msg.Offset, err)
			continue
		}
		if !ok {
			continue
		}

		key := cmd.Key()
		if len(msg.Key) > 0 {
			key = string(msg.Key)
		}
		if err := sink.Enqueue(key, cmd.DB, cmd.Encode()); err != nil {
			return fmt.Errorf("failed to enqueue message at offset %d: %w", msg.Offset, err)
		}
		s.read.Add(1)
	}
}

// Read returns the number of commands handed to the sink
func (s *KafkaSource) Read() int64 {
	return s.read.Load()
}

// Skipped returns the number of malformed messages
func (s *KafkaSource) Skipped() int64 {
	return s.skipped.Load()
}

func (s *KafkaSource) Close() error {
	return s.reader.Close()
}
