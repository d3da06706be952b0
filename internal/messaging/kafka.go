// Package messaging publishes finished guardnode reports to Kafka, as JSON
// and as a protobuf Struct for consumers that prefer a binary encoding.
package messaging

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"google.golang.org/protobuf/proto"

	"github.com/bardlex/guardreport/pkg/errors"
	"github.com/bardlex/guardreport/pkg/log"
	"github.com/bardlex/guardreport/pkg/retry"
)

// messageWriter is the part of kafka.Writer the client uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaClient wraps kafka-go producers, one per topic
type KafkaClient struct {
	brokers     []string
	logger      *log.Logger
	writers     map[string]messageWriter
	writersMu   sync.Mutex
	retryConfig *retry.Config
	newWriter   func(topic string) messageWriter
}

// NewKafkaClient creates a new Kafka client
func NewKafkaClient(brokers []string, logger *log.Logger) *KafkaClient {
	k := &KafkaClient{
		brokers:     brokers,
		logger:      logger.WithComponent("kafka"),
		writers:     make(map[string]messageWriter),
		retryConfig: retry.SinkConfig(),
	}
	k.newWriter = k.kafkaWriter
	return k
}

func (k *KafkaClient) kafkaWriter(topic string) messageWriter {
	return &kafka.Writer{
		Addr:                   kafka.TCP(k.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		Async:                  false,
		BatchTimeout:           10 * time.Millisecond,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: true,
	}
}

// GetProducer gets or creates the producer for a topic
func (k *KafkaClient) GetProducer(topic string) messageWriter {
	k.writersMu.Lock()
	defer k.writersMu.Unlock()

	if writer, exists := k.writers[topic]; exists {
		return writer
	}

	writer := k.newWriter(topic)
	k.writers[topic] = writer
	k.logger.Debug("created Kafka producer", "topic", topic)
	return writer
}

// PublishProto publishes a protobuf message to Kafka
func (k *KafkaClient) PublishProto(ctx context.Context, topic, key string, msg proto.Message) error {
	data, err := proto.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "protobuf_marshal",
			"failed to marshal protobuf message").
			WithContext("topic", topic).
			WithContext("key", key)
	}

	return k.publish(ctx, "publish_proto", topic, key, data)
}

// PublishJSON publishes an already encoded JSON message to Kafka
func (k *KafkaClient) PublishJSON(ctx context.Context, topic, key string, data []byte) error {
	return k.publish(ctx, "publish_json", topic, key, data)
}

func (k *KafkaClient) publish(ctx context.Context, operation, topic, key string, data []byte) error {
	return retry.Do(ctx, k.retryConfig, func() error {
		writer := k.GetProducer(topic)
		kafkaMsg := kafka.Message{
			Key:   []byte(key),
			Value: data,
			Time:  time.Now(),
		}

		if err := writer.WriteMessages(ctx, kafkaMsg); err != nil {
			return errors.Wrap(err, errors.ErrorTypeSink, operation,
				"failed to publish message to Kafka").
				WithContext("topic", topic).
				WithContext("key", key).
				WithContext("message_size", len(data))
		}

		k.logger.Debug("published message", "topic", topic, "key", key, "size", len(data))
		return nil
	})
}

// Close closes all producers
func (k *KafkaClient) Close() error {
	k.writersMu.Lock()
	defer k.writersMu.Unlock()

	var lastErr error
	for topic, writer := range k.writers {
		if err := writer.Close(); err != nil {
			k.logger.Error("failed to close producer", "topic", topic, "error", err)
			lastErr = err
		}
	}

	k.writers = make(map[string]messageWriter)
	return lastErr
}
