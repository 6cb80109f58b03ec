package emitters

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"wallet-monitor/internal/logger"
	"wallet-monitor/internal/models"

	"github.com/segmentio/kafka-go"
)

// KafkaEmitter publishes whale transfer events to a Kafka topic, keyed by
// transaction hash.
type KafkaEmitter struct {
	writer *kafka.Writer
	mu     sync.Mutex
}

// NewKafkaEmitter creates a new KafkaEmitter
func NewKafkaEmitter(brokerAddress, topic string) *KafkaEmitter {
	return &KafkaEmitter{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokerAddress),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (k *KafkaEmitter) EmitTransfer(t models.Transfer) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	value, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal transfer: %v", err)
	}

	err = k.writer.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(t.TxHash),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to write message to Kafka: %v", err)
	}

	logger.GetLogger().Info().
		Str("network", t.Network.String()).
		Str("txHash", t.TxHash).
		Msg("Successfully emitted transfer to Kafka")
	return nil
}

func (k *KafkaEmitter) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.writer != nil {
		err := k.writer.Close()
		k.writer = nil
		return err
	}
	return nil
}
