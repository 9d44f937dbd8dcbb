package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quantclass/stocksim/internal/simulation/domain"
	"github.com/wyfcoding/pkg/messagequeue/kafka"
)

// KafkaMarketDataPublisher 把行情与生命周期事件推到 Kafka
type KafkaMarketDataPublisher struct {
	producer *kafka.Producer
}

func NewKafkaMarketDataPublisher(producer *kafka.Producer) domain.MarketDataPublisher {
	return &KafkaMarketDataPublisher{producer: producer}
}

func (p *KafkaMarketDataPublisher) Publish(ctx context.Context, topic, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for topic %s: %w", topic, err)
	}
	return p.producer.PublishToTopic(ctx, topic, []byte(key), data)
}
