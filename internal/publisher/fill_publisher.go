package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/otcl-exchange/otcl-settlement/internal/kafka"
	"github.com/otcl-exchange/otcl-settlement/internal/model"
	"github.com/otcl-exchange/otcl-settlement/pkg/logger"
)

// FillPublisher 成交事件发布者
type FillPublisher struct {
	producer KafkaProducer
}

// NewFillPublisher 创建成交发布者
func NewFillPublisher(producer KafkaProducer) *FillPublisher {
	return &FillPublisher{
		producer: producer,
	}
}

// FillMessage 成交事件消息
type FillMessage struct {
	EventID   string `json:"event_id"`
	FillID    string `json:"fill_id"`
	OrderID   string `json:"order_id"`
	Filler    string `json:"filler"`
	Quantity  uint64 `json:"quantity"`
	Fee       uint64 `json:"fee"`
	Net       uint64 `json:"net"`
	Reward    uint64 `json:"reward"`
	Timestamp int64  `json:"timestamp"` // 消息时间戳 (毫秒)
}

// PublishFill 发布成交事件
func (p *FillPublisher) PublishFill(ctx context.Context, fill *model.Fill) error {
	if p.producer == nil {
		return nil // Kafka 未启用
	}

	msg := &FillMessage{
		EventID:   uuid.NewString(),
		FillID:    fill.FillID,
		OrderID:   fill.OrderID,
		Filler:    fill.Filler,
		Quantity:  fill.Quantity,
		Fee:       fill.Fee,
		Net:       fill.Net,
		Reward:    fill.Reward,
		Timestamp: time.Now().UnixMilli(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal fill message: %w", err)
	}

	// 按订单 ID 分区, 同一订单的成交保序
	if err := p.producer.SendWithContext(ctx, kafka.TopicFills, []byte(fill.OrderID), data); err != nil {
		return fmt.Errorf("send fill: %w", err)
	}

	logger.Debug("fill published",
		zap.String("fill_id", fill.FillID),
		zap.String("order_id", fill.OrderID))
	return nil
}
