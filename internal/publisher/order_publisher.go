// Package publisher 提供 Kafka 消息发布功能
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

// KafkaProducer Kafka 生产者接口
type KafkaProducer interface {
	SendWithContext(ctx context.Context, topic string, key, value []byte) error
}

// OrderPublisher 订单状态更新发布者
// 发布在事务提交之后, 尽力而为, 不参与事务
type OrderPublisher struct {
	producer KafkaProducer
}

// NewOrderPublisher 创建订单发布者
func NewOrderPublisher(producer KafkaProducer) *OrderPublisher {
	return &OrderPublisher{
		producer: producer,
	}
}

// OrderUpdateMessage 订单状态更新消息
type OrderUpdateMessage struct {
	EventID           string `json:"event_id"`
	OrderID           string `json:"order_id"`
	Trader            string `json:"trader"`
	Price             uint64 `json:"price"`
	Quantity          uint64 `json:"quantity"`
	RemainingQuantity uint64 `json:"remaining_quantity"`
	Status            string `json:"status"` // open, filled, cancelled, expired
	IsMultisig        bool   `json:"is_multisig"`
	Approvals         uint8  `json:"approvals"`
	ExpirationAt      int64  `json:"expiration_at"`
	Timestamp         int64  `json:"timestamp"` // 消息时间戳 (毫秒)
}

// PublishOrderUpdate 发布订单状态更新
func (p *OrderPublisher) PublishOrderUpdate(ctx context.Context, order *model.Order) error {
	if p.producer == nil {
		return nil // Kafka 未启用
	}

	msg := &OrderUpdateMessage{
		EventID:           uuid.NewString(),
		OrderID:           order.OrderID,
		Trader:            order.Trader,
		Price:             order.Price,
		Quantity:          order.Quantity,
		RemainingQuantity: order.RemainingQuantity,
		Status:            order.Status.String(),
		IsMultisig:        order.IsMultisig,
		Approvals:         order.Approvals,
		ExpirationAt:      order.ExpirationAt,
		Timestamp:         time.Now().UnixMilli(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal order update message: %w", err)
	}

	// 按订单 ID 分区, 同一订单的更新保序
	if err := p.producer.SendWithContext(ctx, kafka.TopicOrderUpdates, []byte(order.OrderID), data); err != nil {
		return fmt.Errorf("send order update: %w", err)
	}

	logger.Debug("order update published",
		zap.String("order_id", order.OrderID),
		zap.String("status", msg.Status))
	return nil
}
