package kafka

// Kafka topic 名称
const (
	// TopicOrderUpdates 订单状态更新 (settlement → 下游)
	TopicOrderUpdates = "otcl-order-updates"

	// TopicFills 成交事件 (settlement → 下游)
	TopicFills = "otcl-fills"
)
