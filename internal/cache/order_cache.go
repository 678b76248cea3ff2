// Package cache 提供基于 Redis 的订单读缓存
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/otcl-exchange/otcl-settlement/internal/model"
)

// orderKeyPrefix 订单缓存键前缀
const orderKeyPrefix = "otcl:order:"

// OrderCache 订单缓存接口
// 缓存仅加速读取, 未命中或出错一律回源数据库
type OrderCache interface {
	// GetOrder 查询缓存, 未命中返回 (nil, nil)
	GetOrder(ctx context.Context, orderID string) (*model.Order, error)

	// SetOrder 写入缓存
	SetOrder(ctx context.Context, order *model.Order) error

	// DeleteOrder 删除缓存, 订单变更后调用
	DeleteOrder(ctx context.Context, orderID string) error
}

// redisOrderCache Redis 订单缓存实现
type redisOrderCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisOrderCache 创建 Redis 订单缓存
func NewRedisOrderCache(client *redis.Client, ttl time.Duration) OrderCache {
	return &redisOrderCache{
		client: client,
		ttl:    ttl,
	}
}

// GetOrder 查询缓存
func (c *redisOrderCache) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	data, err := c.client.Get(ctx, orderKeyPrefix+orderID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order cache failed: %w", err)
	}

	var order model.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("decode cached order failed: %w", err)
	}
	return &order, nil
}

// SetOrder 写入缓存
func (c *redisOrderCache) SetOrder(ctx context.Context, order *model.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("encode order failed: %w", err)
	}

	if err := c.client.Set(ctx, orderKeyPrefix+order.OrderID, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set order cache failed: %w", err)
	}
	return nil
}

// DeleteOrder 删除缓存
func (c *redisOrderCache) DeleteOrder(ctx context.Context, orderID string) error {
	if err := c.client.Del(ctx, orderKeyPrefix+orderID).Err(); err != nil {
		return fmt.Errorf("delete order cache failed: %w", err)
	}
	return nil
}
