// Package metrics 定义结算服务的 Prometheus 监控指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/otcl-exchange/otcl-settlement/internal/model"
)

var (
	// OrdersTotal 订单总数 (按状态分组)
	OrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "otcl",
			Subsystem: "settlement",
			Name:      "orders_total",
			Help:      "订单总数，按状态(created/filled/cancelled/expired)分组",
		},
		[]string{"status"},
	)

	// FillsTotal 成交总笔数
	FillsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "otcl",
			Subsystem: "settlement",
			Name:      "fills_total",
			Help:      "成交总笔数",
		},
	)

	// FillVolume 成交总量
	FillVolume = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "otcl",
			Subsystem: "settlement",
			Name:      "fill_volume_total",
			Help:      "成交总量(抵押品代币)",
		},
	)

	// FeesCollected 累计收取手续费
	FeesCollected = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "otcl",
			Subsystem: "settlement",
			Name:      "fees_collected_total",
			Help:      "累计收取的手续费",
		},
	)

	// RewardsMinted 累计铸造奖励
	RewardsMinted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "otcl",
			Subsystem: "settlement",
			Name:      "rewards_minted_total",
			Help:      "累计铸造的奖励代币",
		},
	)

	// TreasuryBalance 国库当前余额
	TreasuryBalance = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "otcl",
			Subsystem: "settlement",
			Name:      "treasury_balance",
			Help:      "国库当前未提取手续费余额",
		},
	)

	// StakeOperations 质押操作计数
	StakeOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "otcl",
			Subsystem: "settlement",
			Name:      "stake_operations_total",
			Help:      "质押操作计数，按操作类型(stake/withdraw)分组",
		},
		[]string{"operation"},
	)

	// ApprovalsTotal 多签批准计数
	ApprovalsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "otcl",
			Subsystem: "settlement",
			Name:      "approvals_total",
			Help:      "多签批准总数",
		},
	)

	// ExpiryWorkerRuns 过期 Worker 执行计数
	ExpiryWorkerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "otcl",
			Subsystem: "settlement",
			Name:      "expiry_worker_runs_total",
			Help:      "过期 Worker 执行次数，按结果(success/error)分组",
		},
		[]string{"result"},
	)
)

// RecordOrderCreated 记录订单创建
func RecordOrderCreated() {
	OrdersTotal.WithLabelValues("created").Inc()
}

// RecordOrderStatus 记录订单状态变更
func RecordOrderStatus(status model.OrderStatus) {
	switch status {
	case model.OrderStatusFilled:
		OrdersTotal.WithLabelValues("filled").Inc()
	case model.OrderStatusCancelled:
		OrdersTotal.WithLabelValues("cancelled").Inc()
	case model.OrderStatusExpired:
		OrdersTotal.WithLabelValues("expired").Inc()
	}
}

// RecordFill 记录成交
func RecordFill(quantity, fee, reward uint64) {
	FillsTotal.Inc()
	FillVolume.Add(float64(quantity))
	FeesCollected.Add(float64(fee))
	RewardsMinted.Add(float64(reward))
}

// SetTreasuryBalance 更新国库余额
func SetTreasuryBalance(totalFees uint64) {
	TreasuryBalance.Set(float64(totalFees))
}

// RecordStakeOperation 记录质押操作
func RecordStakeOperation(operation string) {
	StakeOperations.WithLabelValues(operation).Inc()
}

// RecordApproval 记录多签批准
func RecordApproval() {
	ApprovalsTotal.Inc()
}

// RecordExpiryWorkerRun 记录过期 Worker 执行
func RecordExpiryWorkerRun(success bool) {
	if success {
		ExpiryWorkerRuns.WithLabelValues("success").Inc()
	} else {
		ExpiryWorkerRuns.WithLabelValues("error").Inc()
	}
}
