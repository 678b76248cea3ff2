// Package service 实现结算引擎的业务逻辑
package service

import "errors"

// 业务错误
// 所有校验先于状态变更, 任一错误都会使所在事务整体回滚
var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrOrderNotOpen         = errors.New("order is not open")
	ErrInvalidQuantity      = errors.New("invalid order quantity")
	ErrInvalidTTL           = errors.New("invalid ttl")
	ErrInvalidFillQuantity  = errors.New("invalid fill quantity")
	ErrInsufficientStake    = errors.New("insufficient staked amount")
	ErrOrderNotExpired      = errors.New("order has not expired yet")
	ErrOrderExpired         = errors.New("order is expired")
	ErrNotMultisigOrder     = errors.New("not a multisig order")
	ErrInvalidThreshold     = errors.New("invalid multisig threshold")
	ErrTooManyOwners        = errors.New("too many multisig owners")
	ErrInvalidReveal        = errors.New("invalid reveal data")
	ErrAlreadyCommitted     = errors.New("order already committed")
	ErrOrderConcealed       = errors.New("order is concealed by an active commitment")
	ErrApprovalRequired     = errors.New("multisig approval threshold not met")
	ErrInsufficientTreasury = errors.New("insufficient treasury funds")
	ErrArithmeticOverflow   = errors.New("arithmetic overflow")
)
