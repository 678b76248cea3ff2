// Package crypto 提供订单 commit-reveal 承诺哈希
package crypto

import (
	"crypto/sha256"
	"encoding/binary"
)

// CommitmentSize 承诺哈希长度
const CommitmentSize = 32

// revealDataSize 承诺原文编码长度: price(8) + quantity(8) + ttl(8) + isMultisig(1) + threshold(1)
const revealDataSize = 26

// ZeroCommitment 空承诺, 表示订单未处于隐匿状态
var ZeroCommitment = [CommitmentSize]byte{}

// HashOrderTerms 计算订单条款的承诺哈希
// 编码为小端定宽字节序列后取 SHA-256
func HashOrderTerms(price, quantity uint64, ttl int64, isMultisig bool, threshold uint8) [CommitmentSize]byte {
	buf := make([]byte, 0, revealDataSize)
	buf = binary.LittleEndian.AppendUint64(buf, price)
	buf = binary.LittleEndian.AppendUint64(buf, quantity)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(ttl))
	if isMultisig {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, threshold)
	return sha256.Sum256(buf)
}

// VerifyCommitment 校验订单条款是否与承诺哈希一致
func VerifyCommitment(commitment [CommitmentSize]byte, price, quantity uint64, ttl int64, isMultisig bool, threshold uint8) bool {
	return HashOrderTerms(price, quantity, ttl, isMultisig, threshold) == commitment
}

// IsZeroCommitment 判断承诺是否为空
func IsZeroCommitment(commitment [CommitmentSize]byte) bool {
	return commitment == ZeroCommitment
}
