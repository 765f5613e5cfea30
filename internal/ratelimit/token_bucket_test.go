package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestAllowConsumesTokens 验证令牌耗尽后拒绝请求
func TestAllowConsumesTokens(t *testing.T) {
	bucket := NewTokenBucket(60, 2)
	assert.True(t, bucket.Allow())
	assert.True(t, bucket.Allow())
	assert.False(t, bucket.Allow(), "令牌耗尽后应拒绝")
}

// TestAllowRefillsOverTime 验证随时间流逝补充令牌
func TestAllowRefillsOverTime(t *testing.T) {
	// 每秒100个令牌，等100ms足以补出下一个
	bucket := NewTokenBucket(6000, 1)
	assert.True(t, bucket.Allow())
	assert.False(t, bucket.Allow())

	time.Sleep(100 * time.Millisecond)
	assert.True(t, bucket.Allow(), "等待后应补充出新令牌")
}

// TestDefaultCapacity 验证未指定容量时取QPM的一半，最低为1
func TestDefaultCapacity(t *testing.T) {
	assert.Equal(t, 60.0, NewTokenBucket(120, 0).capacity)
	assert.Equal(t, 1.0, NewTokenBucket(1, 0).capacity)
}
