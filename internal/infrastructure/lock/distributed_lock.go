package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 分布式锁实现
// ============================================================================
//
// 场景：同一个会话的计费信号会从三个入口并发到达
// （客户端轮询、模拟完成接口、广告商回调），
// 数据库的条件更新已保证只计费一次，这把锁用来收敛无谓的事务冲突。
//
// 加锁：SET key value NX EX timeout
//   - NX: key 不存在才能设置（互斥）
//   - EX: 过期时间（防死锁）
//   - value: 持有者标识（释放时验证，防止误删别人的锁）
//
// 释放：Lua 脚本保证"检查+删除"原子执行
// ============================================================================

var (
	ErrLockFailed = errors.New("获取分布式锁失败")
)

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string
	expiration time.Duration
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
			// 继续重试
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
//
// 【关键点】必须验证 value 再删除：
// A 持锁超时自动过期后 B 拿到锁，A 事后调用 Unlock 不能删掉 B 的锁
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// NewCreditLock 计费锁（按会话维度）
// 不同会话可以并发计费，同一会话的多路信号串行通过
func NewCreditLock(client *redis.Client, sessionID string) *DistributedLock {
	key := fmt.Sprintf("ad:credit:lock:session:%s", sessionID)
	return NewDistributedLock(client, key, sessionID, 30*time.Second)
}

// NewWithdrawLock 提现锁（按用户维度）
// 同一用户的提现请求串行，防止余额查验与扣减之间穿插
func NewWithdrawLock(client *redis.Client, userID int64, withdrawNo string) *DistributedLock {
	key := fmt.Sprintf("withdraw:lock:user:%d", userID)
	return NewDistributedLock(client, key, withdrawNo, 30*time.Second)
}
