package refresher

import (
	"context"
	"fmt"
	"time"

	"github.com/amyangfei/redlock-go/v3/redlock"
	"go.uber.org/zap"
)

// Locker guards a refresh cycle so that only one replica runs it.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, name string) error
}

// RedLocker is a Locker backed by the Redlock algorithm.
type RedLocker struct {
	manager *redlock.RedLock
	logger  *zap.Logger
}

// NewRedLocker connects to addrs, given as tcp://host:port.
func NewRedLocker(ctx context.Context, addrs []string, logger *zap.Logger) (*RedLocker, error) {
	manager, err := redlock.NewRedLock(ctx, addrs)
	if err != nil {
		return nil, fmt.Errorf("failed to create redlock manager: %w", err)
	}
	logger.Info("Redlock manager initialized", zap.Strings("addresses", addrs))
	return &RedLocker{manager: manager, logger: logger}, nil
}

// TryLock reports false without error when another holder has the lock.
func (l *RedLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	expiry, err := l.manager.Lock(ctx, name, ttl)
	if err != nil {
		l.logger.Debug("Lock held elsewhere", zap.String("lock", name), zap.Error(err))
		return false, nil
	}
	if expiry <= 0 {
		return false, fmt.Errorf("failed to acquire lock %s: invalid expiry %v", name, expiry)
	}
	return true, nil
}

func (l *RedLocker) Unlock(ctx context.Context, name string) error {
	if err := l.manager.UnLock(ctx, name); err != nil {
		// The lock may already have expired.
		l.logger.Warn("Failed to release lock", zap.String("lock", name), zap.Error(err))
	}
	return nil
}

// LocalLocker always grants the lock. It is used with a single replica.
type LocalLocker struct{}

func (LocalLocker) TryLock(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}

func (LocalLocker) Unlock(context.Context, string) error {
	return nil
}
