package feed

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy 对单次 I/O 的有界重试：最多 MaxRetries 次额外尝试，线性退避 (Base, 2*Base, ...)，
// 每次尝试都有独立的超时
type RetryPolicy struct {
	MaxRetries int
	Base       time.Duration
	Timeout    time.Duration
	// OnRetry 每次重试前调用，可为 nil
	OnRetry func(err error, wait time.Duration)
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		Base:       time.Second,
		Timeout:    30 * time.Second,
	}
}

// linearBackOff 实现 backoff.BackOff：第 n 次重试等待 n*base
type linearBackOff struct {
	base    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.base
}

func (b *linearBackOff) Reset() { b.attempt = 0 }

// Do 执行 op 直到成功或重试耗尽；父 ctx 取消时立即停止
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempt := func() error {
		callCtx := ctx
		if p.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, p.Timeout)
			defer cancel()
		}
		err := op(callCtx)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}

	// WithMaxRetries(b, 0) 表示不限次数，这里 0 要理解为“只试一次”
	if p.MaxRetries <= 0 {
		err := attempt()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		return err
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{base: p.Base}, uint64(p.MaxRetries)),
		ctx,
	)
	err := backoff.RetryNotify(attempt, b, func(err error, wait time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(err, wait)
		}
	})
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}
