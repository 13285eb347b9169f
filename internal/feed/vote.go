package feed

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"solafeed/internal/metrics"
)

// ToggleVote 纯函数：已投 -> 取消 (-1)，未投 -> 投票 (+1)。返回新列表，不修改入参。
func ToggleVote[T Votable[T]](items []T, targetID string) ([]T, error) {
	idx := indexOf(items, targetID)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, targetID)
	}
	out := cloneItems(items)
	out[idx] = toggled(out[idx])
	return out, nil
}

func toggled[T Votable[T]](item T) T {
	cast, score := item.VoteState()
	if cast {
		return item.WithVoteState(false, score-1)
	}
	return item.WithVoteState(true, score+1)
}

func indexOf[T Votable[T]](items []T, id string) int {
	for i, it := range items {
		if it.VoteTarget().ID == id {
			return i
		}
	}
	return -1
}

// VoteCommand 一次乐观投票：快照 -> 应用 -> 提交或回滚
type VoteCommand[T Votable[T]] struct {
	list     *List[T]
	seq      uint64
	targetID string

	Target Target
	Cast   bool // 应用后的状态，也是要写到服务端的状态

	before  []T // 应用前的完整列表
	prior   T   // 应用前的条目
	version uint64
}

// Apply 基于列表的最新状态计算并写入，连续两次点击时第二次看到的是第一次的乐观结果
func (c *VoteCommand[T]) Apply() ([]T, error) {
	l := c.list
	l.mu.Lock()
	idx := indexOf(l.items, c.targetID)
	if idx < 0 {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, c.targetID)
	}
	c.before = cloneItems(l.items)
	c.prior = l.items[idx]
	c.Target = c.prior.VoteTarget()

	next := toggled(c.prior)
	c.Cast, _ = next.VoteState()

	items := cloneItems(l.items)
	items[idx] = next
	l.items = items
	l.version++
	c.version = l.version
	l.owners[c.targetID] = c.seq
	out := cloneItems(items)
	l.mu.Unlock()

	l.changed()
	return out, nil
}

// Commit 服务端确认
func (c *VoteCommand[T]) Commit() {
	l := c.list
	l.mu.Lock()
	if l.owners[c.targetID] == c.seq {
		delete(l.owners, c.targetID)
	}
	l.mu.Unlock()
}

// Rollback 服务端失败。列表自 Apply 后未变时整体恢复为 Apply 前的列表；
// 列表已被翻页等操作改写时只把目标条目恢复原状；
// 目标已被更新的投票命令接管时不做任何事 (以最后一次写为准)。
func (c *VoteCommand[T]) Rollback() []T {
	l := c.list
	l.mu.Lock()
	switch {
	case l.version == c.version:
		l.items = cloneItems(c.before)
		l.version++
		delete(l.owners, c.targetID)
	case l.owners[c.targetID] == c.seq:
		if idx := indexOf(l.items, c.targetID); idx >= 0 {
			items := cloneItems(l.items)
			items[idx] = c.prior
			l.items = items
			l.version++
		}
		delete(l.owners, c.targetID)
	}
	out := cloneItems(l.items)
	l.mu.Unlock()

	l.changed()
	return out
}

// VoteResult 服务端往返结束后的结果。Err 非空时 Items 是回滚后的列表。
type VoteResult[T any] struct {
	Items []T
	Err   error
}

// VoteCoordinator 乐观投票：本地立即生效，异步写服务端，失败整体回滚并上报错误 (不自动重试)
type VoteCoordinator[T Votable[T]] struct {
	list    *List[T]
	mutator VoteMutator
	timeout time.Duration
	logger  zerolog.Logger
	seq     atomic.Uint64
}

func NewVoteCoordinator[T Votable[T]](list *List[T], mutator VoteMutator, timeout time.Duration, logger zerolog.Logger) *VoteCoordinator[T] {
	return &VoteCoordinator[T]{
		list:    list,
		mutator: mutator,
		timeout: timeout,
		logger:  logger.With().Str("component", "feed.vote").Logger(),
	}
}

func (v *VoteCoordinator[T]) NewCommand(targetID string) *VoteCommand[T] {
	return &VoteCommand[T]{
		list:     v.list,
		seq:      v.seq.Add(1),
		targetID: targetID,
	}
}

// Toggle 同步返回乐观列表，远程结果通过 channel 送达 (只发送一次后关闭)
func (v *VoteCoordinator[T]) Toggle(ctx context.Context, viewerID, targetID string) ([]T, <-chan VoteResult[T], error) {
	cmd := v.NewCommand(targetID)
	optimistic, err := cmd.Apply()
	if err != nil {
		return nil, nil, err
	}

	done := make(chan VoteResult[T], 1)
	// 页面卸载不取消已发出的写请求
	callCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(done)
		done <- v.commit(callCtx, viewerID, cmd)
	}()
	return optimistic, done, nil
}

// ToggleSync 等待远程结果，HTTP 处理器使用
func (v *VoteCoordinator[T]) ToggleSync(ctx context.Context, viewerID, targetID string) ([]T, error) {
	_, done, err := v.Toggle(ctx, viewerID, targetID)
	if err != nil {
		return nil, err
	}
	res := <-done
	return res.Items, res.Err
}

func (v *VoteCoordinator[T]) commit(ctx context.Context, viewerID string, cmd *VoteCommand[T]) VoteResult[T] {
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	if err := v.mutator.MutateVote(ctx, viewerID, cmd.Target, cmd.Cast); err != nil {
		items := cmd.Rollback()
		metrics.VoteToggles.WithLabelValues("rolled_back").Inc()
		v.logger.Warn().Err(err).
			Str("viewer", viewerID).
			Str("target_type", string(cmd.Target.Type)).
			Str("target", cmd.Target.ID).
			Msg("vote mutation failed, rolled back")
		return VoteResult[T]{Items: items, Err: fmt.Errorf("%w: %w", ErrVoteFailed, err)}
	}

	cmd.Commit()
	metrics.VoteToggles.WithLabelValues("committed").Inc()
	return VoteResult[T]{Items: v.list.Items()}
}
