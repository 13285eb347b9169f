package feed

import "sync"

// Votable 可以被投票的条目 (ThreadView / ReplyView)
type Votable[T any] interface {
	VoteTarget() Target
	VoteState() (cast bool, score int)
	WithVoteState(cast bool, score int) T
}

// List 是分页控制器和投票协调器共享的同一份列表。
// 每次写入都会递增 version，回滚时据此判断列表是否已被别人改过。
type List[T Votable[T]] struct {
	mu       sync.Mutex
	items    []T
	version  uint64
	owners   map[string]uint64 // target id -> 最近一次写它的投票命令
	onChange func()
}

func NewList[T Votable[T]]() *List[T] {
	return &List[T]{owners: make(map[string]uint64)}
}

// Items 返回当前列表的拷贝
func (l *List[T]) Items() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneItems(l.items)
}

func (l *List[T]) Version() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.version
}

// Replace 整体替换 (第 0 页)。翻页写入由控制器自己广播，不触发 onChange。
func (l *List[T]) Replace(items []T) {
	l.mu.Lock()
	l.items = cloneItems(items)
	l.version++
	l.owners = make(map[string]uint64)
	l.mu.Unlock()
}

// Append 追加一页，按 id 去重
func (l *List[T]) Append(items []T) int {
	l.mu.Lock()
	seen := make(map[string]struct{}, len(l.items))
	for _, it := range l.items {
		seen[it.VoteTarget().ID] = struct{}{}
	}
	added := 0
	for _, it := range items {
		id := it.VoteTarget().ID
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		l.items = append(l.items, it)
		added++
	}
	l.version++
	l.mu.Unlock()
	return added
}

func (l *List[T]) setOnChange(fn func()) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

func (l *List[T]) changed() {
	l.mu.Lock()
	fn := l.onChange
	l.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func cloneItems[T any](items []T) []T {
	if items == nil {
		return nil
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}
