package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotAcquired 锁已被其他持有者占用
	ErrNotAcquired = errors.New("lock: 锁已被占用")
	// ErrLeaseLost 锁已过期或被他人持有，无法续期
	ErrLeaseLost = errors.New("lock: 锁已丢失")
)

// Locker 同步互斥锁
// Redis 可用时跨进程生效，否则退化为进程内互斥
type Locker interface {
	// TryLock 非阻塞获取，已被占用返回 ErrNotAcquired
	TryLock(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// Lease 已获取的锁
type Lease interface {
	// Extend 将剩余有效期重置为 ttl，锁已不属于自己时返回 ErrLeaseLost
	Extend(ctx context.Context, ttl time.Duration) error
	Release(ctx context.Context) error
}

// ==================== 进程内实现 ====================

// MemoryLocker 进程内锁，带过期时间
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]memoryEntry
	now  func() time.Time
	seq  uint64
}

type memoryEntry struct {
	owner     uint64
	expiresAt time.Time
}

// NewMemoryLocker 创建进程内锁
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		held: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

func (m *MemoryLocker) TryLock(_ context.Context, key string, ttl time.Duration) (Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.held[key]; ok && now.Before(e.expiresAt) {
		return nil, ErrNotAcquired
	}
	m.seq++
	m.held[key] = memoryEntry{owner: m.seq, expiresAt: now.Add(ttl)}
	return &memoryLease{locker: m, key: key, owner: m.seq}, nil
}

type memoryLease struct {
	locker *MemoryLocker
	key    string
	owner  uint64
}

func (l *memoryLease) Extend(_ context.Context, ttl time.Duration) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()

	now := l.locker.now()
	e, ok := l.locker.held[l.key]
	if !ok || e.owner != l.owner || !now.Before(e.expiresAt) {
		return ErrLeaseLost
	}
	e.expiresAt = now.Add(ttl)
	l.locker.held[l.key] = e
	return nil
}

func (l *memoryLease) Release(context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	// 过期后被他人重新获取时不能误删
	if e, ok := l.locker.held[l.key]; ok && e.owner == l.owner {
		delete(l.locker.held, l.key)
	}
	return nil
}
