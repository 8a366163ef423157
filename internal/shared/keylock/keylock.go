// Package keylock 提供按键加锁的互斥量
//
// 用于串行化同一讨论室 / 会话上的 “持久化 + 广播”，
// 使广播顺序与持久化顺序一致；不同键之间互不阻塞。
package keylock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Locker 按键互斥量，空闲的键会被回收
type Locker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// New 创建 Locker
func New() *Locker {
	return &Locker{locks: make(map[string]*entry)}
}

// Lock 获取 key 对应的锁，返回解锁函数
func (l *Locker) Lock(key string) (unlock func()) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// Len 当前持有或等待中的键数量
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
