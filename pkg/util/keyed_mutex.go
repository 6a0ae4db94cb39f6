package util

import "sync"

// KeyedMutex 提供按字符串键划分的互斥锁。
// 用于实现"每个会话单写者"和"每个用户原子去重"的串行化约束，
// 不同键之间的操作互不阻塞。
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex 创建一个 KeyedMutex 实例。
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock 获取指定键的互斥锁。
func (km *KeyedMutex) Lock(key string) {
	km.mu.Lock()
	l, ok := km.locks[key]
	if !ok {
		l = &keyedLock{}
		km.locks[key] = l
	}
	l.refs++
	km.mu.Unlock()

	l.mu.Lock()
}

// Unlock 释放指定键的互斥锁。引用计数归零时回收条目，避免 map 无限增长。
func (km *KeyedMutex) Unlock(key string) {
	km.mu.Lock()
	l, ok := km.locks[key]
	if ok {
		l.refs--
		if l.refs == 0 {
			delete(km.locks, key)
		}
	}
	km.mu.Unlock()

	if ok {
		l.mu.Unlock()
	}
}
