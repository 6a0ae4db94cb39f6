package util

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// lruEntry 结构体用于存储链表节点中的实际数据。
type lruEntry[K comparable, V any] struct {
	key        K
	value      V
	expiration time.Time // 元素的过期时间，零值表示永不过期。
}

// LRUCache 是一个支持泛型、线程安全的 LRU 缓存。
// 嵌入向量对相同文本是确定性的，因此用它缓存 文本 -> 向量 的映射是安全的。
type LRUCache[K comparable, V any] struct {
	capacity int
	ttl      time.Duration
	ll       *list.List
	items    map[K]*list.Element
	lock     sync.Mutex
}

// NewLRUCache 创建一个指定容量的 LRU 缓存实例。
// ttl 为 0 时元素永不过期。
func NewLRUCache[K comparable, V any](capacity int, ttl time.Duration) (*LRUCache[K, V], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("LRU 缓存容量必须大于 0，当前为 %d", capacity)
	}
	return &LRUCache[K, V]{
		capacity: capacity,
		ttl:      ttl,
		ll:       list.New(),
		items:    make(map[K]*list.Element),
	}, nil
}

// Get 方法根据键获取一个值。
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	element, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}

	// 检查 TTL 是否过期（被动淘汰）。
	ent := element.Value.(*lruEntry[K, V])
	if c.ttl > 0 && time.Now().After(ent.expiration) {
		c.removeElement(element)
		var zero V
		return zero, false
	}

	// 标记为最近使用。
	c.ll.MoveToFront(element)
	return ent.value, true
}

// Put 方法向缓存中添加或更新一个键值对。
func (c *LRUCache[K, V]) Put(key K, value V) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if element, ok := c.items[key]; ok {
		ent := element.Value.(*lruEntry[K, V])
		ent.value = value
		if c.ttl > 0 {
			ent.expiration = time.Now().Add(c.ttl)
		}
		c.ll.MoveToFront(element)
		return
	}

	ent := &lruEntry[K, V]{key: key, value: value}
	if c.ttl > 0 {
		ent.expiration = time.Now().Add(c.ttl)
	}
	c.items[key] = c.ll.PushFront(ent)

	// 超出容量时淘汰最久未使用的元素。
	if c.ll.Len() > c.capacity {
		if back := c.ll.Back(); back != nil {
			c.removeElement(back)
		}
	}
}

// removeElement 是一个内部辅助函数，用于从链表和 map 中移除元素。
// 此方法假设已持有锁。
func (c *LRUCache[K, V]) removeElement(e *list.Element) {
	c.ll.Remove(e)
	delete(c.items, e.Value.(*lruEntry[K, V]).key)
}

// Len 返回当前缓存中的条目数量。
func (c *LRUCache[K, V]) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.ll.Len()
}
