package util

import (
	"hash/fnv"
	"math"
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// BloomFilter 定义了一个基础的布隆过滤器结构。
// 用于在事实提取阶段廉价地过滤掉已经见过的候选文本，避免对它们重复计算嵌入向量。
// 误报只会导致少量候选被多算一次相似度，不影响正确性。
type BloomFilter struct {
	m    uint           // 位数组大小
	k    uint           // 哈希函数数量
	bits *bitset.BitSet // 位数组
	lock sync.Mutex
}

// NewBloomFilter 创建一个布隆过滤器。
// capacity: 预估要存储的元素数量。
// errorRate: 期望的误报率 (例如 0.01 表示 1%)。
func NewBloomFilter(capacity uint, errorRate float64) *BloomFilter {
	m := uint(math.Ceil(-1 * float64(capacity) * math.Log(errorRate) / math.Pow(math.Ln2, 2)))
	k := uint(math.Round(float64(m) / float64(capacity) * math.Ln2))
	if k < 1 {
		k = 1
	}
	return &BloomFilter{
		m:    m,
		k:    k,
		bits: bitset.New(m),
	}
}

// Add 向布隆过滤器中添加一个元素。
func (bf *BloomFilter) Add(item string) {
	bf.lock.Lock()
	defer bf.lock.Unlock()
	h1, h2 := bf.hashPair(item)
	for i := uint(0); i < bf.k; i++ {
		bf.bits.Set((h1 + i*h2) % bf.m)
	}
}

// Contains 检查一个元素是否可能存在于布隆过滤器中。
// 返回 false 表示元素一定不存在；返回 true 表示元素可能存在。
func (bf *BloomFilter) Contains(item string) bool {
	bf.lock.Lock()
	defer bf.lock.Unlock()
	h1, h2 := bf.hashPair(item)
	for i := uint(0); i < bf.k; i++ {
		if !bf.bits.Test((h1 + i*h2) % bf.m) {
			return false
		}
	}
	return true
}

// hashPair 使用双重哈希技术从一次 FNV 计算派生出 k 个哈希值。
func (bf *BloomFilter) hashPair(item string) (uint, uint) {
	h := fnv.New64a()
	h.Write([]byte(item))
	sum := h.Sum64()
	return uint(sum & 0xffffffff), uint(sum>>32 | 1)
}
