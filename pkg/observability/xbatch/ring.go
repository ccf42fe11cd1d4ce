package xbatch

import "time"

type entry[T any] struct {
	item T
	at   time.Time
}

// ring 定长环形队列，记录每个元素的入队时间。
// 非并发安全，由 Processor.mu 保护。
type ring[T any] struct {
	buf  []entry[T]
	head int
	n    int
}

func newRing[T any](size int) ring[T] {
	return ring[T]{buf: make([]entry[T], size)}
}

func (r *ring[T]) len() int { return r.n }

func (r *ring[T]) full() bool { return r.n == len(r.buf) }

// push 追加到队尾。调用方保证未满。
func (r *ring[T]) push(item T, at time.Time) {
	r.buf[(r.head+r.n)%len(r.buf)] = entry[T]{item: item, at: at}
	r.n++
}

// evict 丢弃队首元素。
func (r *ring[T]) evict() {
	if r.n == 0 {
		return
	}
	r.buf[r.head] = entry[T]{}
	r.head = (r.head + 1) % len(r.buf)
	r.n--
}

// oldest 返回队首元素的入队时间。
func (r *ring[T]) oldest() (time.Time, bool) {
	if r.n == 0 {
		return time.Time{}, false
	}
	return r.buf[r.head].at, true
}

// pop 按入队顺序取出前 k 个元素。
func (r *ring[T]) pop(k int) []T {
	k = min(k, r.n)
	items := make([]T, k)
	for i := range items {
		items[i] = r.buf[r.head].item
		r.buf[r.head] = entry[T]{}
		r.head = (r.head + 1) % len(r.buf)
	}
	r.n -= k
	return items
}

// reset 清空队列并返回原有元素数。
func (r *ring[T]) reset() int {
	n := r.n
	clear(r.buf)
	r.head, r.n = 0, 0
	return n
}
