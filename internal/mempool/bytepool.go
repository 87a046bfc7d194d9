// Package mempool pools the pixel buffers of dense masks. Rendering a page
// decodes one temporary mask per annotation, so reusing buffers keeps
// allocation flat on pages with many annotations.
package mempool

import (
	"sync"
)

var bytePools sync.Map // key: size class (int), value: *sync.Pool

// sizeClass rounds n up to the next multiple of 1024.
func sizeClass(n int) int {
	if n <= 1024 {
		return 1024
	}
	const step = 1024
	r := (n + step - 1) / step
	return r * step
}

func poolFor(cls int) *sync.Pool {
	pAny, _ := bytePools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]uint8, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		return nil
	}
	return p
}

// GetBytes retrieves a zeroed []uint8 buffer of length n from the pool.
// The caller should return it via PutBytes when done.
func GetBytes(n int) []uint8 {
	if n < 0 {
		n = 0
	}
	cls := sizeClass(n)
	p := poolFor(cls)
	if p == nil {
		return make([]uint8, n)
	}
	buf, ok := p.Get().([]uint8)
	if !ok || cap(buf) < cls {
		buf = make([]uint8, cls)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}

// PutBytes returns a buffer to the pool. It is safe to pass a nil slice.
func PutBytes(buf []uint8) {
	if cap(buf) < 1024 {
		return
	}
	// Only whole size classes go back, so a Get never sees a short buffer.
	cls := cap(buf) / 1024 * 1024
	p := poolFor(cls)
	if p == nil {
		return
	}
	p.Put(buf[:cap(buf)]) //nolint:staticcheck
}
