package container

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// builders remembers which frame each goroutine is building. Providers run on
// the goroutine that resolved them, so a nested resolution whose context lost
// the frame is still placed on the right path.
type builders struct {
	active atomic.Int64
	mu     sync.Mutex
	frames map[uint64]*frame
}

// enter marks f as built by the calling goroutine until the returned func
// runs.
func (b *builders) enter(f *frame) func() {
	id := goroutineID()
	if id == 0 {
		return func() {}
	}

	b.mu.Lock()
	if b.frames == nil {
		b.frames = make(map[uint64]*frame)
	}
	prev, nested := b.frames[id]
	b.frames[id] = f
	b.mu.Unlock()
	b.active.Add(1)

	return func() {
		b.active.Add(-1)
		b.mu.Lock()
		if nested {
			b.frames[id] = prev
		} else {
			delete(b.frames, id)
		}
		b.mu.Unlock()
	}
}

func (b *builders) current() *frame {
	if b.active.Load() == 0 {
		return nil
	}

	id := goroutineID()
	if id == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames[id]
}

// goroutineID reads the id from the "goroutine N [status]:" stack header.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	header := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	end := bytes.IndexByte(header, ' ')
	if end <= 0 {
		return 0
	}

	id, err := strconv.ParseUint(string(header[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
