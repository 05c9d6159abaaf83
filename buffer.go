package tracefmt

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// bufferPool hands out render buffers for the event path. Buffers are
// recycled through a sync.Pool, so idle ones are reclaimed by the GC
// instead of accumulating for every goroutine that ever emitted an
// event. A re-entrant acquire (a field renderer emitting its own event
// mid-render) gets a different buffer, since the outer one has not been
// returned yet; the outer render is never clobbered.
type bufferPool struct {
	pool sync.Pool
}

// acquire returns a clean buffer and the release function that must be
// called when rendering is done. Release clears the buffer and returns
// it to the pool.
func (p *bufferPool) acquire() (*bytes.Buffer, func()) {
	buf, _ := p.pool.Get().(*bytes.Buffer)
	if buf == nil {
		buf = new(bytes.Buffer)
	}
	return buf, func() {
		buf.Reset()
		p.pool.Put(buf)
	}
}

// goroutineID extracts the current goroutine's id from runtime.Stack,
// for the goroutine-id display flag. Costs one small allocation per
// call and avoids linkname tricks.
func goroutineID() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]

	// Stack format: "goroutine 123 [running]:\n..."
	const prefix = "goroutine "
	if !bytes.HasPrefix(buf, []byte(prefix)) {
		return 0
	}
	buf = buf[len(prefix):]
	end := bytes.IndexByte(buf, ' ')
	if end < 0 {
		return 0
	}
	gid, err := strconv.ParseUint(string(buf[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return gid
}
