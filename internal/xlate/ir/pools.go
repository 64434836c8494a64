package ir

import (
	"bytes"
	"strings"
	"sync"
)

const (
	defaultBufCap   = 4 * 1024
	maxPooledBufCap = 64 * 1024

	defaultBuilderCap   = 2 * 1024
	maxPooledBuilderCap = 32 * 1024

	defaultSSEChunkCap = 2 * 1024
	maxPooledSSEChunk  = 16 * 1024
)

var bufferPool = sync.Pool{
	New: func() any {
		buf := new(bytes.Buffer)
		buf.Grow(defaultBufCap)
		return buf
	},
}

// GetBuffer returns a pooled bytes.Buffer with at least a 4KB capacity.
func GetBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

// PutBuffer resets and returns buf to the pool, unless it has grown past
// the 64KB threshold -- oversized buffers are dropped so the pool doesn't
// retain memory from one outsized streaming response forever.
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBufCap {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}

var builderPool = sync.Pool{
	New: func() any {
		sb := new(strings.Builder)
		sb.Grow(defaultBuilderCap)
		return sb
	},
}

// GetStringBuilder returns a pooled strings.Builder with at least a 2KB
// capacity.
func GetStringBuilder() *strings.Builder {
	return builderPool.Get().(*strings.Builder)
}

// PutStringBuilder resets and returns sb to the pool, unless it has grown
// past the 32KB threshold.
func PutStringBuilder(sb *strings.Builder) {
	if sb.Cap() > maxPooledBuilderCap {
		return
	}
	sb.Reset()
	builderPool.Put(sb)
}

var ssePool = sync.Pool{
	New: func() any {
		return make([]byte, 0, defaultSSEChunkCap)
	},
}

// GetSSEChunkBuf returns a pooled byte slice with at least a 2KB capacity.
func GetSSEChunkBuf() []byte {
	return ssePool.Get().([]byte)[:0]
}

// PutSSEChunkBuf returns buf to the pool, unless its capacity falls outside
// [2KB, 16KB] -- undersized buffers waste the point of pooling and
// oversized ones would let one large chunk bloat the pool forever.
func PutSSEChunkBuf(buf []byte) {
	c := cap(buf)
	if c < defaultSSEChunkCap || c > maxPooledSSEChunk {
		return
	}
	ssePool.Put(buf[:0]) //nolint:staticcheck // intentional len-0 reuse
}

// BuildSSEChunk frames a JSON payload as a bare "data: ...\n\n" SSE chunk
// using a pooled buffer. Callers must PutSSEChunkBuf the result.
func BuildSSEChunk(payload []byte) []byte {
	buf := GetSSEChunkBuf()
	buf = append(buf, "data: "...)
	buf = append(buf, payload...)
	buf = append(buf, '\n', '\n')
	return buf
}

// BuildSSEEvent frames a JSON payload as a named SSE event
// ("event: ...\ndata: ...\n\n") using a pooled buffer.
func BuildSSEEvent(eventType string, payload []byte) []byte {
	buf := GetSSEChunkBuf()
	buf = append(buf, "event: "...)
	buf = append(buf, eventType...)
	buf = append(buf, '\n')
	buf = append(buf, "data: "...)
	buf = append(buf, payload...)
	buf = append(buf, '\n', '\n')
	return buf
}
