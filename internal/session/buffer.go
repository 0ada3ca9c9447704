package session

import "sync"

// browserBufferCapacity is the FIFO-eviction cap from spec.md §3/§4.4.
const browserBufferCapacity = 500

// BrowserCommandBuffer is a per-session bounded FIFO of resolved
// browser-initiated commands, surfaced verbatim in the gating error
// payload (§4.3) and explicitly clearable via acknowledgement (§4.6.a).
type BrowserCommandBuffer struct {
	mu      sync.Mutex
	entries []BrowserCommandEntry
}

// NewBrowserCommandBuffer constructs an empty buffer.
func NewBrowserCommandBuffer() *BrowserCommandBuffer {
	return &BrowserCommandBuffer{}
}

// Append records a resolved browser command, evicting the oldest entry if
// the buffer is at capacity.
func (b *BrowserCommandBuffer) Append(entry BrowserCommandEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, entry)
	if len(b.entries) > browserBufferCapacity {
		b.entries = b.entries[len(b.entries)-browserBufferCapacity:]
	}
}

// Snapshot returns every currently-buffered entry in submission order.
func (b *BrowserCommandBuffer) Snapshot() []BrowserCommandEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]BrowserCommandEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Clear drains the buffer, returning what was drained. Used both by the
// acknowledgement tool and by session teardown.
func (b *BrowserCommandBuffer) Clear() []BrowserCommandEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.entries
	b.entries = nil
	return out
}
