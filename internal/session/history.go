package session

import "sync"

// historyCapacityBytes is the working-set cap for a session's History
// Store, per the "e.g., 256 KiB" guidance; entries are evicted oldest-first
// once the running total exceeds it, but sequence numbers are never
// reassigned (spec.md §3 invariant I2/I5 depend on monotonic sequencing
// surviving eviction).
const historyCapacityBytes = 256 * 1024

// History is a per-session bounded, sequence-numbered ring of output
// entries with an ordered replay iterator. Adapted from the teacher's raw
// byte ring (session_manager.go appendBuffer/GetBuffer) into an entry-level
// ring: the teacher's ring has no use for source tags or entry boundaries,
// but the History entry data model and the WebSocket replay frame schema
// (§4.5) both need per-entry source tags, so bytes are kept in
// source-tagged spans rather than one flat buffer.
type History struct {
	mu       sync.Mutex
	entries  []HistoryEntry
	nextSeq  uint64
	curBytes int
}

// NewHistory constructs an empty History Store.
func NewHistory() *History {
	return &History{}
}

// Append stamps data with the next sequence number, tags it, stores it, and
// evicts the oldest entries until the store is back under capacity.
func (h *History) Append(data []byte, source SourceTag) HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry := HistoryEntry{
		Sequence: h.nextSeq,
		Data:     append([]byte(nil), data...),
		Source:   source,
	}
	h.nextSeq++
	h.entries = append(h.entries, entry)
	h.curBytes += len(entry.Data)

	for h.curBytes > historyCapacityBytes && len(h.entries) > 1 {
		oldest := h.entries[0]
		h.entries = h.entries[1:]
		h.curBytes -= len(oldest.Data)
	}

	return entry
}

// Replay returns a snapshot of every currently-retained entry in sequence
// order. Because it is a snapshot (not a live iterator), a concurrent Append
// waits only for the copy, not for the caller's iteration over the result.
func (h *History) Replay() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// NextSequence previews the sequence number the next Append will assign,
// useful for listener-registration bookkeeping.
func (h *History) NextSequence() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nextSeq
}
