package session

import "testing"

func TestHistoryAppendAssignsMonotonicSequence(t *testing.T) {
	h := NewHistory()

	e1 := h.Append([]byte("hello\r\n"), SourceCommandOutput)
	e2 := h.Append([]byte("world\r\n"), SourceCommandOutput)

	if e1.Sequence != 0 || e2.Sequence != 1 {
		t.Fatalf("expected sequences 0,1 got %d,%d", e1.Sequence, e2.Sequence)
	}

	entries := h.Replay()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if string(entries[0].Data) != "hello\r\n" || string(entries[1].Data) != "world\r\n" {
		t.Fatalf("CRLF not preserved verbatim: %q %q", entries[0].Data, entries[1].Data)
	}
}

func TestHistoryEvictsOldestOnOverflowButKeepsSequence(t *testing.T) {
	h := NewHistory()

	big := make([]byte, historyCapacityBytes/2+1)
	for i := range big {
		big[i] = 'a'
	}

	h.Append(big, SourceCommandOutput)
	h.Append(big, SourceCommandOutput)
	third := h.Append(big, SourceCommandOutput)

	entries := h.Replay()
	if len(entries) == 0 {
		t.Fatal("expected at least one surviving entry")
	}
	// the newest entry's sequence number must be unaffected by eviction
	last := entries[len(entries)-1]
	if last.Sequence != third.Sequence {
		t.Fatalf("sequence numbers were reassigned on eviction: want %d got %d", third.Sequence, last.Sequence)
	}
}

func TestHistoryReplayIsPrefixAcrossListeners(t *testing.T) {
	h := NewHistory()
	h.Append([]byte("a"), SourceCommandOutput)
	first := h.Replay()
	h.Append([]byte("b"), SourceCommandOutput)
	second := h.Replay()

	if len(second) < len(first) {
		t.Fatalf("second replay shorter than first")
	}
	for i := range first {
		if first[i].Sequence != second[i].Sequence || string(first[i].Data) != string(second[i].Data) {
			t.Fatalf("second replay is not a prefix-preserving extension of the first")
		}
	}
}
