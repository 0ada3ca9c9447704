package session

import "testing"

func TestBrowserCommandBufferFIFOEviction(t *testing.T) {
	b := NewBrowserCommandBuffer()

	for i := 0; i < browserBufferCapacity+10; i++ {
		b.Append(BrowserCommandEntry{CommandString: "cmd", CommandID: string(rune(i))})
	}

	snap := b.Snapshot()
	if len(snap) != browserBufferCapacity {
		t.Fatalf("expected capacity-bounded buffer of %d, got %d", browserBufferCapacity, len(snap))
	}
}

func TestBrowserCommandBufferClearDrains(t *testing.T) {
	b := NewBrowserCommandBuffer()
	b.Append(BrowserCommandEntry{CommandString: "pwd"})

	drained := b.Clear()
	if len(drained) != 1 {
		t.Fatalf("expected 1 drained entry, got %d", len(drained))
	}
	if len(b.Snapshot()) != 0 {
		t.Fatalf("expected buffer empty after Clear")
	}
}
