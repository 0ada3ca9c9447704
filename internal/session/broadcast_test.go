package session

import "testing"

func TestSubscribeWithReplaySeesEachEntryExactlyOnce(t *testing.T) {
	h := NewHistory()
	b := NewBroadcaster(h)

	b.Publish([]byte("before\r\n"), SourceCommandOutput)

	listener, snapshot := b.SubscribeWithReplay()
	defer b.Unsubscribe(listener)

	if len(snapshot) != 1 || string(snapshot[0].Data) != "before\r\n" {
		t.Fatalf("expected snapshot with one pre-existing entry, got %+v", snapshot)
	}

	b.Publish([]byte("after\r\n"), SourceCommandOutput)

	select {
	case frame := <-listener.Ch:
		if string(frame.Data) != "after\r\n" {
			t.Fatalf("expected live frame %q, got %q", "after\r\n", frame.Data)
		}
	default:
		t.Fatal("expected the post-subscribe publish to be queued on the listener")
	}

	select {
	case frame := <-listener.Ch:
		t.Fatalf("expected no further frames, got %+v", frame)
	default:
	}
}

func TestPublishCannotInterleaveWithSubscribeWithReplay(t *testing.T) {
	h := NewHistory()
	b := NewBroadcaster(h)

	start := make(chan struct{})
	done := make(chan struct{})

	go func() {
		<-start
		for i := 0; i < 200; i++ {
			b.Publish([]byte("x"), SourceCommandOutput)
		}
		close(done)
	}()

	close(start)
	listener, snapshot := b.SubscribeWithReplay()
	defer b.Unsubscribe(listener)
	<-done

	seen := make(map[uint64]int, len(snapshot))
	for _, e := range snapshot {
		seen[e.Sequence]++
	}
drain:
	for {
		select {
		case frame, ok := <-listener.Ch:
			if !ok {
				// the listener fell behind and was evicted
				break drain
			}
			seen[frame.Sequence]++
		default:
			break drain
		}
	}

	for seq, count := range seen {
		if count > 1 {
			t.Fatalf("sequence %d delivered %d times, want at most 1", seq, count)
		}
	}
}
