package session

import (
	"io"
	"sync"
)

// fakePTY is an io.Pipe-backed stand-in for a real SSH PTY, letting
// dispatcher/session invariants be exercised without a real sshd (spec.md
// §5.4 ambient test-tooling note).
type fakePTY struct {
	out  *io.PipeReader
	outW *io.PipeWriter

	mu      sync.Mutex
	writes  [][]byte
	resizes [][2]uint16

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakePTY() *fakePTY {
	r, w := io.Pipe()
	return &fakePTY{
		out:    r,
		outW:   w,
		closed: make(chan struct{}),
	}
}

func (f *fakePTY) Read(p []byte) (int, error) {
	return f.out.Read(p)
}

func (f *fakePTY) Write(p []byte) (int, error) {
	cp := append([]byte(nil), p...)
	f.mu.Lock()
	f.writes = append(f.writes, cp)
	f.mu.Unlock()
	return len(p), nil
}

func (f *fakePTY) Resize(cols, rows uint16) error {
	f.mu.Lock()
	f.resizes = append(f.resizes, [2]uint16{cols, rows})
	f.mu.Unlock()
	return nil
}

func (f *fakePTY) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		_ = f.outW.Close()
	})
	return nil
}

func (f *fakePTY) Done() <-chan struct{} {
	return f.closed
}

// emit simulates the remote shell producing output.
func (f *fakePTY) emit(s string) {
	_, _ = f.outW.Write([]byte(s))
}

func (f *fakePTY) lastWrite() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) == 0 {
		return nil
	}
	return f.writes[len(f.writes)-1]
}
