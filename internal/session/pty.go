package session

// PTY is the boundary the session core depends on for its remote shell
// channel: a byte sink (stdin), a resize control, and a close/done pair.
// internal/sshshell implements this over a real golang.org/x/crypto/ssh
// session; tests implement it over an io.Pipe-backed stand-in (spec.md
// §5.4's ambient test-tooling note) so dispatcher/history/broadcast
// invariants can be exercised without a real sshd.
type PTY interface {
	// Read pulls the next chunk of remote shell output. The session's
	// ingress read loop calls this in a tight loop on its own goroutine.
	Read(p []byte) (int, error)
	// Write sends bytes to the remote shell's stdin. Callers must hold the
	// session's writer lock for the duration of a logical command write
	// (spec.md §5 "shared-resource policy").
	Write(p []byte) (int, error)
	// Resize changes the PTY window size.
	Resize(cols, rows uint16) error
	// Close tears down the remote shell and underlying transport.
	Close() error
	// Done is closed when the remote shell process exits, for any reason.
	Done() <-chan struct{}
}
