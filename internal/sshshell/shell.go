// Package sshshell dials a remote host over SSH and exposes an interactive
// PTY-backed shell satisfying the session.PTY interface. It is the
// concrete transport behind every session.Session: SSH connect/auth mirrors
// gluk-w-claworc's sshmanager, and PTY request/resize mirrors its
// sshterminal package.
package sshshell

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

const (
	defaultPort     = 22
	dialTimeout     = 10 * time.Second
	defaultTermCols = 80
	defaultTermRows = 24
	defaultShell    = "/bin/bash"
)

// Credentials describes how to authenticate to the remote host. Exactly one
// of Password or KeyFilePath should be set; KeyFilePath takes precedence
// when both are present.
type Credentials struct {
	Host        string
	Port        int
	Username    string
	Password    string
	KeyFilePath string
	ConnTimeout time.Duration
}

// Shell is a live SSH connection plus an interactive PTY session on the
// remote host. It implements session.PTY.
type Shell struct {
	client  *ssh.Client
	session *ssh.Session

	stdin  interface{ Write([]byte) (int, error) }
	stdout interface{ Read([]byte) (int, error) }

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// expandKeyPath resolves a leading "~" in a key file path against the
// current user's home directory, resolved at call time so tests never
// depend on process-wide state.
func expandKeyPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand key path: resolve home directory: %w", err)
	}
	rest := strings.TrimPrefix(path, "~")
	rest = strings.TrimPrefix(rest, string(os.PathSeparator))
	return filepath.Join(home, rest), nil
}

func authMethod(creds Credentials) (ssh.AuthMethod, error) {
	if creds.KeyFilePath != "" {
		path, err := expandKeyPath(creds.KeyFilePath)
		if err != nil {
			return nil, err
		}
		keyData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read private key %s: %w", path, err)
		}
		signer, err := ssh.ParsePrivateKey(keyData)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		return ssh.PublicKeys(signer), nil
	}
	return ssh.Password(creds.Password), nil
}

// Dial connects to the remote host, authenticates, and opens an interactive
// shell with a PTY. The returned Shell satisfies session.PTY.
func Dial(creds Credentials) (*Shell, error) {
	if creds.Host == "" {
		return nil, fmt.Errorf("dial: host is empty")
	}
	if creds.Username == "" {
		return nil, fmt.Errorf("dial: username is empty")
	}
	if creds.Password == "" && creds.KeyFilePath == "" {
		return nil, fmt.Errorf("dial: one of password or keyFilePath is required")
	}

	port := creds.Port
	if port <= 0 {
		port = defaultPort
	}
	timeout := creds.ConnTimeout
	if timeout <= 0 {
		timeout = dialTimeout
	}

	auth, err := authMethod(creds)
	if err != nil {
		return nil, err
	}

	config := &ssh.ClientConfig{
		User:            creds.Username,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	addr := net.JoinHostPort(creds.Host, fmt.Sprintf("%d", port))
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	sess, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("open ssh session: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := sess.RequestPty("xterm-256color", defaultTermRows, defaultTermCols, modes); err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("request pty: %w", err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := sess.Shell(); err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("start shell: %w", err)
	}

	sh := &Shell{
		client:  client,
		session: sess,
		stdin:   stdin,
		stdout:  stdout,
		done:    make(chan struct{}),
	}

	go sh.watchSessionExit()

	return sh, nil
}

// watchSessionExit closes the done channel once the remote shell process
// exits, so Done reports the exit.
func (s *Shell) watchSessionExit() {
	_ = s.session.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.done)
		s.closed = true
	}
}

// Read returns output from the remote shell, merged stdout/stderr via PTY.
func (s *Shell) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

// Write sends bytes to the remote shell's stdin.
func (s *Shell) Write(p []byte) (int, error) {
	return s.stdin.Write(p)
}

// Resize sends an SSH window-change request to the remote PTY.
func (s *Shell) Resize(cols, rows uint16) error {
	if err := s.session.WindowChange(int(rows), int(cols)); err != nil {
		return fmt.Errorf("resize: %w", err)
	}
	return nil
}

// Close terminates the SSH session and underlying connection. Safe to call
// more than once.
func (s *Shell) Close() error {
	s.mu.Lock()
	alreadyClosed := s.closed
	if !alreadyClosed {
		s.closed = true
		close(s.done)
	}
	s.mu.Unlock()
	if alreadyClosed {
		return nil
	}

	var firstErr error
	if err := s.session.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.client.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Done reports when the remote shell process or transport has gone away.
func (s *Shell) Done() <-chan struct{} {
	return s.done
}
