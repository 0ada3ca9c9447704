package sshshell

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExpandKeyPathExpandsTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory available: %v", err)
	}

	got, err := expandKeyPath("~/.ssh/id_ed25519")
	if err != nil {
		t.Fatalf("expandKeyPath returned error: %v", err)
	}
	want := filepath.Join(home, ".ssh/id_ed25519")
	if got != want {
		t.Fatalf("expandKeyPath() = %q, want %q", got, want)
	}
}

func TestExpandKeyPathLeavesAbsolutePathUnchanged(t *testing.T) {
	got, err := expandKeyPath("/etc/ssh/key")
	if err != nil {
		t.Fatalf("expandKeyPath returned error: %v", err)
	}
	if got != "/etc/ssh/key" {
		t.Fatalf("expandKeyPath() = %q, want unchanged path", got)
	}
}

func TestDialRejectsMissingCredentials(t *testing.T) {
	if _, err := Dial(Credentials{Username: "u"}); err == nil {
		t.Fatal("expected error for missing host")
	}
	if _, err := Dial(Credentials{Host: "example.invalid"}); err == nil {
		t.Fatal("expected error for missing username")
	}
	if _, err := Dial(Credentials{Host: "example.invalid", Username: "u"}); err == nil {
		t.Fatal("expected error when neither password nor keyFilePath is set")
	}
}

func TestDialReportsUnreadableKeyFile(t *testing.T) {
	_, err := Dial(Credentials{
		Host:        "example.invalid",
		Username:    "u",
		KeyFilePath: "/nonexistent/path/to/key",
	})
	if err == nil || !strings.Contains(err.Error(), "read private key") {
		t.Fatalf("expected a read private key error, got %v", err)
	}
}
