package secret

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFromEnvClearsVariable(t *testing.T) {
	t.Setenv("DISTCGP_TEST_TOKEN", "swordfish")
	tok, err := FromEnv("DISTCGP_TEST_TOKEN")
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	defer tok.Destroy()

	if os.Getenv("DISTCGP_TEST_TOKEN") != "" {
		t.Fatalf("expected environment variable to be cleared after load")
	}
	if !tok.Equal("swordfish") {
		t.Fatalf("expected token to equal loaded value")
	}
	if tok.Equal("wrong") {
		t.Fatalf("expected mismatched candidate to fail")
	}
}

func TestFromEnvMissing(t *testing.T) {
	if _, err := FromEnv("DISTCGP_TEST_TOKEN_MISSING"); err == nil {
		t.Fatalf("expected error for unset environment variable")
	}
}

func TestFromFileTrimsTrailingNewline(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token")
	if err := os.WriteFile(path, []byte("abc123\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	tok, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	defer tok.Destroy()

	if !tok.Equal("abc123") {
		t.Fatalf("expected trimmed token to equal abc123")
	}
}

func TestDestroyIsIdempotentAndInvalidatesEqual(t *testing.T) {
	t.Setenv("DISTCGP_TEST_TOKEN", "once")
	tok, err := FromEnv("DISTCGP_TEST_TOKEN")
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	tok.Destroy()
	tok.Destroy()

	if tok.Equal("once") {
		t.Fatalf("expected destroyed token to never match")
	}
}
