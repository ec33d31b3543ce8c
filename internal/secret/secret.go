// Package secret holds the shared cluster join token processes present when
// dialing each other's transport service, in mlocked memory so it never
// lands in a core dump or gets paged to disk.
package secret

import (
	"crypto/subtle"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/awnumar/memguard"
)

var initOnce sync.Once

func init() {
	initOnce.Do(memguard.CatchInterrupt)
}

// JoinToken is the shared secret every process in a run presents to every
// other process's transport service before it will accept migration,
// rank-map, or barrier RPCs.
type JoinToken struct {
	buf *memguard.LockedBuffer
}

// FromEnv loads the join token from the named environment variable into a
// locked buffer and clears the plaintext out of the process environment.
func FromEnv(name string) (*JoinToken, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return nil, fmt.Errorf("secret: environment variable %s is unset or empty", name)
	}
	os.Unsetenv(name)
	return fromString(raw)
}

// FromFile loads the join token from a file, trimming a single trailing
// newline if present (the conventional shape of a token written by `echo`
// or a secrets manager).
func FromFile(path string) (*JoinToken, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("secret: read token file: %w", err)
	}
	return fromString(strings.TrimSuffix(string(data), "\n"))
}

func fromString(raw string) (*JoinToken, error) {
	if raw == "" {
		return nil, fmt.Errorf("secret: token is empty")
	}
	buf := memguard.NewBufferFromBytes([]byte(raw))
	if buf.Size() == 0 {
		return nil, fmt.Errorf("secret: failed to allocate locked buffer for token")
	}
	return &JoinToken{buf: buf}, nil
}

// Equal reports whether candidate matches the token, in constant time.
func (t *JoinToken) Equal(candidate string) bool {
	if t == nil || !t.buf.IsAlive() {
		return false
	}
	return subtle.ConstantTimeCompare(t.buf.Bytes(), []byte(candidate)) == 1
}

// String returns the plaintext token, for attaching to outgoing RPC
// metadata. Callers must not log or persist the result.
func (t *JoinToken) String() string {
	return string(t.buf.Bytes())
}

// Destroy wipes the token from memory. Safe to call more than once.
func (t *JoinToken) Destroy() {
	t.buf.Destroy()
}

// Purge wipes every LockedBuffer memguard has allocated in this process,
// for use in a shutdown path alongside JoinToken.Destroy.
func Purge() {
	memguard.Purge()
}
