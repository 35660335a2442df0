// Package gate hides the create/edit/delete affordances behind a shared
// passcode.
//
// This is NOT a security control. The passcode is a fixed value compared in
// process, there is no lockout, no rate limiting and no hashing, and the
// unlocked state lasts until Lock or process exit. Anything that needs real
// access control must sit in front of it (see web's Basic Auth middleware).
package gate

import (
	"crypto/subtle"
	"sync"
)

// DefaultPasscode is used when none is configured.
const DefaultPasscode = "6666"

type Gate struct {
	passcode string

	mu            sync.RWMutex
	authenticated bool
}

func New(passcode string) *Gate {
	if passcode == "" {
		passcode = DefaultPasscode
	}
	return &Gate{passcode: passcode}
}

// AttemptLogin compares candidate with the passcode and unlocks on a match.
// A failed attempt does not lock an already unlocked gate. The candidate is
// not kept.
func (g *Gate) AttemptLogin(candidate string) bool {
	if !secureCompare(candidate, g.passcode) {
		return false
	}
	g.mu.Lock()
	g.authenticated = true
	g.mu.Unlock()
	return true
}

func (g *Gate) Authenticated() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.authenticated
}

func (g *Gate) Lock() {
	g.mu.Lock()
	g.authenticated = false
	g.mu.Unlock()
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
