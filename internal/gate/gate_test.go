package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttemptLogin(t *testing.T) {
	g := New("")

	assert.False(t, g.AttemptLogin("0000"))
	assert.False(t, g.Authenticated())

	assert.True(t, g.AttemptLogin("6666"))
	assert.True(t, g.Authenticated())

	// A wrong code afterwards does not relock.
	assert.False(t, g.AttemptLogin("66666"))
	assert.True(t, g.Authenticated())

	g.Lock()
	assert.False(t, g.Authenticated())
}

func TestCustomPasscode(t *testing.T) {
	g := New("bengkel")
	assert.False(t, g.AttemptLogin(DefaultPasscode))
	assert.True(t, g.AttemptLogin("bengkel"))
}
