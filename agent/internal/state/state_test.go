package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState(t *testing.T) {
	assert.Equal(t, "", GetLastCommand())

	SetDeviceID("dev-1")
	SetLastCommand("c-9")
	c0, d0 := Counters()
	CountCommand()
	CountDesired()
	CountDesired()

	c1, d1 := Counters()
	assert.Equal(t, "dev-1", GetDeviceID())
	assert.Equal(t, "c-9", GetLastCommand())
	assert.Equal(t, c0+1, c1)
	assert.Equal(t, d0+2, d1)
}
