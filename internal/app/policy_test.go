package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicyByName(t *testing.T) {
	assert.Equal(t, KickMember, PolicyByName("kick").OnBackPressure("m", "c"))
	assert.Equal(t, KickMember, PolicyByName("").OnBackPressure("m", "c"))
	assert.Equal(t, DropFrame, PolicyByName("drop").OnBackPressure("m", "c"))
}
