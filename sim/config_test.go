package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNodeType_String(t *testing.T) {
	assert.Equal(t, "gpu", NodeTypeGPU.String())
	assert.Equal(t, "switch", NodeTypeSwitch.String())
}

func TestMaxInt(t *testing.T) {
	assert.Equal(t, 5, maxInt(5, 3))
	assert.Equal(t, 5, maxInt(3, 5))
	assert.Equal(t, 5, maxInt(5, 5))
}
