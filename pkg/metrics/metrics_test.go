package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledByDefault(t *testing.T) {
	t.Cleanup(reset)
	reset()

	assert.False(t, IsEnabled())
	assert.Nil(t, GetRegistry())
}

func TestInitRegistry(t *testing.T) {
	t.Cleanup(reset)
	reset()

	reg := InitRegistry()
	require.NotNil(t, reg)
	assert.True(t, IsEnabled())
	assert.Same(t, reg, GetRegistry())

	// Later calls keep the existing registry
	assert.Same(t, reg, InitRegistry())
}
