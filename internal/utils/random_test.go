package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomDigits(t *testing.T) {
	for i := 0; i < 50; i++ {
		d, err := RandomDigits(4)
		require.NoError(t, err)
		assert.Len(t, d, 4)
		assert.Regexp(t, `^[0-9]{4}$`, d)
	}

	d, err := RandomDigits(0)
	require.NoError(t, err)
	assert.Empty(t, d)
}
