package snowflake

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextSerial(t *testing.T) {
	g, err := NewGenerator(7)
	require.NoError(t, err)

	seen := map[string]struct{}{}
	for i := 0; i < 100; i++ {
		s, err := g.NextSerial("P")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(s, "P"))
		assert.LessOrEqual(t, len(s), 32)
		seen[s] = struct{}{}
	}
	assert.Len(t, seen, 100)
}
