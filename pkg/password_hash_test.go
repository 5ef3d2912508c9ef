package pkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	passwordHash, err := HashPassword("mcp-secret")
	require.NoError(t, err)
	assert.NotEmpty(t, passwordHash)
	assert.True(t, CheckPasswordHash("mcp-secret", passwordHash))
	assert.False(t, CheckPasswordHash("other-secret", passwordHash))
	assert.False(t, CheckPasswordHash("mcp-secret", ""))
}
