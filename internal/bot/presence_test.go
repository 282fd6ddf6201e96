package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresenceStatus(t *testing.T) {
	assert.Equal(t, "shard #1 · 3 servers", presenceStatus(0, 3, 0))
	assert.Equal(t, "shard #2 · 10 servers · 4 playing", presenceStatus(1, 10, 4))
}
