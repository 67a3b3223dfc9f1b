package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A "." or "$" in the emoji would be read by Mongo as a nested field
// path and write reactions that no longer decode as map[string][]uint.
// The guard fires before any database access.
func TestToggleReactionRejectsPathMetacharacters(t *testing.T) {
	repo := &conversationRepository{}

	for _, emoji := range []string{"a.b", ".", "$set", "❤️.x"} {
		_, err := repo.ToggleReaction(context.Background(), "64f000000000000000000001", "64f000000000000000000002", emoji, 1)
		require.Error(t, err, "emoji %q", emoji)
		assert.Contains(t, err.Error(), "invalid reaction emoji")
	}
}
