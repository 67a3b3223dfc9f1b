package repositories

import (
	"testing"

	"github.com/fampita/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateByUserID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresProfileRepository(db)
	alice := seedUser(t, db, "alice", "alice@test.fr")

	profile, err := repo.GetOrCreateByUserID(alice.ID)
	require.NoError(t, err)
	assert.True(t, profile.AfficherSuggestions)

	// Second call returns the same row, not a new one
	again, err := repo.GetOrCreateByUserID(alice.ID)
	require.NoError(t, err)
	assert.Equal(t, profile.ID, again.ID)

	var count int64
	require.NoError(t, db.Model(&models.Profile{}).Where("user_id = ?", alice.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestUpdateProfilePersistsSitesWeb(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresProfileRepository(db)
	alice := seedUser(t, db, "alice", "alice@test.fr")

	profile, err := repo.GetOrCreateByUserID(alice.ID)
	require.NoError(t, err)
	profile.Bio = "Salut"
	profile.SitesWeb = []string{"https://alice.fr", "https://blog.alice.fr"}
	require.NoError(t, repo.UpdateProfile(profile))

	reloaded, err := repo.GetByUserID(alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Salut", reloaded.Bio)
	assert.EqualValues(t, []string{"https://alice.fr", "https://blog.alice.fr"}, []string(reloaded.SitesWeb))
}

func TestGetProfilesByUserIDs(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresProfileRepository(db)
	alice := seedUser(t, db, "alice", "alice@test.fr")
	bob := seedUser(t, db, "bob", "bob@test.fr")

	_, err := repo.GetOrCreateByUserID(alice.ID)
	require.NoError(t, err)
	_, err = repo.GetOrCreateByUserID(bob.ID)
	require.NoError(t, err)

	profiles, err := repo.GetProfilesByUserIDs([]uint{alice.ID, bob.ID})
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
	assert.Contains(t, profiles, alice.ID)

	empty, err := repo.GetProfilesByUserIDs(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
