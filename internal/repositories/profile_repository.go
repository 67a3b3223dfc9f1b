package repositories

import (
	"errors"

	"github.com/fampita/backend/internal/models"
	"gorm.io/gorm"
)

// ProfileRepository defines the interface for profile data operations
type ProfileRepository interface {
	GetOrCreateByUserID(userID uint) (*models.Profile, error)
	GetByUserID(userID uint) (*models.Profile, error)
	UpdateProfile(profile *models.Profile) error
	GetProfilesByUserIDs(userIDs []uint) (map[uint]models.Profile, error)
}

// PostgresProfileRepository implements ProfileRepository for PostgreSQL
type PostgresProfileRepository struct {
	db *gorm.DB
}

// NewPostgresProfileRepository creates a new PostgresProfileRepository
func NewPostgresProfileRepository(db *gorm.DB) *PostgresProfileRepository {
	return &PostgresProfileRepository{db: db}
}

// GetOrCreateByUserID returns the user's profile, creating an empty one
// for accounts that predate the profile table.
func (r *PostgresProfileRepository) GetOrCreateByUserID(userID uint) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		profile = models.Profile{UserID: userID, AfficherSuggestions: true}
		if err := r.db.Create(&profile).Error; err != nil {
			return nil, err
		}
		return &profile, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *PostgresProfileRepository) GetByUserID(userID uint) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *PostgresProfileRepository) UpdateProfile(profile *models.Profile) error {
	return r.db.Save(profile).Error
}

// GetProfilesByUserIDs loads profiles for a batch of users, keyed by user id.
func (r *PostgresProfileRepository) GetProfilesByUserIDs(userIDs []uint) (map[uint]models.Profile, error) {
	result := make(map[uint]models.Profile)
	if len(userIDs) == 0 {
		return result, nil
	}
	var profiles []models.Profile
	if err := r.db.Where("user_id IN ?", userIDs).Find(&profiles).Error; err != nil {
		return nil, err
	}
	for _, p := range profiles {
		result[p.UserID] = p
	}
	return result, nil
}
