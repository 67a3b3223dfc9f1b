package models

import (
	"time"

	"gorm.io/datatypes"
)

// Profile is the public-facing extension of a user account. Exactly one
// profile exists per user; it is created at registration and lazily on
// first access for accounts that predate the profile table.
type Profile struct {
	ID                  uint                        `json:"-" gorm:"primaryKey"`
	UserID              uint                        `json:"-" gorm:"uniqueIndex"`
	User                User                        `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	PhotoURL            string                      `json:"photo_url"`
	Bio                 string                      `json:"bio"`
	Genre               string                      `json:"genre" gorm:"default:''"`
	SitesWeb            datatypes.JSONSlice[string] `json:"sites_web"`
	AfficherSuggestions bool                        `json:"afficher_suggestions" gorm:"default:true"`
	CreatedAt           time.Time                   `json:"-"`
}

// Genre values accepted by profile updates. Empty string means "prefer
// not to answer".
const (
	GenreUnanswered = ""
	GenreHomme      = "homme"
	GenreFemme      = "femme"
	GenreAutre      = "autre"
)

type UpdateProfileRequest struct {
	Bio                 *string  `json:"bio" validate:"omitempty,max=2000"`
	Genre               *string  `json:"genre" validate:"omitempty,oneof='' homme femme autre"`
	SitesWeb            []string `json:"sites_web" validate:"omitempty,dive,url"`
	AfficherSuggestions *bool    `json:"afficher_suggestions"`
	PhotoURL            *string  `json:"photo_url" validate:"omitempty,url"`
}

// ProfileResponse is the single profile projection returned by every
// profile endpoint.
type ProfileResponse struct {
	Username            string   `json:"nom_utilisateur"`
	Email               string   `json:"email"`
	PhotoURL            string   `json:"photo_url"`
	Bio                 string   `json:"bio"`
	NbPublications      int64    `json:"nb_publications"`
	Followers           int64    `json:"followers"`
	Following           int64    `json:"following"`
	Genre               string   `json:"genre"`
	SitesWeb            []string `json:"sites_web"`
	AfficherSuggestions bool     `json:"afficher_suggestions"`
	IsFollowing         bool     `json:"is_following"`
}

// ProfileMini is the reduced projection used in follower/following lists
// and chat participants.
type ProfileMini struct {
	Username string `json:"nom_utilisateur"`
	Email    string `json:"email"`
	PhotoURL string `json:"photo_url"`
	Bio      string `json:"bio"`
}
