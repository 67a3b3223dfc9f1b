package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StoryTTL is how long a story stays visible after creation.
const StoryTTL = 24 * time.Hour

// Story is a time-boxed post stored in MongoDB. ExpiresAt is fixed at
// write time and never revised.
type Story struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID    uint               `json:"-" bson:"user_id"`
	Text      string             `json:"text,omitempty" bson:"text,omitempty"`
	ImageURL  string             `json:"image_url,omitempty" bson:"image_url,omitempty"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	ExpiresAt time.Time          `json:"expires_at" bson:"expires_at"`
}

// NewStory stamps creation and expiry together so the two can never
// drift apart.
func NewStory(userID uint, text, imageURL string) *Story {
	now := time.Now()
	return &Story{
		UserID:    userID,
		Text:      text,
		ImageURL:  imageURL,
		CreatedAt: now,
		ExpiresAt: now.Add(StoryTTL),
	}
}

// StoryLike is one user's like on a story (PostgreSQL). The composite
// unique index keeps the like set a set.
type StoryLike struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	StoryID   string    `json:"story_id" gorm:"index;uniqueIndex:idx_story_user_like"`
	UserID    uint      `json:"user_id" gorm:"index;uniqueIndex:idx_story_user_like"`
	CreatedAt time.Time `json:"created_at"`
}

// StoryView records that a viewer has seen a story (PostgreSQL).
// Creation is idempotent per (story, viewer).
type StoryView struct {
	ID       uint      `json:"id" gorm:"primaryKey"`
	StoryID  string    `json:"story_id" gorm:"index;uniqueIndex:idx_story_user_view"`
	UserID   uint      `json:"user_id" gorm:"index;uniqueIndex:idx_story_user_view"`
	ViewedAt time.Time `json:"viewed_at"`
}

// StoryResponse is the story projection. LikesCount and ViewsCount are
// only populated for the story's owner; other viewers get null.
type StoryResponse struct {
	ID         string    `json:"id"`
	Username   string    `json:"user_nom_utilisateur"`
	UserPhoto  string    `json:"user_photo"`
	Text       string    `json:"text,omitempty"`
	ImageURL   string    `json:"image_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	LikesCount *int64    `json:"likes_count"`
	ViewsCount *int64    `json:"views_count"`
	LikedByMe  bool      `json:"liked_by_me"`
}

// StoryViewerResponse is one entry of the owner-only viewer list.
type StoryViewerResponse struct {
	ID       uint      `json:"id"`
	Username string    `json:"nom_utilisateur"`
	PhotoURL string    `json:"photo_url"`
	ViewedAt time.Time `json:"viewed_at"`
}
