package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Conversation is a participant set plus its ordered message history,
// stored as a single MongoDB document. PairKey is the canonical
// "minID:maxID" key; a unique index on it prevents concurrent callers
// from creating duplicate conversations for the same pair.
type Conversation struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ParticipantIDs []uint             `json:"-" bson:"participant_ids"`
	PairKey        string             `json:"-" bson:"pair_key"`
	Messages       []Message          `json:"messages" bson:"messages"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
}

// Message belongs to exactly one conversation and is immutable once
// created, except for its reactions map (emoji -> reacting user ids).
type Message struct {
	ID        primitive.ObjectID `json:"id" bson:"id"`
	SenderID  uint               `json:"-" bson:"sender_id"`
	Text      string             `json:"text,omitempty" bson:"text,omitempty"`
	ImageURL  string             `json:"image_url,omitempty" bson:"image_url,omitempty"`
	Reactions map[string][]uint  `json:"reactions" bson:"reactions"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}

// PairKey canonicalizes a participant pair regardless of argument order.
func PairKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// HasParticipant reports whether the user belongs to the conversation.
func (c *Conversation) HasParticipant(userID uint) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

type CreateConversationRequest struct {
	RecipientID uint `json:"recipient_id" validate:"required"`
}

type SendMessageRequest struct {
	Text     string `json:"text" form:"text"`
	ImageURL string `json:"image_url" form:"image_url" validate:"omitempty,url"`
}

type SendMessageToUserRequest struct {
	RecipientID uint   `json:"recipient_id" validate:"required"`
	Text        string `json:"text"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
}

// Emoji becomes a Mongo map key inside the reactions update path, so
// "." and "$" must never get through.
type ReactToMessageRequest struct {
	Emoji string `json:"emoji" validate:"required,max=16,excludesall=.$"`
}
