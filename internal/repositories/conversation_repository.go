package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fampita/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConversationRepository defines the interface for conversation operations
type ConversationRepository interface {
	EnsureIndexes(ctx context.Context) error
	FindOrCreate(ctx context.Context, userA, userB uint) (*models.Conversation, error)
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	ListForUser(ctx context.Context, userID uint) ([]models.Conversation, error)
	AppendMessage(ctx context.Context, conversationID string, message *models.Message) error
	ToggleReaction(ctx context.Context, conversationID, messageID, emoji string, userID uint) (*models.Message, error)
}

type conversationRepository struct {
	collection *mongo.Collection
}

func NewConversationRepository(db *mongo.Database) ConversationRepository {
	return &conversationRepository{collection: db.Collection("conversations")}
}

// EnsureIndexes creates the unique pair_key index that prevents the
// duplicate-conversation race between concurrent find-or-create calls.
func (r *conversationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "pair_key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// FindOrCreate returns the conversation between the two users, creating
// it when absent. A concurrent insert loses on the unique index and
// falls back to re-reading the winner's document.
func (r *conversationRepository) FindOrCreate(ctx context.Context, userA, userB uint) (*models.Conversation, error) {
	pairKey := models.PairKey(userA, userB)

	var conv models.Conversation
	err := r.collection.FindOne(ctx, bson.M{"pair_key": pairKey}).Decode(&conv)
	if err == nil {
		return &conv, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}

	conv = models.Conversation{
		ID:             primitive.NewObjectID(),
		ParticipantIDs: []uint{userA, userB},
		PairKey:        pairKey,
		Messages:       []models.Message{},
		CreatedAt:      time.Now(),
	}
	_, err = r.collection.InsertOne(ctx, &conv)
	if mongo.IsDuplicateKeyError(err) {
		if err := r.collection.FindOne(ctx, bson.M{"pair_key": pairKey}).Decode(&conv); err != nil {
			return nil, err
		}
		return &conv, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid conversation ID format")
	}
	var conv models.Conversation
	if err := r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) ListForUser(ctx context.Context, userID uint) ([]models.Conversation, error) {
	filter := bson.M{"participant_ids": userID}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var conversations []models.Conversation
	if err = cursor.All(ctx, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

func (r *conversationRepository) AppendMessage(ctx context.Context, conversationID string, message *models.Message) error {
	objID, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return fmt.Errorf("invalid conversation ID format")
	}
	message.ID = primitive.NewObjectID()
	message.CreatedAt = time.Now()
	if message.Reactions == nil {
		message.Reactions = map[string][]uint{}
	}
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objID},
		bson.M{"$push": bson.M{"messages": message}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ToggleReaction flips the user's membership in the message's reaction
// list for the given emoji and returns the updated message.
func (r *conversationRepository) ToggleReaction(ctx context.Context, conversationID, messageID, emoji string, userID uint) (*models.Message, error) {
	// The emoji ends up as a document key; "." or "$" would turn the
	// update into a nested-path write that corrupts the reactions map.
	if strings.ContainsAny(emoji, ".$") {
		return nil, fmt.Errorf("invalid reaction emoji")
	}

	conv, err := r.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	msgObjID, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return nil, fmt.Errorf("invalid message ID format")
	}

	var found *models.Message
	for i := range conv.Messages {
		if conv.Messages[i].ID == msgObjID {
			found = &conv.Messages[i]
			break
		}
	}
	if found == nil {
		return nil, mongo.ErrNoDocuments
	}

	reacted := false
	for _, id := range found.Reactions[emoji] {
		if id == userID {
			reacted = true
			break
		}
	}

	field := "messages.$[m].reactions." + emoji
	var update bson.M
	if reacted {
		update = bson.M{"$pull": bson.M{field: userID}}
	} else {
		update = bson.M{"$addToSet": bson.M{field: userID}}
	}

	arrayFilters := options.ArrayFilters{Filters: []interface{}{bson.M{"m.id": msgObjID}}}
	_, err = r.collection.UpdateOne(ctx,
		bson.M{"_id": conv.ID},
		update,
		options.Update().SetArrayFilters(arrayFilters),
	)
	if err != nil {
		return nil, err
	}

	conv, err = r.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	for i := range conv.Messages {
		if conv.Messages[i].ID == msgObjID {
			return &conv.Messages[i], nil
		}
	}
	return nil, mongo.ErrNoDocuments
}
