package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/fampita/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StoryRepository defines the interface for story operations. Story
// documents live in MongoDB; like and view rows live in PostgreSQL.
type StoryRepository interface {
	CreateStory(ctx context.Context, story *models.Story) error
	GetStoryByID(ctx context.Context, id string) (*models.Story, error)
	GetActiveStories(ctx context.Context) ([]models.Story, error)
	CountByUser(ctx context.Context, userID uint) (int64, error)
	DeleteExpiredStories(ctx context.Context) (int64, error)
	ToggleLike(storyID string, userID uint) (liked bool, err error)
	GetLikesCount(storyID string) (int64, error)
	IsLikedBy(storyID string, userID uint) (bool, error)
	MarkViewed(storyID string, userID uint) error
	GetViewsCount(storyID string) (int64, error)
	GetViews(storyID string) ([]models.StoryView, error)
	DeleteEngagement(storyIDs []string) error
}

type storyRepository struct {
	mongoCollection *mongo.Collection
	pgDB            *gorm.DB
}

func NewStoryRepository(mongoDB *mongo.Database, pgDB *gorm.DB) StoryRepository {
	return &storyRepository{
		mongoCollection: mongoDB.Collection("stories"),
		pgDB:            pgDB,
	}
}

func (r *storyRepository) CreateStory(ctx context.Context, story *models.Story) error {
	story.ID = primitive.NewObjectID()
	_, err := r.mongoCollection.InsertOne(ctx, story)
	return err
}

func (r *storyRepository) GetStoryByID(ctx context.Context, id string) (*models.Story, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid story ID format")
	}
	var story models.Story
	if err := r.mongoCollection.FindOne(ctx, bson.M{"_id": objID}).Decode(&story); err != nil {
		return nil, err
	}
	return &story, nil
}

func (r *storyRepository) GetActiveStories(ctx context.Context) ([]models.Story, error) {
	filter := bson.M{"expires_at": bson.M{"$gt": time.Now()}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.mongoCollection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var stories []models.Story
	if err = cursor.All(ctx, &stories); err != nil {
		return nil, err
	}
	return stories, nil
}

func (r *storyRepository) CountByUser(ctx context.Context, userID uint) (int64, error) {
	return r.mongoCollection.CountDocuments(ctx, bson.M{"user_id": userID})
}

// DeleteExpiredStories removes every story past its expiry and prunes
// the matching like/view rows. Used by the reaper binary.
func (r *storyRepository) DeleteExpiredStories(ctx context.Context) (int64, error) {
	filter := bson.M{"expires_at": bson.M{"$lte": time.Now()}}

	cursor, err := r.mongoCollection.Find(ctx, filter)
	if err != nil {
		return 0, err
	}
	var expired []models.Story
	if err = cursor.All(ctx, &expired); err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	ids := make([]string, len(expired))
	for i, s := range expired {
		ids[i] = s.ID.Hex()
	}

	res, err := r.mongoCollection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	if err := r.DeleteEngagement(ids); err != nil {
		return res.DeletedCount, err
	}
	return res.DeletedCount, nil
}

// ToggleLike flips the user's membership in the story's like set and
// reports the resulting state.
func (r *storyRepository) ToggleLike(storyID string, userID uint) (bool, error) {
	res := r.pgDB.
		Where("story_id = ? AND user_id = ?", storyID, userID).
		Delete(&models.StoryLike{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return false, nil
	}
	like := &models.StoryLike{StoryID: storyID, UserID: userID, CreatedAt: time.Now()}
	if err := r.pgDB.Clauses(clause.OnConflict{DoNothing: true}).Create(like).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *storyRepository) GetLikesCount(storyID string) (int64, error) {
	var count int64
	err := r.pgDB.Model(&models.StoryLike{}).Where("story_id = ?", storyID).Count(&count).Error
	return count, err
}

func (r *storyRepository) IsLikedBy(storyID string, userID uint) (bool, error) {
	var count int64
	err := r.pgDB.Model(&models.StoryLike{}).
		Where("story_id = ? AND user_id = ?", storyID, userID).
		Count(&count).Error
	return count > 0, err
}

// MarkViewed is an idempotent get-or-create on the (story, viewer) pair.
func (r *storyRepository) MarkViewed(storyID string, userID uint) error {
	view := &models.StoryView{StoryID: storyID, UserID: userID, ViewedAt: time.Now()}
	return r.pgDB.Clauses(clause.OnConflict{DoNothing: true}).Create(view).Error
}

func (r *storyRepository) GetViewsCount(storyID string) (int64, error) {
	var count int64
	err := r.pgDB.Model(&models.StoryView{}).Where("story_id = ?", storyID).Count(&count).Error
	return count, err
}

func (r *storyRepository) GetViews(storyID string) ([]models.StoryView, error) {
	var views []models.StoryView
	err := r.pgDB.Where("story_id = ?", storyID).Order("viewed_at ASC").Find(&views).Error
	return views, err
}

// DeleteEngagement drops like and view rows for the given story ids.
func (r *storyRepository) DeleteEngagement(storyIDs []string) error {
	if len(storyIDs) == 0 {
		return nil
	}
	if err := r.pgDB.Where("story_id IN ?", storyIDs).Delete(&models.StoryLike{}).Error; err != nil {
		return err
	}
	return r.pgDB.Where("story_id IN ?", storyIDs).Delete(&models.StoryView{}).Error
}
