package handlers_test

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/fampita/backend/internal/models"
	"github.com/fampita/backend/internal/router"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.Follow{},
		&models.StoryLike{},
		&models.StoryView{},
	); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db
}

// newEcho returns an Echo instance with the production error handler so
// tests see the normalized {"error": ...} envelope.
func newEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = router.HTTPErrorHandler
	return e
}

// authAs injects *userPtr as the authenticated user, standing in for
// the JWT middleware.
func authAs(userPtr **models.User) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("user", *userPtr)
			return next(c)
		}
	}
}

func createUser(t *testing.T, db *gorm.DB, username, email string, active bool) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		Email:    email,
		Password: "hashed",
		IsActive: active,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	profile := &models.Profile{UserID: user.ID, AfficherSuggestions: true}
	if err := db.Create(profile).Error; err != nil {
		t.Fatalf("create profile for %s: %v", username, err)
	}
	return user
}

func doRequest(e *echo.Echo, method, path, body, contentType string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

// --- fakes -----------------------------------------------------------

// fakeBucket is an in-memory storage.Bucket.
type fakeBucket struct {
	objects map[string][]byte
	fail    bool
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}}
}

func (b *fakeBucket) Upload(ctx context.Context, key string, content []byte, contentType string) (string, error) {
	if b.fail {
		return "", fmt.Errorf("storage backend unavailable")
	}
	b.objects[key] = content
	return "https://cdn.test/" + key, nil
}

func (b *fakeBucket) Remove(ctx context.Context, key string) error {
	delete(b.objects, key)
	return nil
}

// fakeSender records confirmation emails instead of sending them.
type fakeSender struct {
	to    []string
	codes []string
}

func (s *fakeSender) SendConfirmationEmail(to, code string) error {
	s.to = append(s.to, to)
	s.codes = append(s.codes, code)
	return nil
}

// fakeStoryRepo is an in-memory StoryRepository.
type fakeStoryRepo struct {
	stories map[string]*models.Story
	likes   map[string]map[uint]bool
	views   map[string]map[uint]time.Time
}

func newFakeStoryRepo() *fakeStoryRepo {
	return &fakeStoryRepo{
		stories: map[string]*models.Story{},
		likes:   map[string]map[uint]bool{},
		views:   map[string]map[uint]time.Time{},
	}
}

func (r *fakeStoryRepo) CreateStory(ctx context.Context, story *models.Story) error {
	story.ID = primitive.NewObjectID()
	r.stories[story.ID.Hex()] = story
	return nil
}

func (r *fakeStoryRepo) GetStoryByID(ctx context.Context, id string) (*models.Story, error) {
	story, ok := r.stories[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return story, nil
}

func (r *fakeStoryRepo) GetActiveStories(ctx context.Context) ([]models.Story, error) {
	var active []models.Story
	for _, s := range r.stories {
		if s.ExpiresAt.After(time.Now()) {
			active = append(active, *s)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.After(active[j].CreatedAt) })
	return active, nil
}

func (r *fakeStoryRepo) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	for _, s := range r.stories {
		if s.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (r *fakeStoryRepo) DeleteExpiredStories(ctx context.Context) (int64, error) {
	var deleted int64
	for id, s := range r.stories {
		if !s.ExpiresAt.After(time.Now()) {
			delete(r.stories, id)
			delete(r.likes, id)
			delete(r.views, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *fakeStoryRepo) ToggleLike(storyID string, userID uint) (bool, error) {
	if r.likes[storyID] == nil {
		r.likes[storyID] = map[uint]bool{}
	}
	if r.likes[storyID][userID] {
		delete(r.likes[storyID], userID)
		return false, nil
	}
	r.likes[storyID][userID] = true
	return true, nil
}

func (r *fakeStoryRepo) GetLikesCount(storyID string) (int64, error) {
	return int64(len(r.likes[storyID])), nil
}

func (r *fakeStoryRepo) IsLikedBy(storyID string, userID uint) (bool, error) {
	return r.likes[storyID][userID], nil
}

func (r *fakeStoryRepo) MarkViewed(storyID string, userID uint) error {
	if r.views[storyID] == nil {
		r.views[storyID] = map[uint]time.Time{}
	}
	if _, seen := r.views[storyID][userID]; !seen {
		r.views[storyID][userID] = time.Now()
	}
	return nil
}

func (r *fakeStoryRepo) GetViewsCount(storyID string) (int64, error) {
	return int64(len(r.views[storyID])), nil
}

func (r *fakeStoryRepo) GetViews(storyID string) ([]models.StoryView, error) {
	var views []models.StoryView
	for userID, at := range r.views[storyID] {
		views = append(views, models.StoryView{StoryID: storyID, UserID: userID, ViewedAt: at})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ViewedAt.Before(views[j].ViewedAt) })
	return views, nil
}

func (r *fakeStoryRepo) DeleteEngagement(storyIDs []string) error {
	for _, id := range storyIDs {
		delete(r.likes, id)
		delete(r.views, id)
	}
	return nil
}

// fakeConversationRepo is an in-memory ConversationRepository.
type fakeConversationRepo struct {
	conversations map[string]*models.Conversation
	byPair        map[string]string
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{
		conversations: map[string]*models.Conversation{},
		byPair:        map[string]string{},
	}
}

func (r *fakeConversationRepo) EnsureIndexes(ctx context.Context) error { return nil }

func (r *fakeConversationRepo) FindOrCreate(ctx context.Context, userA, userB uint) (*models.Conversation, error) {
	pairKey := models.PairKey(userA, userB)
	if id, ok := r.byPair[pairKey]; ok {
		return r.conversations[id], nil
	}
	conv := &models.Conversation{
		ID:             primitive.NewObjectID(),
		ParticipantIDs: []uint{userA, userB},
		PairKey:        pairKey,
		Messages:       []models.Message{},
		CreatedAt:      time.Now(),
	}
	r.conversations[conv.ID.Hex()] = conv
	r.byPair[pairKey] = conv.ID.Hex()
	return conv, nil
}

func (r *fakeConversationRepo) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	conv, ok := r.conversations[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return conv, nil
}

func (r *fakeConversationRepo) ListForUser(ctx context.Context, userID uint) ([]models.Conversation, error) {
	var result []models.Conversation
	for _, conv := range r.conversations {
		if conv.HasParticipant(userID) {
			result = append(result, *conv)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (r *fakeConversationRepo) AppendMessage(ctx context.Context, conversationID string, message *models.Message) error {
	conv, ok := r.conversations[conversationID]
	if !ok {
		return mongo.ErrNoDocuments
	}
	message.ID = primitive.NewObjectID()
	message.CreatedAt = time.Now()
	if message.Reactions == nil {
		message.Reactions = map[string][]uint{}
	}
	conv.Messages = append(conv.Messages, *message)
	return nil
}

func (r *fakeConversationRepo) ToggleReaction(ctx context.Context, conversationID, messageID, emoji string, userID uint) (*models.Message, error) {
	conv, ok := r.conversations[conversationID]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	for i := range conv.Messages {
		if conv.Messages[i].ID.Hex() != messageID {
			continue
		}
		msg := &conv.Messages[i]
		var kept []uint
		found := false
		for _, id := range msg.Reactions[emoji] {
			if id == userID {
				found = true
				continue
			}
			kept = append(kept, id)
		}
		if found {
			msg.Reactions[emoji] = kept
		} else {
			msg.Reactions[emoji] = append(msg.Reactions[emoji], userID)
		}
		return msg, nil
	}
	return nil, mongo.ErrNoDocuments
}
