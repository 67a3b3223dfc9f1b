package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fampita/backend/internal/handlers"
	"github.com/fampita/backend/internal/models"
	"github.com/fampita/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type storyApp struct {
	e       *echo.Echo
	db      *gorm.DB
	stories *fakeStoryRepo
	bucket  *fakeBucket
	current *models.User
}

func setupStoryApp(t *testing.T) *storyApp {
	t.Helper()
	app := &storyApp{
		db:      setupTestDB(t),
		stories: newFakeStoryRepo(),
		bucket:  newFakeBucket(),
	}

	userRepo := repositories.NewPostgresUserRepository(app.db)
	profileRepo := repositories.NewPostgresProfileRepository(app.db)
	handler := handlers.NewStoryHandler(app.stories, userRepo, profileRepo, app.bucket)

	app.e = newEcho()
	api := app.e.Group("/api", authAs(&app.current))
	handler.RegisterStoryRoutes(api)
	return app
}

func (app *storyApp) addStory(t *testing.T, userID uint, text string) *models.Story {
	t.Helper()
	story := models.NewStory(userID, text, "")
	require.NoError(t, app.stories.CreateStory(context.Background(), story))
	return story
}

func TestCreateStoryWithText(t *testing.T) {
	app := setupStoryApp(t)
	app.current = createUser(t, app.db, "alice", "alice@test.fr", true)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("text", "Bonjour tout le monde"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/story/create", &buf)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := httptest.NewRecorder()
	app.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp models.StoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Bonjour tout le monde", resp.Text)
	assert.Equal(t, "alice", resp.Username)
	// Expiry is pinned to creation, 24h later
	assert.WithinDuration(t, resp.CreatedAt.Add(models.StoryTTL), resp.ExpiresAt, time.Second)
	// Owner sees zero counts, not null
	require.NotNil(t, resp.LikesCount)
	require.NotNil(t, resp.ViewsCount)
	assert.EqualValues(t, 0, *resp.LikesCount)
}

func TestCreateStoryWithImage(t *testing.T) {
	app := setupStoryApp(t)
	app.current = createUser(t, app.db, "alice", "alice@test.fr", true)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", "plage.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("fake-jpeg-bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/story/create", &buf)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := httptest.NewRecorder()
	app.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp models.StoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.ImageURL, "https://cdn.test/stories/")
	assert.Len(t, app.bucket.objects, 1)
}

func TestCreateStoryEmptyRejected(t *testing.T) {
	app := setupStoryApp(t)
	app.current = createUser(t, app.db, "alice", "alice@test.fr", true)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("text", "   "))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/story/create", &buf)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := httptest.NewRecorder()
	app.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Story vide")
}

func TestListActiveStoriesHidesCountsFromOthers(t *testing.T) {
	app := setupStoryApp(t)
	alice := createUser(t, app.db, "alice", "alice@test.fr", true)
	bob := createUser(t, app.db, "bob", "bob@test.fr", true)

	story := app.addStory(t, alice.ID, "ma story")
	_, err := app.stories.ToggleLike(story.ID.Hex(), bob.ID)
	require.NoError(t, err)

	// Expired story never shows up
	expired := models.NewStory(alice.ID, "vieille story", "")
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, app.stories.CreateStory(context.Background(), expired))

	app.current = bob
	rec := doRequest(app.e, http.MethodGet, "/api/story", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var listed []models.StoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Nil(t, listed[0].LikesCount)
	assert.Nil(t, listed[0].ViewsCount)
	assert.True(t, listed[0].LikedByMe)

	// The owner sees the counts
	app.current = alice
	rec = doRequest(app.e, http.MethodGet, "/api/story", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	require.NotNil(t, listed[0].LikesCount)
	assert.EqualValues(t, 1, *listed[0].LikesCount)
	assert.False(t, listed[0].LikedByMe)
}

func TestToggleLike(t *testing.T) {
	app := setupStoryApp(t)
	alice := createUser(t, app.db, "alice", "alice@test.fr", true)
	bob := createUser(t, app.db, "bob", "bob@test.fr", true)
	story := app.addStory(t, alice.ID, "ma story")

	path := "/api/story/" + story.ID.Hex() + "/like"

	app.current = bob
	rec := doRequest(app.e, http.MethodPost, path, "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body["likes_count"])
	assert.Equal(t, true, body["liked_by_me"])

	// Second call undoes the first
	rec = doRequest(app.e, http.MethodPost, path, "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 0, body["likes_count"])
	assert.Equal(t, false, body["liked_by_me"])

	// Owner cannot like their own story
	app.current = alice
	rec = doRequest(app.e, http.MethodPost, path, "", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Impossible d'aimer sa propre story.")

	// Unknown story
	app.current = bob
	rec = doRequest(app.e, http.MethodPost, "/api/story/000000000000000000000000/like", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarkViewedIsIdempotent(t *testing.T) {
	app := setupStoryApp(t)
	alice := createUser(t, app.db, "alice", "alice@test.fr", true)
	bob := createUser(t, app.db, "bob", "bob@test.fr", true)
	story := app.addStory(t, alice.ID, "ma story")

	path := "/api/story/" + story.ID.Hex() + "/view"

	app.current = bob
	for i := 0; i < 3; i++ {
		rec := doRequest(app.e, http.MethodPost, path, "", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.EqualValues(t, 1, body["views_count"])
	}
}

func TestListViewersOwnerOnly(t *testing.T) {
	app := setupStoryApp(t)
	alice := createUser(t, app.db, "alice", "alice@test.fr", true)
	bob := createUser(t, app.db, "bob", "bob@test.fr", true)
	story := app.addStory(t, alice.ID, "ma story")
	require.NoError(t, app.stories.MarkViewed(story.ID.Hex(), bob.ID))

	path := "/api/story/" + story.ID.Hex() + "/viewers"

	app.current = alice
	rec := doRequest(app.e, http.MethodGet, path, "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var viewers []models.StoryViewerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &viewers))
	require.Len(t, viewers, 1)
	assert.Equal(t, "bob", viewers[0].Username)

	// Non-owner gets the same response as a missing story
	app.current = bob
	rec = doRequest(app.e, http.MethodGet, path, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Story introuvable ou pas la vôtre.")
}
