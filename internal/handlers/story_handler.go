package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/fampita/backend/internal/models"
	"github.com/fampita/backend/internal/repositories"
	"github.com/fampita/backend/pkg/storage"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"
)

// StoryHandler handles story-related HTTP requests
type StoryHandler struct {
	storyRepository   repositories.StoryRepository
	userRepository    repositories.UserRepository
	profileRepository repositories.ProfileRepository
	bucket            storage.Bucket
}

// NewStoryHandler creates a new StoryHandler
func NewStoryHandler(storyRepo repositories.StoryRepository, userRepo repositories.UserRepository, profileRepo repositories.ProfileRepository, bucket storage.Bucket) *StoryHandler {
	return &StoryHandler{
		storyRepository:   storyRepo,
		userRepository:    userRepo,
		profileRepository: profileRepo,
		bucket:            bucket,
	}
}

// RegisterStoryRoutes registers story-related routes
func (h *StoryHandler) RegisterStoryRoutes(g *echo.Group) {
	g.GET("/story", h.ListActiveStories)
	g.POST("/story/create", h.CreateStory)
	g.POST("/story/:id/like", h.ToggleLike)
	g.POST("/story/:id/view", h.MarkViewed)
	g.GET("/story/:id/viewers", h.ListViewers)
}

// ListActiveStories returns all unexpired stories, newest first.
// Aggregate counts are withheld from everyone but the story's owner.
func (h *StoryHandler) ListActiveStories(c echo.Context) error {
	viewer := currentUser(c)

	stories, err := h.storyRepository.GetActiveStories(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	// Join owners from Postgres
	idSet := map[uint]struct{}{}
	for _, s := range stories {
		idSet[s.UserID] = struct{}{}
	}
	ids := make([]uint, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	users, err := h.userRepository.GetUsersByIDs(ids)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	userMap := make(map[uint]models.User, len(users))
	for _, u := range users {
		userMap[u.ID] = u
	}
	profiles, err := h.profileRepository.GetProfilesByUserIDs(ids)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	results := make([]models.StoryResponse, 0, len(stories))
	for i := range stories {
		resp, err := h.renderStory(&stories[i], viewer, userMap[stories[i].UserID], profiles[stories[i].UserID])
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		results = append(results, *resp)
	}
	return c.JSON(http.StatusOK, results)
}

// CreateStory persists a new story. Its expiry is fixed at creation
// time and never revised.
func (h *StoryHandler) CreateStory(c echo.Context) error {
	user := currentUser(c)

	text := strings.TrimSpace(c.FormValue("text"))
	imageURL := ""

	if fileHeader, err := c.FormFile("image"); err == nil && fileHeader != nil {
		src, err := fileHeader.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Failed to open uploaded file")
		}
		defer src.Close()

		content, err := io.ReadAll(src)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Failed to read uploaded file")
		}

		key := storage.ObjectKey("stories", user.ID, fileHeader.Filename)
		imageURL, err = h.bucket.Upload(c.Request().Context(), key, content, storage.ContentTypeForFile(fileHeader.Filename))
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "Image upload failed: "+err.Error())
		}
	}

	if text == "" && imageURL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Story vide")
	}

	story := models.NewStory(user.ID, text, imageURL)
	if err := h.storyRepository.CreateStory(c.Request().Context(), story); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	profile, err := h.profileRepository.GetOrCreateByUserID(user.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp, err := h.renderStory(story, user, *user, *profile)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, resp)
}

// ToggleLike flips the caller's like on a story. Owners cannot like
// their own stories.
func (h *StoryHandler) ToggleLike(c echo.Context) error {
	user := currentUser(c)

	story, err := h.lookupStory(c)
	if err != nil {
		return err
	}
	if story.UserID == user.ID {
		return echo.NewHTTPError(http.StatusForbidden, "Impossible d'aimer sa propre story.")
	}

	liked, err := h.storyRepository.ToggleLike(story.ID.Hex(), user.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	count, err := h.storyRepository.GetLikesCount(story.ID.Hex())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"likes_count": count,
		"liked_by_me": liked,
	})
}

// MarkViewed records that the caller has seen the story; repeat calls
// are idempotent.
func (h *StoryHandler) MarkViewed(c echo.Context) error {
	user := currentUser(c)

	story, err := h.lookupStory(c)
	if err != nil {
		return err
	}

	if err := h.storyRepository.MarkViewed(story.ID.Hex(), user.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	count, err := h.storyRepository.GetViewsCount(story.ID.Hex())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"views_count": count})
}

// ListViewers returns who saw the story; owner only.
func (h *StoryHandler) ListViewers(c echo.Context) error {
	user := currentUser(c)

	story, err := h.lookupStory(c)
	if err != nil {
		return err
	}
	if story.UserID != user.ID {
		return echo.NewHTTPError(http.StatusNotFound, "Story introuvable ou pas la vôtre.")
	}

	views, err := h.storyRepository.GetViews(story.ID.Hex())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	ids := make([]uint, len(views))
	for i, v := range views {
		ids[i] = v.UserID
	}
	users, err := h.userRepository.GetUsersByIDs(ids)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	userMap := make(map[uint]models.User, len(users))
	for _, u := range users {
		userMap[u.ID] = u
	}
	profiles, err := h.profileRepository.GetProfilesByUserIDs(ids)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	results := make([]models.StoryViewerResponse, 0, len(views))
	for _, v := range views {
		u := userMap[v.UserID]
		results = append(results, models.StoryViewerResponse{
			ID:       u.ID,
			Username: u.Username,
			PhotoURL: profiles[v.UserID].PhotoURL,
			ViewedAt: v.ViewedAt,
		})
	}
	return c.JSON(http.StatusOK, results)
}

func (h *StoryHandler) lookupStory(c echo.Context) (*models.Story, error) {
	story, err := h.storyRepository.GetStoryByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, echo.NewHTTPError(http.StatusNotFound, "Introuvable")
		}
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return story, nil
}

// renderStory builds the story projection. likes_count and views_count
// stay null unless the viewer owns the story.
func (h *StoryHandler) renderStory(story *models.Story, viewer *models.User, owner models.User, ownerProfile models.Profile) (*models.StoryResponse, error) {
	resp := &models.StoryResponse{
		ID:        story.ID.Hex(),
		Username:  owner.Username,
		UserPhoto: ownerProfile.PhotoURL,
		Text:      story.Text,
		ImageURL:  story.ImageURL,
		CreatedAt: story.CreatedAt,
		ExpiresAt: story.ExpiresAt,
	}
	if resp.UserPhoto == "" {
		resp.UserPhoto = "/default-avatar.png"
	}

	liked, err := h.storyRepository.IsLikedBy(story.ID.Hex(), viewer.ID)
	if err != nil {
		return nil, err
	}
	resp.LikedByMe = liked

	if viewer.ID == story.UserID {
		likes, err := h.storyRepository.GetLikesCount(story.ID.Hex())
		if err != nil {
			return nil, err
		}
		views, err := h.storyRepository.GetViewsCount(story.ID.Hex())
		if err != nil {
			return nil, err
		}
		resp.LikesCount = &likes
		resp.ViewsCount = &views
	}
	return resp, nil
}
