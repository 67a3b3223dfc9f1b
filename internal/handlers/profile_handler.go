package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/fampita/backend/internal/models"
	"github.com/fampita/backend/internal/repositories"
	"github.com/fampita/backend/pkg/storage"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// ProfileHandler handles profile-related HTTP requests
type ProfileHandler struct {
	userRepository    repositories.UserRepository
	profileRepository repositories.ProfileRepository
	followRepository  repositories.FollowRepository
	storyRepository   repositories.StoryRepository
	bucket            storage.Bucket
}

// NewProfileHandler creates a new ProfileHandler
func NewProfileHandler(userRepo repositories.UserRepository, profileRepo repositories.ProfileRepository, followRepo repositories.FollowRepository, storyRepo repositories.StoryRepository, bucket storage.Bucket) *ProfileHandler {
	return &ProfileHandler{
		userRepository:    userRepo,
		profileRepository: profileRepo,
		followRepository:  followRepo,
		storyRepository:   storyRepo,
		bucket:            bucket,
	}
}

// RegisterProfileRoutes registers profile-related routes
func (h *ProfileHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/profile", h.GetMyProfile)
	g.PATCH("/profile", h.UpdateProfile)
	g.PUT("/profile-update", h.UpdateProfileWithPhoto)
	g.GET("/users/:username", h.GetUserProfile)
	g.GET("/search-users", h.SearchUsers)
}

// GetMyProfile returns (lazily creating) the caller's own profile.
func (h *ProfileHandler) GetMyProfile(c echo.Context) error {
	user := currentUser(c)

	resp, err := h.buildProfileResponse(c, user, user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}

// UpdateProfile applies a partial JSON update to the caller's profile.
func (h *ProfileHandler) UpdateProfile(c echo.Context) error {
	user := currentUser(c)

	var req models.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	profile, err := h.profileRepository.GetOrCreateByUserID(user.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if req.Bio != nil {
		profile.Bio = *req.Bio
	}
	if req.Genre != nil {
		profile.Genre = *req.Genre
	}
	if req.SitesWeb != nil {
		profile.SitesWeb = req.SitesWeb
	}
	if req.AfficherSuggestions != nil {
		profile.AfficherSuggestions = *req.AfficherSuggestions
	}
	if req.PhotoURL != nil {
		profile.PhotoURL = *req.PhotoURL
	}

	if err := h.profileRepository.UpdateProfile(profile); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp, err := h.buildProfileResponse(c, user, user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}

// UpdateProfileWithPhoto handles the multipart variant: same fields as
// form values plus an optional photo upload. sites_web accepts either a
// JSON-encoded array or a repeated form field.
func (h *ProfileHandler) UpdateProfileWithPhoto(c echo.Context) error {
	user := currentUser(c)

	profile, err := h.profileRepository.GetOrCreateByUserID(user.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if v := c.FormValue("bio"); v != "" {
		profile.Bio = v
	}
	if v := c.FormValue("genre"); v != "" {
		switch v {
		case models.GenreHomme, models.GenreFemme, models.GenreAutre:
			profile.Genre = v
		default:
			return echo.NewHTTPError(http.StatusBadRequest, "Genre invalide")
		}
	}
	if v := c.FormValue("afficher_suggestions"); v != "" {
		profile.AfficherSuggestions = v == "true" || v == "1"
	}

	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid multipart payload")
	}
	if sites, ok := form.Value["sites_web"]; ok {
		parsed, err := parseSitesWeb(sites)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "sites_web invalide")
		}
		profile.SitesWeb = parsed
	}

	if fileHeader, err := c.FormFile("photo"); err == nil && fileHeader != nil {
		src, err := fileHeader.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Failed to open uploaded file")
		}
		defer src.Close()

		content, err := io.ReadAll(src)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Failed to read uploaded file")
		}

		key := storage.ObjectKey("avatars", user.ID, fileHeader.Filename)
		url, err := h.bucket.Upload(c.Request().Context(), key, content, storage.ContentTypeForFile(fileHeader.Filename))
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "Photo upload failed: "+err.Error())
		}
		profile.PhotoURL = url
	}

	if err := h.profileRepository.UpdateProfile(profile); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp, err := h.buildProfileResponse(c, user, user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}

// GetUserProfile returns another user's public profile projection.
func (h *ProfileHandler) GetUserProfile(c echo.Context) error {
	viewer := currentUser(c)

	target, err := h.userRepository.GetUserByUsername(c.Param("username"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Utilisateur introuvable.")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp, err := h.buildProfileResponse(c, target, viewer)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}

// SearchUsers matches usernames case-insensitively, capped at 10 results.
func (h *ProfileHandler) SearchUsers(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Search query 'q' is required")
	}

	users, err := h.userRepository.SearchUsers(query, 10)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	ids := make([]uint, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	profiles, err := h.profileRepository.GetProfilesByUserIDs(ids)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	results := make([]models.UserCompact, 0, len(users))
	for _, u := range users {
		results = append(results, models.UserCompact{
			ID:       u.ID,
			Username: u.Username,
			Email:    u.Email,
			PhotoURL: profiles[u.ID].PhotoURL,
		})
	}
	return c.JSON(http.StatusOK, results)
}

// buildProfileResponse assembles the single profile projection used by
// every profile endpoint.
func (h *ProfileHandler) buildProfileResponse(c echo.Context, owner, viewer *models.User) (*models.ProfileResponse, error) {
	profile, err := h.profileRepository.GetOrCreateByUserID(owner.ID)
	if err != nil {
		return nil, err
	}

	followers, err := h.followRepository.GetFollowersCount(owner.ID)
	if err != nil {
		return nil, err
	}
	following, err := h.followRepository.GetFollowingCount(owner.ID)
	if err != nil {
		return nil, err
	}
	publications, err := h.storyRepository.CountByUser(c.Request().Context(), owner.ID)
	if err != nil {
		return nil, err
	}

	isFollowing := false
	if viewer != nil && viewer.ID != owner.ID {
		isFollowing, err = h.followRepository.IsFollowing(viewer.ID, owner.ID)
		if err != nil {
			return nil, err
		}
	}

	return &models.ProfileResponse{
		Username:            owner.Username,
		Email:               owner.Email,
		PhotoURL:            profile.PhotoURL,
		Bio:                 profile.Bio,
		NbPublications:      publications,
		Followers:           followers,
		Following:           following,
		Genre:               profile.Genre,
		SitesWeb:            profile.SitesWeb,
		AfficherSuggestions: profile.AfficherSuggestions,
		IsFollowing:         isFollowing,
	}, nil
}

// parseSitesWeb accepts either one JSON-encoded array or repeated form
// values.
func parseSitesWeb(values []string) ([]string, error) {
	if len(values) == 1 && strings.HasPrefix(strings.TrimSpace(values[0]), "[") {
		var sites []string
		if err := json.Unmarshal([]byte(values[0]), &sites); err != nil {
			return nil, err
		}
		return sites, nil
	}
	return values, nil
}
