package handlers

import (
	"errors"
	"net/http"

	"github.com/fampita/backend/internal/models"
	"github.com/fampita/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// FollowHandler handles follow/unfollow HTTP requests
type FollowHandler struct {
	followRepository  repositories.FollowRepository
	userRepository    repositories.UserRepository
	profileRepository repositories.ProfileRepository
}

// NewFollowHandler creates a new FollowHandler
func NewFollowHandler(followRepo repositories.FollowRepository, userRepo repositories.UserRepository, profileRepo repositories.ProfileRepository) *FollowHandler {
	return &FollowHandler{
		followRepository:  followRepo,
		userRepository:    userRepo,
		profileRepository: profileRepo,
	}
}

// RegisterFollowRoutes registers follow-related routes
func (h *FollowHandler) RegisterFollowRoutes(g *echo.Group) {
	g.POST("/follow/:username", h.FollowUser)
	g.POST("/unfollow/:username", h.UnfollowUser)
	g.GET("/users/:username/followers", h.ListFollowers)
	g.GET("/users/:username/following", h.ListFollowing)
}

// FollowUser adds the caller to the target's follower set. The add is
// idempotent; following yourself is rejected.
func (h *FollowHandler) FollowUser(c echo.Context) error {
	viewer := currentUser(c)

	target, err := h.lookupTarget(c)
	if err != nil {
		return err
	}
	if viewer.ID == target.ID {
		return echo.NewHTTPError(http.StatusBadRequest, "Impossible de se suivre soi-même.")
	}

	follow := &models.Follow{FollowerID: viewer.ID, FollowingID: target.ID}
	if err := h.followRepository.CreateFollow(follow); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	count, err := h.followRepository.GetFollowersCount(target.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"detail":    "Abonnement ajouté.",
		"followers": count,
	})
}

// UnfollowUser removes the caller from the target's follower set.
// Removing a nonexistent edge is a no-op.
func (h *FollowHandler) UnfollowUser(c echo.Context) error {
	viewer := currentUser(c)

	target, err := h.lookupTarget(c)
	if err != nil {
		return err
	}
	if viewer.ID == target.ID {
		return echo.NewHTTPError(http.StatusBadRequest, "Impossible de se désabonner de soi-même.")
	}

	if err := h.followRepository.DeleteFollow(viewer.ID, target.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	count, err := h.followRepository.GetFollowersCount(target.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"detail":    "Abonnement retiré.",
		"followers": count,
	})
}

// ListFollowers returns the users following the target.
func (h *FollowHandler) ListFollowers(c echo.Context) error {
	target, err := h.lookupTarget(c)
	if err != nil {
		return err
	}

	users, err := h.followRepository.GetFollowers(target.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return h.renderMiniProfiles(c, users)
}

// ListFollowing returns the users the target follows.
func (h *FollowHandler) ListFollowing(c echo.Context) error {
	target, err := h.lookupTarget(c)
	if err != nil {
		return err
	}

	users, err := h.followRepository.GetFollowing(target.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return h.renderMiniProfiles(c, users)
}

func (h *FollowHandler) lookupTarget(c echo.Context) (*models.User, error) {
	target, err := h.userRepository.GetUserByUsername(c.Param("username"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "Utilisateur introuvable.")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return target, nil
}

func (h *FollowHandler) renderMiniProfiles(c echo.Context, users []models.User) error {
	ids := make([]uint, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	profiles, err := h.profileRepository.GetProfilesByUserIDs(ids)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	results := make([]models.ProfileMini, 0, len(users))
	for _, u := range users {
		p := profiles[u.ID]
		results = append(results, models.ProfileMini{
			Username: u.Username,
			Email:    u.Email,
			PhotoURL: p.PhotoURL,
			Bio:      p.Bio,
		})
	}
	return c.JSON(http.StatusOK, results)
}
