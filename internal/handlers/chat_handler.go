package handlers

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fampita/backend/internal/models"
	"github.com/fampita/backend/internal/repositories"
	"github.com/fampita/backend/pkg/storage"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"
)

// ChatHandler handles conversation and message HTTP requests
type ChatHandler struct {
	conversationRepository repositories.ConversationRepository
	userRepository         repositories.UserRepository
	profileRepository      repositories.ProfileRepository
	bucket                 storage.Bucket
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(convRepo repositories.ConversationRepository, userRepo repositories.UserRepository, profileRepo repositories.ProfileRepository, bucket storage.Bucket) *ChatHandler {
	return &ChatHandler{
		conversationRepository: convRepo,
		userRepository:         userRepo,
		profileRepository:      profileRepo,
		bucket:                 bucket,
	}
}

// RegisterChatRoutes registers chat-related routes
func (h *ChatHandler) RegisterChatRoutes(g *echo.Group) {
	g.GET("/conversations", h.ListConversations)
	g.POST("/conversations", h.CreateConversation)
	g.POST("/conversations/:id/send_message", h.SendMessage)
	g.POST("/conversations/:id/messages/:message_id/react", h.ReactToMessage)
	g.POST("/send_message_to_user", h.SendMessageToUser)
	g.GET("/conversations/search-user", h.SearchUser)
}

// ChatParticipant is the user projection nested in conversations.
type ChatParticipant struct {
	ID       uint               `json:"id"`
	Username string             `json:"nom_utilisateur"`
	Profile  models.ProfileMini `json:"profile"`
}

// MessageResponse is a message with its sender resolved.
type MessageResponse struct {
	ID        string            `json:"id"`
	Sender    ChatParticipant   `json:"sender"`
	Text      string            `json:"text,omitempty"`
	ImageURL  string            `json:"image_url,omitempty"`
	Reactions map[string][]uint `json:"reactions"`
	CreatedAt time.Time         `json:"created_at"`
}

// ConversationResponse is a conversation with nested participants and
// messages.
type ConversationResponse struct {
	ID           string            `json:"id"`
	Participants []ChatParticipant `json:"participants"`
	Messages     []MessageResponse `json:"messages"`
	CreatedAt    time.Time         `json:"created_at"`
}

// ListConversations returns the caller's conversations, most recent
// first, with nested participant and message collections.
func (h *ChatHandler) ListConversations(c echo.Context) error {
	user := currentUser(c)

	conversations, err := h.conversationRepository.ListForUser(c.Request().Context(), user.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	// One participant map for the whole page
	idSet := map[uint]struct{}{}
	for _, conv := range conversations {
		for _, id := range conv.ParticipantIDs {
			idSet[id] = struct{}{}
		}
	}
	participants, err := h.loadParticipants(idSet)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	results := make([]ConversationResponse, 0, len(conversations))
	for i := range conversations {
		results = append(results, h.renderConversation(&conversations[i], participants))
	}
	return c.JSON(http.StatusOK, results)
}

// CreateConversation finds or creates the conversation between the
// caller and the recipient.
func (h *ChatHandler) CreateConversation(c echo.Context) error {
	var req models.CreateConversationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	conv, err := h.findOrCreateWith(c, req.RecipientID)
	if err != nil {
		return err
	}
	return h.renderSingle(c, http.StatusCreated, conv)
}

// SendMessage appends a message to a conversation the caller belongs
// to. An uploaded image file is stored in the bucket first; a
// pre-hosted image_url is accepted as-is.
func (h *ChatHandler) SendMessage(c echo.Context) error {
	user := currentUser(c)

	conv, err := h.conversationRepository.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return echo.NewHTTPError(http.StatusNotFound, "Conversation introuvable.")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !conv.HasParticipant(user.ID) {
		return echo.NewHTTPError(http.StatusForbidden, "Non autorisé")
	}

	var req models.SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	imageURL := req.ImageURL
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

		key := storage.ObjectKey("chat", user.ID, fileHeader.Filename)
		imageURL, err = h.bucket.Upload(c.Request().Context(), key, content, storage.ContentTypeForFile(fileHeader.Filename))
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "Image upload failed: "+err.Error())
		}
	}

	text := strings.TrimSpace(req.Text)
	if text == "" && imageURL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Message vide")
	}

	message := &models.Message{
		SenderID: user.ID,
		Text:     text,
		ImageURL: imageURL,
	}
	if err := h.conversationRepository.AppendMessage(c.Request().Context(), conv.ID.Hex(), message); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	participants, err := h.loadParticipants(map[uint]struct{}{user.ID: {}})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, renderMessage(message, participants))
}

// SendMessageToUser finds or creates the conversation with the
// recipient, then appends the message. Repeat calls reuse the same
// conversation.
func (h *ChatHandler) SendMessageToUser(c echo.Context) error {
	user := currentUser(c)

	var req models.SendMessageToUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	text := strings.TrimSpace(req.Text)
	if text == "" && req.ImageURL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Message vide")
	}

	conv, err := h.findOrCreateWith(c, req.RecipientID)
	if err != nil {
		return err
	}

	message := &models.Message{
		SenderID: user.ID,
		Text:     text,
		ImageURL: req.ImageURL,
	}
	if err := h.conversationRepository.AppendMessage(c.Request().Context(), conv.ID.Hex(), message); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	conv, err = h.conversationRepository.GetByID(c.Request().Context(), conv.ID.Hex())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return h.renderSingle(c, http.StatusCreated, conv)
}

// ReactToMessage toggles the caller's reaction on a message.
func (h *ChatHandler) ReactToMessage(c echo.Context) error {
	user := currentUser(c)

	var req models.ReactToMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	conv, err := h.conversationRepository.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return echo.NewHTTPError(http.StatusNotFound, "Conversation introuvable.")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !conv.HasParticipant(user.ID) {
		return echo.NewHTTPError(http.StatusForbidden, "Non autorisé")
	}

	message, err := h.conversationRepository.ToggleReaction(
		c.Request().Context(), conv.ID.Hex(), c.Param("message_id"), req.Emoji, user.ID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return echo.NewHTTPError(http.StatusNotFound, "Message introuvable.")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	participants, err := h.loadParticipants(map[uint]struct{}{message.SenderID: {}})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, renderMessage(message, participants))
}

// SearchUser is the chat-scoped user search; same contract as the
// profile search.
func (h *ChatHandler) SearchUser(c echo.Context) error {
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

func (h *ChatHandler) findOrCreateWith(c echo.Context, recipientID uint) (*models.Conversation, error) {
	user := currentUser(c)

	if recipientID == user.ID {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Impossible de converser avec soi-même.")
	}
	if _, err := h.userRepository.GetUserByID(recipientID); err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "Utilisateur introuvable.")
	}

	conv, err := h.conversationRepository.FindOrCreate(c.Request().Context(), user.ID, recipientID)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return conv, nil
}

func (h *ChatHandler) renderSingle(c echo.Context, status int, conv *models.Conversation) error {
	idSet := map[uint]struct{}{}
	for _, id := range conv.ParticipantIDs {
		idSet[id] = struct{}{}
	}
	participants, err := h.loadParticipants(idSet)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(status, h.renderConversation(conv, participants))
}

// loadParticipants joins users and their profiles from Postgres, the
// cross-store lookup every chat response needs.
func (h *ChatHandler) loadParticipants(idSet map[uint]struct{}) (map[uint]ChatParticipant, error) {
	ids := make([]uint, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	users, err := h.userRepository.GetUsersByIDs(ids)
	if err != nil {
		return nil, err
	}
	profiles, err := h.profileRepository.GetProfilesByUserIDs(ids)
	if err != nil {
		return nil, err
	}

	result := make(map[uint]ChatParticipant, len(users))
	for _, u := range users {
		p := profiles[u.ID]
		result[u.ID] = ChatParticipant{
			ID:       u.ID,
			Username: u.Username,
			Profile: models.ProfileMini{
				Username: u.Username,
				Email:    u.Email,
				PhotoURL: p.PhotoURL,
				Bio:      p.Bio,
			},
		}
	}
	return result, nil
}

func (h *ChatHandler) renderConversation(conv *models.Conversation, participants map[uint]ChatParticipant) ConversationResponse {
	resp := ConversationResponse{
		ID:           conv.ID.Hex(),
		Participants: make([]ChatParticipant, 0, len(conv.ParticipantIDs)),
		Messages:     make([]MessageResponse, 0, len(conv.Messages)),
		CreatedAt:    conv.CreatedAt,
	}
	for _, id := range conv.ParticipantIDs {
		if p, ok := participants[id]; ok {
			resp.Participants = append(resp.Participants, p)
		}
	}
	for i := range conv.Messages {
		resp.Messages = append(resp.Messages, renderMessage(&conv.Messages[i], participants))
	}
	return resp
}

func renderMessage(m *models.Message, participants map[uint]ChatParticipant) MessageResponse {
	reactions := m.Reactions
	if reactions == nil {
		reactions = map[string][]uint{}
	}
	return MessageResponse{
		ID:        m.ID.Hex(),
		Sender:    participants[m.SenderID],
		Text:      m.Text,
		ImageURL:  m.ImageURL,
		Reactions: reactions,
		CreatedAt: m.CreatedAt,
	}
}
