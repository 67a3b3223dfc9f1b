package handlers

import (
	"crypto/rand"
	"errors"
	"math/big"
	"net/http"
	"time"

	"github.com/fampita/backend/internal/email"
	"github.com/fampita/backend/internal/models"
	"github.com/fampita/backend/internal/repositories"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthHandler handles registration, activation and login
type AuthHandler struct {
	userRepository    repositories.UserRepository
	profileRepository repositories.ProfileRepository
	emailSender       email.Sender
	jwtSecret         string
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(userRepo repositories.UserRepository, profileRepo repositories.ProfileRepository, sender email.Sender, jwtSecret string) *AuthHandler {
	return &AuthHandler{
		userRepository:    userRepo,
		profileRepository: profileRepo,
		emailSender:       sender,
		jwtSecret:         jwtSecret,
	}
}

// RegisterAuthRoutes registers the unauthenticated routes
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.POST("/confirm-email", h.ConfirmEmail)
}

// Register creates an inactive account, emails a confirmation code and
// returns a token. The token only becomes useful after activation: the
// auth middleware rejects inactive accounts.
func (h *AuthHandler) Register(c echo.Context) error {
	var req models.RegisterRequest

	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if req.Password != req.Password2 {
		return echo.NewHTTPError(http.StatusBadRequest, "Les mots de passe ne correspondent pas.")
	}

	if _, err := h.userRepository.GetUserByEmail(req.Email); err == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Cet email est déjà utilisé.")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if _, err := h.userRepository.GetUserByUsername(req.Username); err == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Ce nom d'utilisateur est déjà pris.")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to hash password")
	}

	code, err := generateConfirmationCode()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate confirmation code")
	}

	user := &models.User{
		Email:            req.Email,
		Username:         req.Username,
		Password:         string(hashedPassword),
		IsActive:         false,
		ConfirmationCode: &code,
	}
	if err := h.userRepository.CreateUser(user); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if _, err := h.profileRepository.GetOrCreateByUserID(user.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if err := h.emailSender.SendConfirmationEmail(user.Email, code); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to send confirmation email")
	}

	token, err := h.generateJWT(user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"message":         "Inscription réussie. Un code de confirmation a été envoyé à votre email.",
		"email":           user.Email,
		"nom_utilisateur": user.Username,
		"token":           token,
	})
}

// ConfirmEmail activates the account when the 6-digit code matches.
// Confirming an already-active account is idempotent.
func (h *AuthHandler) ConfirmEmail(c echo.Context) error {
	var req models.ConfirmEmailRequest

	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Email et code sont requis.")
	}

	user, err := h.userRepository.GetUserByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Utilisateur introuvable.")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if user.IsActive {
		return c.JSON(http.StatusOK, echo.Map{"message": "Compte déjà activé."})
	}

	if user.ConfirmationCode == nil || *user.ConfirmationCode != req.Code {
		return echo.NewHTTPError(http.StatusBadRequest, "Code incorrect.")
	}

	user.IsActive = true
	user.ConfirmationCode = nil
	if err := h.userRepository.UpdateUser(user); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	token, err := h.generateJWT(user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Email confirmé avec succès.",
		"token":   token,
		"user": echo.Map{
			"email":           user.Email,
			"nom_utilisateur": user.Username,
		},
	})
}

// Login authenticates with username and password. Accounts that have
// not confirmed their email cannot obtain a session.
func (h *AuthHandler) Login(c echo.Context) error {
	var req models.LoginRequest

	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.userRepository.GetUserByUsername(req.Username)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Nom d'utilisateur ou mot de passe incorrect.")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Nom d'utilisateur ou mot de passe incorrect.")
	}

	if !user.IsActive {
		return echo.NewHTTPError(http.StatusForbidden, "Compte non activé.")
	}

	token, err := h.generateJWT(user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}

	return c.JSON(http.StatusOK, echo.Map{"token": token})
}

// generateJWT generates a JWT token for a given user
func (h *AuthHandler) generateJWT(user *models.User) (string, error) {
	claims := &models.JwtCustomClaims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 72)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.jwtSecret))
}

// generateConfirmationCode produces a random 6-digit numeric code.
func generateConfirmationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	code := n.String()
	for len(code) < 6 {
		code = "0" + code
	}
	return code, nil
}
