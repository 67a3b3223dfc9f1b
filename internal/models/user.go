package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

type User struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	Email            string    `json:"email" gorm:"uniqueIndex"`
	Username         string    `json:"nom_utilisateur" gorm:"uniqueIndex;column:nom_utilisateur"`
	Password         string    `json:"-"` // bcrypt hash, never serialized
	IsActive         bool      `json:"-" gorm:"default:false"`
	IsStaff          bool      `json:"-" gorm:"default:false"`
	ConfirmationCode *string   `json:"-"` // 6-digit code, nulled after activation
	CreatedAt        time.Time `json:"created_at"`
}

type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Username  string `json:"nom_utilisateur" validate:"required,min=2,max=150"`
	Password  string `json:"password" validate:"required,min=8"`
	Password2 string `json:"password2" validate:"required"`
}

type LoginRequest struct {
	Username string `json:"nom_utilisateur" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ConfirmEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6"`
}

// UserCompact is the minimal public projection used by search and
// participant/viewer lists.
type UserCompact struct {
	ID       uint   `json:"id"`
	Username string `json:"nom_utilisateur"`
	Email    string `json:"email"`
	PhotoURL string `json:"photo_url"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"nom_utilisateur"`
	jwt.RegisteredClaims
}
