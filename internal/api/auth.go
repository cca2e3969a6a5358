package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"accum-core/pkg/store"
)

const (
	userContextKey = "UserID"
	tokenLifetime  = 72 * time.Hour
)

// UserClaims is the JWT payload for an authenticated user.
type UserClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

func issueToken(userID, secret string, expiresAt time.Time) (string, error) {
	claims := UserClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func verifyToken(raw, secret string) (string, error) {
	token, err := jwt.ParseWithClaims(raw, &UserClaims{}, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token claims")
	}
	return claims.UserID, nil
}

// AuthMiddleware rejects requests without a valid Bearer token and stores the
// user id on the context for handlers.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apiError("MISSING_TOKEN", "missing or malformed Authorization header"))
			return
		}
		userID, err := verifyToken(raw, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apiError("INVALID_TOKEN", "invalid or expired token"))
			return
		}
		c.Set(userContextKey, userID)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

// CurrentUserID returns the authenticated user id, or "" on public routes.
func CurrentUserID(c *gin.Context) string {
	return c.GetString(userContextKey)
}

func apiError(code, msg string) gin.H {
	return gin.H{"code": code, "error": msg}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func bindCredentials(c *gin.Context) (credentials, error) {
	var creds credentials
	if err := c.BindJSON(&creds); err != nil {
		return creds, fmt.Errorf("invalid request payload")
	}
	creds.Email = strings.TrimSpace(creds.Email)
	if creds.Email == "" || creds.Password == "" {
		return creds, fmt.Errorf("email and password are required")
	}
	return creds, nil
}

func (s *Server) registerUser(c *gin.Context) {
	creds, err := bindCredentials(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, apiError("INVALID_PAYLOAD", err.Error()))
		return
	}
	if _, err := mail.ParseAddress(creds.Email); err != nil {
		c.JSON(http.StatusBadRequest, apiError("INVALID_EMAIL", "invalid email format"))
		return
	}

	ctx := c.Request.Context()
	existing, err := s.Store.UserByEmail(ctx, creds.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apiError("INTERNAL_ERROR", err.Error()))
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, apiError("EMAIL_ALREADY_REGISTERED", "email already registered"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apiError("INTERNAL_ERROR", "failed to hash password"))
		return
	}

	now := time.Now()
	user := store.User{
		ID:           uuid.NewString(),
		Email:        creds.Email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.CreateUser(ctx, user); err != nil {
		c.JSON(http.StatusInternalServerError, apiError("INTERNAL_ERROR", err.Error()))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user_id": user.ID})
}

func (s *Server) loginUser(c *gin.Context) {
	creds, err := bindCredentials(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, apiError("INVALID_PAYLOAD", err.Error()))
		return
	}

	user, err := s.Store.UserByEmail(c.Request.Context(), creds.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apiError("INTERNAL_ERROR", err.Error()))
		return
	}
	// Same response for unknown email and bad password.
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)) != nil {
		c.JSON(http.StatusUnauthorized, apiError("INVALID_CREDENTIALS", "invalid credentials"))
		return
	}

	expiresAt := time.Now().Add(tokenLifetime)
	token, err := issueToken(user.ID, s.JWTSecret, expiresAt)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apiError("INTERNAL_ERROR", "failed to generate token"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
		"user_id":    user.ID,
		"user_email": user.Email,
	})
}
