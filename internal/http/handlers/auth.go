package handlers

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/pawmart/internal/auth"
	"github.com/hongminglow/pawmart/internal/http/respond"
	"github.com/hongminglow/pawmart/internal/middleware"
	"github.com/hongminglow/pawmart/internal/models"
	"github.com/hongminglow/pawmart/internal/models/dto"
	"github.com/hongminglow/pawmart/internal/storage"
)

// AuthHandler owns register/login endpoints backed by Postgres.
type AuthHandler struct {
	store  storage.UserStore
	tokens *auth.TokenManager
	logger *zap.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(store storage.UserStore, tokens *auth.TokenManager, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{store: store, tokens: tokens, logger: logger}
}

// Register attaches auth routes. private must already require a bearer token.
func (h *AuthHandler) Register(public, private chi.Router) {
	public.Post("/api/auth/register", h.handleRegister)
	public.Post("/api/auth/login", h.handleLogin)
	private.Get("/api/auth/me", h.handleMe)
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	if err := validateCredentials(req.Email, req.Password); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user := models.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Phone:        strings.TrimSpace(req.Phone),
		Role:         models.RoleCustomer,
		Active:       true,
		PasswordHash: passwordHash,
	}
	created, err := h.store.CreateUser(r.Context(), user)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrAlreadyExists):
			respond.Error(w, http.StatusConflict, "user already exists")
		default:
			h.logger.Error("create user", zap.Error(err))
			respond.Error(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	respond.JSON(w, http.StatusCreated, "User created successfully", created)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || strings.TrimSpace(req.Password) == "" {
		respond.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}
	user, err := h.store.FindUserByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Error("login: fetch user", zap.String("email", email), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "failed to fetch user")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		respond.Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !user.Active {
		respond.Error(w, http.StatusForbidden, "account disabled")
		return
	}
	token, err := h.tokens.Generate(user)
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	respond.JSON(w, http.StatusOK, "login successful", dto.LoginResponse{Token: token, User: &user})
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())
	respond.JSON(w, http.StatusOK, "ok", user)
}

func validateCredentials(email, password string) error {
	if _, err := mail.ParseAddress(strings.TrimSpace(email)); err != nil {
		return errors.New("a valid email is required")
	}
	if len(strings.TrimSpace(password)) < 8 || !utf8.ValidString(password) {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
