package handlers

import (
	"net/http"

	"speakapp/internal/middleware"
	"speakapp/internal/observability"
	"speakapp/internal/services"
	contextutils "speakapp/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// AuthHandler serves signup, login, and session endpoints.
type AuthHandler struct {
	users  services.UserServicer
	logger *observability.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users services.UserServicer, logger *observability.Logger) *AuthHandler {
	return &AuthHandler{users: users, logger: logger}
}

type signupRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Signup handles POST /v1/auth/signup.
func (h *AuthHandler) Signup(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "Signup")
	var err error
	defer observability.FinishSpan(span, &err)

	var req signupRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		err = bindErr
		StandardizeHTTPError(c, http.StatusBadRequest, "Invalid signup request", bindErr.Error())
		return
	}

	user, err := h.users.CreateUserWithPassword(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		if contextutils.IsError(err, contextutils.ErrRecordExists) {
			StandardizeHTTPError(c, http.StatusConflict, "Username already taken", "")
			return
		}
		h.logger.Error(ctx, "Signup failed", err, map[string]interface{}{"username": req.Username})
		HandleAppError(c, err)
		return
	}

	if err = h.startSession(c, user.ID, user.Username); err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// Login handles POST /v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "Login")
	var err error
	defer observability.FinishSpan(span, &err)

	var req loginRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		err = bindErr
		StandardizeHTTPError(c, http.StatusBadRequest, "Invalid login request", bindErr.Error())
		return
	}

	user, err := h.users.AuthenticateUser(ctx, req.Username, req.Password)
	if err != nil {
		if contextutils.IsError(err, contextutils.ErrInvalidCredentials) {
			StandardizeHTTPError(c, http.StatusUnauthorized, "Invalid username or password", "")
			return
		}
		h.logger.Error(ctx, "Login failed", err, map[string]interface{}{"username": req.Username})
		HandleAppError(c, err)
		return
	}

	if err = h.startSession(c, user.ID, user.Username); err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Logout handles POST /v1/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{MaxAge: -1, Path: "/"})
	if err := session.Save(); err != nil {
		h.logger.Warn(c.Request.Context(), "Failed to clear session", map[string]interface{}{
			"error": err.Error(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Status handles GET /v1/auth/status. Always 200; the authenticated flag
// tells the client whether a session exists.
func (h *AuthHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}

	user, err := h.users.GetUserByID(ctx, userID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"authenticated": true, "user": user})
}

// startSession writes the authenticated user into the cookie session.
func (h *AuthHandler) startSession(c *gin.Context, userID int, username string) error {
	session := sessions.Default(c)
	session.Set(middleware.UserIDKey, userID)
	session.Set(middleware.UsernameKey, username)
	if err := session.Save(); err != nil {
		return contextutils.WrapError(err, "failed to save session")
	}
	return nil
}
