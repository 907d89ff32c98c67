package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/blogsphere/blogapi/internal/api/objects"
	"github.com/blogsphere/blogapi/internal/auth"
	"github.com/blogsphere/blogapi/internal/models"
	"github.com/blogsphere/blogapi/internal/service"
)

// AuthService is the account use cases the handlers call
type AuthService interface {
	Authenticator
	Register(ctx context.Context, in service.RegisterInput) (*service.Session, error)
	Login(ctx context.Context, email, password string) (*service.Session, error)
	VerifyEmail(ctx context.Context, token string) (*models.User, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
	ChangePassword(ctx context.Context, actor service.Actor, current, next string) error
	RefreshToken(ctx context.Context, actor service.Actor) (string, error)
	Logout(ctx context.Context, claims *auth.Claims) error
	Profile(ctx context.Context, actor service.Actor) (*models.User, error)
	UpdateProfile(ctx context.Context, actor service.Actor, in service.ProfileInput) (*models.User, error)
}

type registerRequest struct {
	Username  string `json:"username" binding:"required,min=3,max=30,alphanum"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=6"`
	FirstName string `json:"firstName" binding:"required,max=50"`
	LastName  string `json:"lastName" binding:"required,max=50"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6"`
}

type preferencesRequest struct {
	Theme              *string `json:"theme" binding:"omitempty,oneof=light dark"`
	EmailNotifications *bool   `json:"emailNotifications"`
	PushNotifications  *bool   `json:"pushNotifications"`
}

type socialLinksRequest struct {
	Twitter  string `json:"twitter" binding:"omitempty,url"`
	LinkedIn string `json:"linkedin" binding:"omitempty,url"`
	GitHub   string `json:"github" binding:"omitempty,url"`
	Website  string `json:"website" binding:"omitempty,url"`
}

type updateProfileRequest struct {
	FirstName   *string             `json:"firstName" binding:"omitempty,max=50"`
	LastName    *string             `json:"lastName" binding:"omitempty,max=50"`
	Bio         *string             `json:"bio" binding:"omitempty,max=500"`
	Avatar      *string             `json:"avatar"`
	SocialLinks *socialLinksRequest `json:"socialLinks"`
	Preferences *preferencesRequest `json:"preferences"`
}

func (r updateProfileRequest) input() service.ProfileInput {
	in := service.ProfileInput{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Bio:       r.Bio,
		Avatar:    r.Avatar,
	}
	if l := r.SocialLinks; l != nil {
		in.SocialLinks = &models.SocialLinks{Twitter: l.Twitter, LinkedIn: l.LinkedIn, GitHub: l.GitHub, Website: l.Website}
	}
	if p := r.Preferences; p != nil {
		in.Preferences = &service.PreferencesInput{
			Theme:              p.Theme,
			EmailNotifications: p.EmailNotifications,
			PushNotifications:  p.PushNotifications,
		}
	}
	return in
}

// AuthHandler serves /auth
type AuthHandler struct {
	auth AuthService
}

func NewAuthHandler(a AuthService) *AuthHandler {
	return &AuthHandler{auth: a}
}

// RegisterRoutes mounts the account routes. limit guards the endpoints that
// accept credentials or send mail.
func (h *AuthHandler) RegisterRoutes(g *gin.RouterGroup, required, limit gin.HandlerFunc) {
	a := g.Group("/auth")
	a.POST("/register", limit, h.register)
	a.POST("/login", limit, h.login)
	a.GET("/verify-email", h.verifyEmail)
	a.POST("/forgot-password", limit, h.forgotPassword)
	a.POST("/reset-password", limit, h.resetPassword)
	a.GET("/profile", required, h.profile)
	a.PUT("/profile", required, h.updateProfile)
	a.POST("/change-password", required, h.changePassword)
	a.POST("/refresh-token", required, h.refreshToken)
	a.POST("/logout", required, h.logout)
}

func sessionData(s *service.Session) gin.H {
	return gin.H{"user": objects.NewUser(s.User, true), "token": s.Token}
}

func (h *AuthHandler) register(c *gin.Context) {
	var req registerRequest
	if !bind(c, &req) {
		return
	}
	s, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		abort(c, err)
		return
	}
	respond(c, http.StatusCreated, sessionData(s),
		"User registered successfully. Please check your email to verify your account.")
}

func (h *AuthHandler) login(c *gin.Context) {
	var req loginRequest
	if !bind(c, &req) {
		return
	}
	s, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		abort(c, err)
		return
	}
	respond(c, http.StatusOK, sessionData(s), "Login successful")
}

func (h *AuthHandler) verifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		abort(c, NewError(http.StatusBadRequest, "Verification token is required"))
		return
	}
	user, err := h.auth.VerifyEmail(c.Request.Context(), token)
	if err != nil {
		abort(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"user": objects.NewUser(user, true)}, "Email verified successfully")
}

func (h *AuthHandler) forgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !bind(c, &req) {
		return
	}
	if err := h.auth.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		abort(c, err)
		return
	}
	respond(c, http.StatusOK, nil, "Password reset email sent")
}

func (h *AuthHandler) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bind(c, &req) {
		return
	}
	if err := h.auth.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		abort(c, err)
		return
	}
	respond(c, http.StatusOK, nil, "Password reset successfully")
}

func (h *AuthHandler) profile(c *gin.Context) {
	user, err := h.auth.Profile(c.Request.Context(), currentActor(c))
	if err != nil {
		abort(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"user": objects.NewUser(user, true)}, "")
}

func (h *AuthHandler) updateProfile(c *gin.Context) {
	var req updateProfileRequest
	if !bind(c, &req) {
		return
	}
	user, err := h.auth.UpdateProfile(c.Request.Context(), currentActor(c), req.input())
	if err != nil {
		abort(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"user": objects.NewUser(user, true)}, "Profile updated successfully")
}

func (h *AuthHandler) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bind(c, &req) {
		return
	}
	if err := h.auth.ChangePassword(c.Request.Context(), currentActor(c), req.CurrentPassword, req.NewPassword); err != nil {
		abort(c, err)
		return
	}
	respond(c, http.StatusOK, nil, "Password changed successfully")
}

func (h *AuthHandler) refreshToken(c *gin.Context) {
	token, err := h.auth.RefreshToken(c.Request.Context(), currentActor(c))
	if err != nil {
		abort(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"token": token}, "")
}

func (h *AuthHandler) logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), currentClaims(c)); err != nil {
		abort(c, err)
		return
	}
	respond(c, http.StatusOK, nil, "Logged out successfully")
}
