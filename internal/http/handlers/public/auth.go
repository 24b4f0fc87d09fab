package public

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/lumen-shop/internal/http/response"
	"github.com/lumen-shop/internal/service"
)

// RegisterRequest 注册请求
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Phone    string `json:"phone"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register 用户注册
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid register request", nil)
		return
	}
	user, err := h.UserService.Register(service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			respondError(c, response.CodeBadRequest, err.Error(), nil)
		case errors.Is(err, service.ErrEmailTaken):
			respondError(c, response.CodeConflict, "email already registered", nil)
		default:
			respondError(c, response.CodeInternal, "register failed", err)
		}
		return
	}
	response.Success(c, gin.H{
		"user_id": user.ID,
		"email":   user.Email,
	})
}

// Login 用户登录
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid login request", nil)
		return
	}
	user, err := h.UserService.Authenticate(req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			respondError(c, response.CodeUnauthorized, "invalid email or password", nil)
		case errors.Is(err, service.ErrUserLocked):
			respondError(c, response.CodeForbidden, "user is locked", nil)
		default:
			respondError(c, response.CodeInternal, "login failed", err)
		}
		return
	}
	token, expiresAt, err := h.UserService.IssueToken(user)
	if err != nil {
		respondError(c, response.CodeInternal, "login failed", err)
		return
	}
	response.Success(c, gin.H{
		"token":      token,
		"expires_at": expiresAt.Unix(),
		"user_id":    user.ID,
		"email":      user.Email,
	})
}
