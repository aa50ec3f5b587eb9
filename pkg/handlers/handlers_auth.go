package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kindnest/kindnest-api/pkg/apperr"
	"github.com/kindnest/kindnest-api/pkg/auth"
	"github.com/kindnest/kindnest-api/pkg/models"
)

type registerRequest struct {
	Name      string `json:"name" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=6"`
	Role      string `json:"role"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	AdminCode string `json:"adminCode"`
}

func (h *Handler) issueToken(c *gin.Context, subject, role, name string, body gin.H) {
	token, err := h.Auth.CreateToken(subject, role, name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	body["access_token"] = token
	body["token_type"] = "bearer"
	c.JSON(http.StatusOK, body)
}

// Register creates a donor account, or an admin account when the admin
// secret code is supplied.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	role := models.RoleDonor
	if req.Role == models.RoleAdmin {
		if h.AdminSecretCode == "" || subtle.ConstantTimeCompare([]byte(req.AdminCode), []byte(h.AdminSecretCode)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid admin secret code"})
			return
		}
		role = models.RoleAdmin
	} else if req.Role != "" && req.Role != models.RoleDonor {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be donor or admin"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	u := &models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		Role:         role,
		Phone:        strings.TrimSpace(req.Phone),
		Address:      strings.TrimSpace(req.Address),
	}
	if err := h.Store.CreateUser(c.Request.Context(), u); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "User already exists"})
			return
		}
		h.respondError(c, err)
		return
	}

	h.log().Info("user registered", "user", u.ID, "role", u.Role)
	h.issueToken(c, u.ID, u.Role, u.Name, gin.H{"user": u})
}

// Login handles donor and admin login
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	u, err := h.Store.FindUserByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		h.respondError(c, err)
		return
	}
	if !auth.CheckPasswordHash(req.Password, u.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	h.issueToken(c, u.ID, u.Role, u.Name, gin.H{"user": u})
}

// VolunteerLogin signs in an approved volunteer by phone number.
func (h *Handler) VolunteerLogin(c *gin.Context) {
	var req struct {
		Phone string `json:"phone" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	v, err := h.Store.FindVolunteerByPhone(c.Request.Context(), strings.TrimSpace(req.Phone))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Volunteer not found"})
			return
		}
		h.respondError(c, err)
		return
	}
	if v.Status != models.VolunteerActive {
		c.JSON(http.StatusForbidden, gin.H{"error": "Your volunteer application has not been approved yet"})
		return
	}

	h.issueToken(c, v.ID, models.RoleVolunteer, v.Name, gin.H{"volunteer": v})
}

// Me returns the profile behind the current token.
func (h *Handler) Me(c *gin.Context) {
	ctx := c.Request.Context()
	a := actor(c)
	if a.Role == models.RoleVolunteer {
		v, err := h.Store.GetVolunteer(ctx, a.ID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"role": a.Role, "volunteer": v})
		return
	}
	u, err := h.Store.GetUser(ctx, a.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": u.Role, "user": u})
}
