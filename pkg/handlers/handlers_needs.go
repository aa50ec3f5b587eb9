package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kindnest/kindnest-api/pkg/models"
)

type needRequest struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Goal        int               `json:"goal"`
	Urgent      *bool             `json:"urgent"`
	NGO         string            `json:"ngo"`
	Status      models.NeedStatus `json:"status"`
}

func (r *needRequest) apply(n *models.Need) string {
	if r.Title != "" {
		n.Title = strings.TrimSpace(r.Title)
	}
	if r.Description != "" {
		n.Description = strings.TrimSpace(r.Description)
	}
	if r.Category != "" {
		n.Category = r.Category
	}
	if r.Goal != 0 {
		n.Goal = r.Goal
	}
	if r.Urgent != nil {
		n.Urgent = *r.Urgent
	}
	if r.NGO != "" {
		n.NGO = strings.TrimSpace(r.NGO)
	}
	if r.Status != "" {
		n.Status = r.Status
	}

	switch {
	case n.Title == "" || n.Description == "":
		return "title and description are required"
	case !models.ValidCategory(n.Category):
		return "category must be one of clothes, food, toys, other"
	case n.Goal <= 0:
		return "goal must be greater than zero"
	case n.Goal < n.Current:
		return "goal cannot be lower than the amount already donated"
	}
	switch n.Status {
	case models.NeedActive, models.NeedCompleted, models.NeedPaused:
	default:
		return "status must be active, completed or paused"
	}
	return ""
}

// ListNeeds returns active needs; admins may pass ?status=all.
func (h *Handler) ListNeeds(c *gin.Context) {
	status := models.NeedActive
	if q := c.Query("status"); q != "" {
		status = models.NeedStatus(q)
		if q == "all" {
			status = ""
		}
	}
	needs, err := h.Store.ListNeeds(c.Request.Context(), status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, needs)
}

func (h *Handler) GetNeed(c *gin.Context) {
	n, err := h.Store.GetNeed(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *Handler) CreateNeed(c *gin.Context) {
	var req needRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	n := &models.Need{Status: models.NeedActive}
	if msg := req.apply(n); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	if err := h.Store.CreateNeed(c.Request.Context(), n); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (h *Handler) UpdateNeed(c *gin.Context) {
	var req needRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	n, err := h.Store.GetNeed(ctx, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if msg := req.apply(n); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	if err := h.Store.SaveNeed(ctx, n); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *Handler) DeleteNeed(c *gin.Context) {
	if err := h.Store.DeleteNeed(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Need deleted"})
}
