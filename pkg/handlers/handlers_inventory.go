package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kindnest/kindnest-api/pkg/models"
)

type inventoryRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Quantity *int   `json:"quantity"`
	Location string `json:"location"`
}

func (r *inventoryRequest) apply(it *models.InventoryItem) string {
	if r.Name != "" {
		it.Name = strings.TrimSpace(r.Name)
	}
	if r.Category != "" {
		it.Category = r.Category
	}
	if r.Quantity != nil {
		it.Quantity = *r.Quantity
	}
	if r.Location != "" {
		it.Location = strings.TrimSpace(r.Location)
	}
	switch {
	case it.Name == "" || it.Location == "":
		return "name and location are required"
	case !models.ValidCategory(it.Category):
		return "category must be one of clothes, food, toys, other"
	case it.Quantity < 0:
		return "quantity cannot be negative"
	}
	return ""
}

func (h *Handler) ListInventory(c *gin.Context) {
	items, err := h.Store.ListInventory(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) CreateInventoryItem(c *gin.Context) {
	var req inventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	it := &models.InventoryItem{}
	if msg := req.apply(it); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	if err := h.Store.CreateInventoryItem(c.Request.Context(), it); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, it)
}

func (h *Handler) UpdateInventoryItem(c *gin.Context) {
	var req inventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	it, err := h.Store.GetInventoryItem(ctx, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if msg := req.apply(it); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	if err := h.Store.SaveInventoryItem(ctx, it); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

func (h *Handler) DeleteInventoryItem(c *gin.Context) {
	if err := h.Store.DeleteInventoryItem(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item deleted"})
}
