package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kindnest/kindnest-api/internal/donations"
)

// CreateDonation records a pledge from the calling donor.
func (h *Handler) CreateDonation(c *gin.Context) {
	var in donations.CreateDonationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	in.DonorID = c.GetString(ctxSubject)

	d, sc, err := h.Donations.CreateDonation(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	body := gin.H{"donation": d}
	if sc != nil {
		body["schedule"] = sc
	}
	c.JSON(http.StatusCreated, body)
}

func (h *Handler) MyDonations(c *gin.Context) {
	ds, err := h.Donations.ListDonations(c.Request.Context(), c.GetString(ctxSubject))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ds)
}

func (h *Handler) ListDonations(c *gin.Context) {
	ds, err := h.Donations.ListDonations(c.Request.Context(), "")
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ds)
}

// UpdateDonationStatus applies an admin decision to a donation.
func (h *Handler) UpdateDonationStatus(c *gin.Context) {
	var in donations.UpdateDonationStatusInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	in.DonationID = c.Param("id")

	res, err := h.Donations.UpdateDonationStatus(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	body := gin.H{
		"message":          "Donation " + string(res.Donation.Status),
		"donation":         res.Donation,
		"inventoryUpdated": res.InventoryUpdated,
	}
	if res.Schedule != nil {
		body["schedule"] = res.Schedule
	}
	if res.Inventory != nil {
		body["inventory"] = res.Inventory
	}
	if res.Eligible != nil {
		body["eligibleVolunteers"] = eligibleBody(res.Eligible, nil)
	}
	c.JSON(http.StatusOK, body)
}
