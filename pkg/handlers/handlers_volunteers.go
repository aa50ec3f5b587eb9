package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kindnest/kindnest-api/internal/scheduling"
	"github.com/kindnest/kindnest-api/pkg/apperr"
	"github.com/kindnest/kindnest-api/pkg/availability"
	"github.com/kindnest/kindnest-api/pkg/models"
	"github.com/kindnest/kindnest-api/pkg/notify"
)

type volunteerRequest struct {
	Name         string                 `json:"name"`
	Phone        string                 `json:"phone"`
	Email        *string                `json:"email"`
	Role         string                 `json:"role"`
	Availability *string                `json:"availability"`
	Address      string                 `json:"address"`
	Motivation   string                 `json:"motivation"`
	Status       models.VolunteerStatus `json:"status"`
}

// apply copies set fields onto v and returns a warning when the
// availability text could not be understood.
func (r *volunteerRequest) apply(v *models.Volunteer) (warning string, err error) {
	if r.Name != "" {
		v.Name = strings.TrimSpace(r.Name)
	}
	if r.Phone != "" {
		v.Phone = strings.TrimSpace(r.Phone)
	}
	if r.Email != nil {
		v.Email = models.NormalizeEmail(strings.ToLower(*r.Email))
	}
	if r.Role != "" {
		v.Role = strings.TrimSpace(r.Role)
	}
	if r.Address != "" {
		v.Address = strings.TrimSpace(r.Address)
	}
	if r.Motivation != "" {
		v.Motivation = strings.TrimSpace(r.Motivation)
	}
	if r.Status != "" {
		switch r.Status {
		case models.VolunteerPending, models.VolunteerActive, models.VolunteerInactive:
			v.Status = r.Status
		default:
			return "", apperr.Validation("status must be pending, active or inactive")
		}
	}
	if r.Availability != nil {
		if perr := v.SetAvailability(*r.Availability); perr != nil {
			warning = "Availability could not be understood; this volunteer will not be matched to pickups until it is corrected"
		}
	}
	if v.Name == "" || v.Phone == "" || v.Role == "" {
		return "", apperr.Validation("name, phone and role are required")
	}
	return warning, nil
}

func (h *Handler) saveVolunteerError(c *gin.Context, err error) {
	if errors.Is(err, apperr.ErrConflict) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A volunteer with this phone number or email already exists"})
		return
	}
	h.respondError(c, err)
}

func volunteerBody(v *models.Volunteer, warning string) gin.H {
	body := gin.H{"volunteer": v}
	if warning != "" {
		body["warning"] = warning
	}
	return body
}

// RegisterVolunteer handles the public application form. New volunteers
// wait for admin approval.
func (h *Handler) RegisterVolunteer(c *gin.Context) {
	var req volunteerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.Status = ""
	v := &models.Volunteer{Status: models.VolunteerPending}
	warning, err := req.apply(v)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.Store.CreateVolunteer(c.Request.Context(), v); err != nil {
		h.saveVolunteerError(c, err)
		return
	}

	h.log().Info("volunteer registered", "volunteer", v.ID, "availability_valid", v.AvailValid)
	h.Notifier.Send(notify.Notification{
		Event:    notify.EventVolunteerRegistered,
		Audience: notify.AudienceAdmin,
		Data: map[string]string{
			"Name":         v.Name,
			"Phone":        v.Phone,
			"Role":         v.Role,
			"Availability": v.Availability,
		},
	})
	c.JSON(http.StatusCreated, volunteerBody(v, warning))
}

// ValidateAvailability checks availability text the way it will be stored.
func (h *Handler) ValidateAvailability(c *gin.Context) {
	var req struct {
		Availability string `json:"availability"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"valid": false,
			"error": err.Error(),
		})
		return
	}

	a, err := availability.Parse(req.Availability)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{
			"valid": false,
			"error": "Use a form like \"Weekdays 09:00 - 17:00\" or \"Mon, Wed 10:00 - 14:00\"",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":     true,
		"canonical": a.String(),
		"days":      a.Days.DayNames(),
		"start":     availability.MinutesToTime(a.StartMinutes),
		"end":       availability.MinutesToTime(a.EndMinutes),
	})
}

func (h *Handler) ListVolunteers(c *gin.Context) {
	vs, err := h.Store.ListVolunteers(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vs)
}

// EligibleVolunteers filters the roster for ?date=YYYY-MM-DD&time=HH:MM.
func (h *Handler) EligibleVolunteers(c *gin.Context) {
	date, err := scheduling.ParseDate(c.Query("date"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	res, err := h.Schedules.ListEligibleVolunteers(c.Request.Context(), date, c.Query("time"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, eligibleBody(res, h.rosterFallback(c, res)))
}

// CreateVolunteer lets the admin add an already vetted volunteer.
func (h *Handler) CreateVolunteer(c *gin.Context) {
	var req volunteerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	v := &models.Volunteer{Status: models.VolunteerActive}
	warning, err := req.apply(v)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.Store.CreateVolunteer(c.Request.Context(), v); err != nil {
		h.saveVolunteerError(c, err)
		return
	}
	c.JSON(http.StatusCreated, volunteerBody(v, warning))
}

func (h *Handler) UpdateVolunteer(c *gin.Context) {
	var req volunteerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	v, err := h.Store.GetVolunteer(ctx, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	previous := v.Status
	warning, err := req.apply(v)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.Store.SaveVolunteer(ctx, v); err != nil {
		h.saveVolunteerError(c, err)
		return
	}
	if previous == models.VolunteerPending && v.Status == models.VolunteerActive {
		h.notifyApproved(v)
	}
	c.JSON(http.StatusOK, volunteerBody(v, warning))
}

func (h *Handler) notifyApproved(v *models.Volunteer) {
	h.log().Info("volunteer approved", "volunteer", v.ID)
	to := ""
	if v.Email != nil {
		to = *v.Email
	}
	h.Notifier.Send(notify.Notification{
		Event:    notify.EventVolunteerApproved,
		Audience: notify.AudienceVolunteer,
		To:       to,
		Data:     map[string]string{"Name": v.Name},
	})
}

func (h *Handler) DeleteVolunteer(c *gin.Context) {
	if err := h.Store.DeleteVolunteer(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Volunteer removed"})
}
