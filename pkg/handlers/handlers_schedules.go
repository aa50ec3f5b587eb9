package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kindnest/kindnest-api/pkg/database"
	"github.com/kindnest/kindnest-api/pkg/models"
	"github.com/kindnest/kindnest-api/pkg/scheduler"
)

// donorSchedule is the donor's view of a schedule, which includes the code
// they hand to the volunteer.
type donorSchedule struct {
	models.Schedule
	OTP string `json:"otp,omitempty"`
}

func (h *Handler) ListSchedules(c *gin.Context) {
	f := database.ScheduleFilter{Status: models.ScheduleStatus(c.Query("status"))}
	out, err := h.Schedules.ListSchedules(c.Request.Context(), f)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) MySchedules(c *gin.Context) {
	out, err := h.Schedules.ListSchedules(c.Request.Context(), database.ScheduleFilter{DonorID: c.GetString(ctxSubject)})
	if err != nil {
		h.respondError(c, err)
		return
	}
	views := make([]donorSchedule, 0, len(out))
	for _, s := range out {
		v := donorSchedule{Schedule: s}
		if s.OTP != nil && !s.OTPVerified {
			v.OTP = *s.OTP
		}
		views = append(views, v)
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) AssignedSchedules(c *gin.Context) {
	out, err := h.Schedules.ListSchedules(c.Request.Context(), database.ScheduleFilter{VolunteerID: c.GetString(ctxSubject)})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// eligibleBody renders a filter result. When nobody matched and roster is
// given, the full roster is returned so the admin can still choose.
func eligibleBody(res *scheduler.Result, roster []models.Volunteer) gin.H {
	body := gin.H{
		"date":      res.Date,
		"time":      res.Time,
		"day":       res.Day,
		"eligible":  res.Eligible,
		"available": !res.Empty(),
	}
	if res.Empty() {
		body["message"] = "No volunteers available at this time"
		body["reasons"] = res.Reasons()
		if roster != nil {
			body["roster"] = roster
		}
	}
	return body
}

func (h *Handler) rosterFallback(c *gin.Context, res *scheduler.Result) []models.Volunteer {
	if !res.Empty() {
		return nil
	}
	roster, err := h.Store.FindActive(c.Request.Context())
	if err != nil {
		h.log().Warn("load roster fallback", "error", err)
		return nil
	}
	return roster
}

func (h *Handler) EligibleForSchedule(c *gin.Context) {
	res, err := h.Schedules.EligibleForSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, eligibleBody(res, h.rosterFallback(c, res)))
}

type assignRequest struct {
	VolunteerID string `json:"volunteerId" binding:"required"`
}

func (h *Handler) AssignVolunteer(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sc, err := h.Schedules.AssignVolunteer(c.Request.Context(), c.Param("id"), req.VolunteerID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sc)
}

func (h *Handler) ReassignVolunteer(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sc, err := h.Schedules.ReassignVolunteer(c.Request.Context(), c.Param("id"), req.VolunteerID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sc)
}

func (h *Handler) UpdateScheduleStatus(c *gin.Context) {
	var req struct {
		Status models.ScheduleStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sc, err := h.Schedules.UpdateScheduleStatus(c.Request.Context(), c.Param("id"), req.Status, actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sc)
}

func (h *Handler) VerifyOTP(c *gin.Context) {
	var req struct {
		OTP string `json:"otp" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ok, err := h.Schedules.VerifyOTPAs(c.Request.Context(), c.Param("id"), req.OTP, actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": ok})
}
