package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// SweepStaleSchedules closes old pending schedules. Callers authenticate
// with a service key; ?age= overrides the configured age.
func (h *Handler) SweepStaleSchedules(defaultAge time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		age := defaultAge
		if q := c.Query("age"); q != "" {
			d, err := time.ParseDuration(q)
			if err != nil || d <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "age must be a positive duration such as 168h"})
				return
			}
			age = d
		}

		n, err := h.Schedules.SweepStale(c.Request.Context(), age)
		if err != nil {
			h.respondError(c, err)
			return
		}
		h.log().Info("sweep requested", "service", c.GetString(ctxService), "updated", n)
		c.JSON(http.StatusOK, gin.H{"updated": n, "age": age.String()})
	}
}

// Health reports liveness and database reachability.
func (h *Handler) Health(c *gin.Context) {
	sqlDB, err := h.Store.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
