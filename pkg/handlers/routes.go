package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/kindnest/kindnest-api/pkg/models"
)

type RouterOptions struct {
	CORSOrigins      []string
	StaleScheduleAge time.Duration
	Version          string
}

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "KindNest API",
			"version": opts.Version,
		})
	})
	r.GET("/healthz", h.Health)
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics.Handler()))
	}

	authMW := h.AuthMiddleware()
	admin := RequireRole(models.RoleAdmin)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/volunteer-login", h.VolunteerLogin)
		authGroup.GET("/me", authMW, h.Me)
	}

	needs := api.Group("/needs")
	{
		needs.GET("", h.ListNeeds)
		needs.GET("/:id", h.GetNeed)
		needs.POST("", authMW, admin, h.CreateNeed)
		needs.PUT("/:id", authMW, admin, h.UpdateNeed)
		needs.DELETE("/:id", authMW, admin, h.DeleteNeed)
	}

	dons := api.Group("/donations", authMW)
	{
		dons.POST("", RequireRole(models.RoleDonor, models.RoleAdmin), h.CreateDonation)
		dons.GET("/mine", h.MyDonations)
		dons.GET("", admin, h.ListDonations)
		dons.PUT("/:id/status", admin, h.UpdateDonationStatus)
	}

	field := RequireRole(models.RoleAdmin, models.RoleVolunteer)
	sched := api.Group("/schedules", authMW)
	{
		sched.GET("", admin, h.ListSchedules)
		sched.GET("/mine", h.MySchedules)
		sched.GET("/assigned", RequireRole(models.RoleVolunteer), h.AssignedSchedules)
		sched.GET("/:id/eligible", admin, h.EligibleForSchedule)
		sched.PUT("/:id/assign", admin, h.AssignVolunteer)
		sched.PUT("/:id/reassign", admin, h.ReassignVolunteer)
		sched.PUT("/:id/status", field, h.UpdateScheduleStatus)
		sched.POST("/:id/verify-otp", field, h.VerifyOTP)
	}

	vols := api.Group("/volunteers")
	{
		vols.POST("/register", h.RegisterVolunteer)
		vols.POST("/availability/validate", h.ValidateAvailability)
		vols.GET("", authMW, admin, h.ListVolunteers)
		vols.GET("/eligible", authMW, admin, h.EligibleVolunteers)
		vols.POST("", authMW, admin, h.CreateVolunteer)
		vols.PUT("/:id", authMW, admin, h.UpdateVolunteer)
		vols.DELETE("/:id", authMW, admin, h.DeleteVolunteer)
	}

	inv := api.Group("/inventory", authMW, admin)
	{
		inv.GET("", h.ListInventory)
		inv.POST("", h.CreateInventoryItem)
		inv.PUT("/:id", h.UpdateInventoryItem)
		inv.DELETE("/:id", h.DeleteInventoryItem)
	}

	ops := r.Group("/ops", h.ServiceKeyMiddleware())
	{
		ops.POST("/schedules/sweep", h.SweepStaleSchedules(opts.StaleScheduleAge))
	}

	return r
}
