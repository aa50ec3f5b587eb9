package handler

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/kindnest/kindnest-api/internal/app"
	"github.com/kindnest/kindnest-api/pkg/config"
)

var r http.Handler

func init() {
	gin.SetMode(gin.ReleaseMode)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load("")
	if err != nil {
		r = unavailable(err)
		return
	}
	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		r = unavailable(err)
		return
	}
	r = a.Router()
}

func unavailable(err error) http.Handler {
	slog.Error("startup failed", "error", err)
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"service unavailable"}`, http.StatusServiceUnavailable)
	})
}

// Handler is the entry point for Vercel Go Runtime
func Handler(w http.ResponseWriter, req *http.Request) {
	r.ServeHTTP(w, req)
}
