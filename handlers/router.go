package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workload-predictor/backend/models"
)

// NewRouter wires the API routes. Non-POST requests to registered routes
// get an explicit 405 body instead of gin's default 404.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.HandleMethodNotAllowed = true
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, models.ErrorResponse{Error: "Method not allowed"})
	})

	router.GET("/health", h.Health)
	router.POST("/api/predict", h.Predict)

	return router
}
