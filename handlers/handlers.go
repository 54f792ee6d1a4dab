package handlers

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"workload-predictor/backend/config"
	"workload-predictor/backend/models"
	"workload-predictor/backend/services"
)

type Handler struct {
	inference services.Predictor
	config    *config.Config
}

func NewHandler(inference services.Predictor, cfg *config.Config) *Handler {
	return &Handler{
		inference: inference,
		config:    cfg,
	}
}

// Health endpoint
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "workload-predictor",
		"time":    time.Now().UTC(),
	})
}

// Predict accepts one CSV upload, forwards it to the inference service and
// returns the raw result. The upload lives in a temp file only for the span
// of this call; the deferred remove covers every exit path.
func (h *Handler) Predict(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		// Older front-end builds send the upload under a different field name
		file, err = c.FormFile("upload")
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "No file uploaded"})
		return
	}

	tmpPath := filepath.Join(h.config.UploadDir, uuid.New().String()+filepath.Ext(file.Filename))
	defer func() {
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			log.Printf("Failed to remove temp upload %s: %v", tmpPath, err)
		}
	}()

	if err := c.SaveUploadedFile(file, tmpPath); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}

	if _, err := os.Stat(tmpPath); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Uploaded file path not found"})
		return
	}

	raw, err := h.inference.Predict(c.Request.Context(), tmpPath, file.Filename)
	if err == services.ErrStillQueued {
		c.JSON(http.StatusAccepted, models.QueuedResponse{
			Queued:  true,
			Message: models.QueuedMessage,
		})
		return
	}
	if err != nil {
		log.Printf("Prediction failed for %s: %v", file.Filename, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}

	c.Data(http.StatusOK, "application/json", raw)
}
