package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/bonaken/board/models"
	"github.com/bonaken/board/utils"
)

// StatsController answers the client's poll for fresh activity.
type StatsController struct {
	db *gorm.DB
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db}
}

// UpdatesSince returns how many posts changed after the given timestamp. The
// client polls this to decide whether to refresh; archived posts count too,
// deliberately.
func (s *StatsController) UpdatesSince(ctx *gin.Context) {
	since := ctx.Query("since")
	if since == "" {
		utils.Error(ctx, http.StatusBadRequest, `parameter "since" is required`)
		return
	}
	t, err := time.Parse(time.RFC3339, since)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, `parameter "since" must be an RFC3339 timestamp`)
		return
	}

	var count int64
	if err := s.db.Model(&models.Post{}).Where("updated_at > ?", t).Count(&count).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to count updates")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"count": count})
}
