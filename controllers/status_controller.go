package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/bonaken/board/models"
	"github.com/bonaken/board/utils"
)

// errTransitionConflict signals that the post's status changed between our
// read and the guarded update, i.e. a concurrent transition won.
var errTransitionConflict = errors.New("transition conflict")

// StatusController runs the post lifecycle: it validates and applies the one
// allowed transition per state and records the audit trail.
type StatusController struct {
	db *gorm.DB
}

// NewStatusController creates a new StatusController instance.
func NewStatusController(db *gorm.DB) *StatusController {
	return &StatusController{db: db}
}

// UpdateStatus moves a post to the requested status. The status update and
// its audit comment commit atomically; the update carries the expected
// current status as an optimistic guard, so of two racing transitions only
// the first can succeed.
func (s *StatusController) UpdateStatus(ctx *gin.Context) {
	var req struct {
		Status string `json:"status"`
		Author string `json:"author"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, "invalid request payload")
		return
	}

	target := models.Status(strings.TrimSpace(req.Status))
	// open is an initial state only, never a transition target
	if !target.Valid() || target == models.StatusOpen {
		utils.Error(ctx, http.StatusBadRequest, "invalid status")
		return
	}
	author := strings.TrimSpace(req.Author)
	if author == "" {
		utils.Error(ctx, http.StatusBadRequest, "author is required")
		return
	}
	if utf8.RuneCountInString(author) > 50 {
		utils.Error(ctx, http.StatusBadRequest, "author must be at most 50 characters")
		return
	}

	postID := ctx.Param("id")
	var post models.Post
	if err := s.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, "failed to load post")
		return
	}

	if !post.Status.CanTransitionTo(target) {
		utils.Error(ctx, http.StatusBadRequest,
			fmt.Sprintf("cannot change status from %q to %q", post.Status, target))
		return
	}

	now := models.Now()
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).
			Where("id = ? AND status = ?", post.ID, post.Status).
			UpdateColumns(map[string]interface{}{"status": target, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errTransitionConflict
		}
		audit := models.Comment{
			PostID:    post.ID,
			Author:    models.SystemAuthor,
			Body:      fmt.Sprintf("Status changed to %s by %s", target.Label(), author),
			CreatedAt: now,
		}
		return tx.Create(&audit).Error
	})
	if err != nil {
		if errors.Is(err, errTransitionConflict) {
			// Report against the status the winner left behind.
			var current models.Post
			if s.db.First(&current, post.ID).Error == nil {
				post.Status = current.Status
			}
			utils.Error(ctx, http.StatusBadRequest,
				fmt.Sprintf("cannot change status from %q to %q", post.Status, target))
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, "failed to update status")
		return
	}

	if err := s.db.First(&post, post.ID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to reload post")
		return
	}

	utils.InvalidateByPrefix(utils.CachePostListPrefix)
	utils.InvalidateByPrefix(utils.CachePostDetailPrefix + postID)
	ctx.JSON(http.StatusOK, post)
}

// NotifyStatus manually flags a post as notified, for when someone confirmed
// out of band that Frits got the message after the automatic webhook failed.
// Delivery bookkeeping is not a content change, so updated_at stays put.
func (s *StatusController) NotifyStatus(ctx *gin.Context) {
	postID := ctx.Param("id")
	var post models.Post
	if err := s.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, "failed to load post")
		return
	}

	if err := s.db.Model(&post).UpdateColumn("notified", true).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to update post")
		return
	}
	post.Notified = true

	utils.InvalidateByPrefix(utils.CachePostDetailPrefix + postID)
	ctx.JSON(http.StatusOK, post)
}
