package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/bonaken/board/models"
	"github.com/bonaken/board/utils"
)

// CommentController handles the comment stream and Frits progress updates.
type CommentController struct {
	db       *gorm.DB
	notifier *utils.FritsNotifier
}

// NewCommentController creates a new CommentController instance.
func NewCommentController(db *gorm.DB, notifier *utils.FritsNotifier) *CommentController {
	return &CommentController{db: db, notifier: notifier}
}

// CreateComment appends a comment to a post. The insert and the post's
// updated_at bump commit together, so a reader never sees one without the
// other. Comments on bugs notify Frits unless Frits wrote them.
func (c *CommentController) CreateComment(ctx *gin.Context) {
	var req struct {
		Author string `json:"author"`
		Body   string `json:"body"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, "invalid request payload")
		return
	}

	postID := ctx.Param("id")
	var post models.Post
	if err := c.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, "failed to load post")
		return
	}

	author, errMsg := requireField(req.Author, "author", 50)
	if errMsg != "" {
		utils.Error(ctx, http.StatusBadRequest, errMsg)
		return
	}
	body, errMsg := requireField(req.Body, "body", 2000)
	if errMsg != "" {
		utils.Error(ctx, http.StatusBadRequest, errMsg)
		return
	}

	comment := models.Comment{
		PostID:    post.ID,
		Author:    author,
		Body:      body,
		CreatedAt: models.Now(),
	}
	err := c.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&comment).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", post.ID).
			UpdateColumn("updated_at", models.Now()).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to create comment")
		return
	}

	if post.Type == models.TypeBug && author != models.AgentAuthor {
		c.notifier.BugComment(post, comment)
	}

	utils.InvalidateByPrefix(utils.CachePostListPrefix)
	utils.InvalidateByPrefix(utils.CachePostDetailPrefix + postID)
	ctx.JSON(http.StatusCreated, comment)
}

// CreateFritsUpdate records a progress message from the automation agent and
// mirrors it into the comment stream under the reserved agent name.
func (c *CommentController) CreateFritsUpdate(ctx *gin.Context) {
	var req struct {
		Message string `json:"message"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, "invalid request payload")
		return
	}

	postID := ctx.Param("id")
	var post models.Post
	if err := c.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, "failed to load post")
		return
	}

	message, errMsg := requireField(req.Message, "message", 2000)
	if errMsg != "" {
		utils.Error(ctx, http.StatusBadRequest, errMsg)
		return
	}

	now := models.Now()
	update := models.FritsUpdate{
		PostID:    post.ID,
		Message:   message,
		CreatedAt: now,
	}
	mirror := models.Comment{
		PostID:    post.ID,
		Author:    models.AgentAuthor,
		Body:      message,
		CreatedAt: now,
	}
	err := c.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&update).Error; err != nil {
			return err
		}
		if err := tx.Create(&mirror).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", post.ID).
			UpdateColumn("updated_at", now).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to record frits update")
		return
	}

	utils.InvalidateByPrefix(utils.CachePostListPrefix)
	utils.InvalidateByPrefix(utils.CachePostDetailPrefix + postID)
	ctx.JSON(http.StatusCreated, update)
}
