package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/bonaken/board/models"
	"github.com/bonaken/board/utils"
)

// PostController manages CRUD operations for posts.
type PostController struct {
	db         *gorm.DB
	uploadsDir string
	notifier   *utils.FritsNotifier
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB, uploadsDir string, notifier *utils.FritsNotifier) *PostController {
	return &PostController{db: db, uploadsDir: uploadsDir, notifier: notifier}
}

// ListPosts returns a filtered, searchable, paginated page of posts ordered by
// last activity. Archived posts stay hidden unless explicitly requested via
// the status filter.
func (p *PostController) ListPosts(ctx *gin.Context) {
	typeFilter := models.PostType(strings.TrimSpace(ctx.Query("type")))
	statusFilter := models.Status(strings.TrimSpace(ctx.Query("status")))
	search := strings.TrimSpace(ctx.Query("search"))
	page, limit := parseListParams(ctx.Query("page"), ctx.Query("limit"))

	// Cache filter/page combinations but never search results, to avoid
	// cache key explosion.
	cacheKey := fmt.Sprintf("%stype=%s:status=%s:page=%d:limit=%d",
		utils.CachePostListPrefix, typeFilter, statusFilter, page, limit)
	if search == "" {
		if b, ok := utils.CacheGetBytes(cacheKey); ok {
			ctx.Data(http.StatusOK, "application/json", b)
			return
		}
	}

	query := p.db.Model(&models.Post{})
	if typeFilter.Valid() {
		query = query.Where("type = ?", typeFilter)
	}
	if statusFilter.Valid() {
		query = query.Where("status = ?", statusFilter)
	} else {
		query = query.Where("status <> ?", models.StatusArchived)
	}
	if search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to count posts")
		return
	}

	var posts []models.Post
	err := query.
		Select("posts.*, (SELECT COUNT(*) FROM comments c WHERE c.post_id = posts.id) AS comment_count").
		Order("updated_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to list posts")
		return
	}

	payload := gin.H{
		"posts": posts,
		"total": total,
		"page":  page,
		"limit": limit,
	}
	if search == "" {
		utils.CacheSetJSON(cacheKey, payload, 0)
	}
	ctx.JSON(http.StatusOK, payload)
}

// GetPost returns a single post with its comments (oldest first) and Frits
// updates (newest first).
func (p *PostController) GetPost(ctx *gin.Context) {
	postID := ctx.Param("id")

	if b, ok := utils.CacheGetBytes(utils.CachePostDetailPrefix + postID); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, "failed to load post")
		return
	}

	if err := p.db.Where("post_id = ?", post.ID).Order("created_at ASC").Find(&post.Comments).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to load comments")
		return
	}
	if err := p.db.Where("post_id = ?", post.ID).Order("created_at DESC").Find(&post.FritsUpdates).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to load frits updates")
		return
	}

	utils.CacheSetJSON(utils.CachePostDetailPrefix+postID, post, 0)
	ctx.JSON(http.StatusOK, post)
}

// CreatePost accepts a multipart submission with an optional screenshot and
// stores a new post. Bug reports trigger the Frits creation webhook after the
// insert has committed.
func (p *PostController) CreatePost(ctx *gin.Context) {
	postType := models.PostType(strings.TrimSpace(ctx.PostForm("type")))
	if !postType.Valid() {
		utils.Error(ctx, http.StatusBadRequest, `type must be "bug" or "request"`)
		return
	}

	title, errMsg := requireField(ctx.PostForm("title"), "title", 200)
	if errMsg != "" {
		utils.Error(ctx, http.StatusBadRequest, errMsg)
		return
	}
	description, errMsg := requireField(ctx.PostForm("description"), "description", 2000)
	if errMsg != "" {
		utils.Error(ctx, http.StatusBadRequest, errMsg)
		return
	}
	author, errMsg := requireField(ctx.PostForm("author"), "author", 50)
	if errMsg != "" {
		utils.Error(ctx, http.StatusBadRequest, errMsg)
		return
	}
	contact := strings.TrimSpace(ctx.PostForm("contact"))

	// Validation precedes any mutation, including writing the upload to disk.
	var screenshot *string
	if fh, err := ctx.FormFile("screenshot"); err == nil {
		name, err := utils.SaveScreenshot(p.uploadsDir, fh)
		if err != nil {
			if errors.Is(err, utils.ErrScreenshotTooLarge) || errors.Is(err, utils.ErrScreenshotType) {
				utils.Error(ctx, http.StatusBadRequest, err.Error())
				return
			}
			utils.Error(ctx, http.StatusInternalServerError, "failed to store screenshot")
			return
		}
		screenshot = &name
	}

	now := models.Now()
	post := models.Post{
		Type:        postType,
		Status:      models.StatusOpen,
		Title:       title,
		Description: description,
		Author:      author,
		Contact:     contact,
		Screenshot:  screenshot,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := p.db.Create(&post).Error; err != nil {
		if screenshot != nil {
			utils.DeleteScreenshot(p.uploadsDir, *screenshot)
		}
		utils.Error(ctx, http.StatusInternalServerError, "failed to create post")
		return
	}

	if post.Type == models.TypeBug {
		p.notifier.BugCreated(post)
	}

	utils.InvalidateByPrefix(utils.CachePostListPrefix)
	ctx.JSON(http.StatusCreated, post)
}

// UpdatePost applies a partial edit: title and/or description, plus an
// optional screenshot replacement or removal. The previous screenshot file is
// reclaimed when it is replaced or removed.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	postID := ctx.Param("id")
	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, "failed to load post")
		return
	}

	updates := map[string]interface{}{}

	if title, ok := ctx.GetPostForm("title"); ok {
		clean, errMsg := requireField(title, "title", 200)
		if errMsg != "" {
			utils.Error(ctx, http.StatusBadRequest, errMsg)
			return
		}
		updates["title"] = clean
	}
	if description, ok := ctx.GetPostForm("description"); ok {
		clean, errMsg := requireField(description, "description", 2000)
		if errMsg != "" {
			utils.Error(ctx, http.StatusBadRequest, errMsg)
			return
		}
		updates["description"] = clean
	}

	var oldScreenshot string
	if post.Screenshot != nil {
		oldScreenshot = *post.Screenshot
	}
	removeOld := false

	if fh, err := ctx.FormFile("screenshot"); err == nil {
		name, err := utils.SaveScreenshot(p.uploadsDir, fh)
		if err != nil {
			if errors.Is(err, utils.ErrScreenshotTooLarge) || errors.Is(err, utils.ErrScreenshotType) {
				utils.Error(ctx, http.StatusBadRequest, err.Error())
				return
			}
			utils.Error(ctx, http.StatusInternalServerError, "failed to store screenshot")
			return
		}
		updates["screenshot"] = name
		removeOld = oldScreenshot != ""
	} else if ctx.PostForm("remove_screenshot") == "true" {
		updates["screenshot"] = nil
		removeOld = oldScreenshot != ""
	}

	updates["updated_at"] = models.Now()

	if err := p.db.Model(&post).UpdateColumns(updates).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to update post")
		return
	}
	if removeOld {
		utils.DeleteScreenshot(p.uploadsDir, oldScreenshot)
	}

	if err := p.db.First(&post, post.ID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to reload post")
		return
	}

	utils.InvalidateByPrefix(utils.CachePostListPrefix)
	utils.InvalidateByPrefix(utils.CachePostDetailPrefix + postID)
	ctx.JSON(http.StatusOK, post)
}

// DeletePost removes a post with its comments, Frits updates and screenshot
// file.
func (p *PostController) DeletePost(ctx *gin.Context) {
	postID := ctx.Param("id")
	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, "failed to load post")
		return
	}

	err := p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.FritsUpdate{}).Error; err != nil {
			return err
		}
		return tx.Delete(&post).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to delete post")
		return
	}

	if post.Screenshot != nil {
		utils.DeleteScreenshot(p.uploadsDir, *post.Screenshot)
	}

	utils.InvalidateByPrefix(utils.CachePostListPrefix)
	utils.InvalidateByPrefix(utils.CachePostDetailPrefix + postID)
	ctx.JSON(http.StatusOK, gin.H{"ok": true})
}

// requireField trims and sanitizes a required text field, enforcing its rune
// limit. Returns the cleaned value or a client-facing error message.
func requireField(raw, name string, maxLen int) (string, string) {
	value := utils.Sanitize(strings.TrimSpace(raw))
	if value == "" {
		return "", name + " is required"
	}
	if utf8.RuneCountInString(value) > maxLen {
		return "", fmt.Sprintf("%s must be at most %d characters", name, maxLen)
	}
	return value, ""
}

func parseListParams(pageStr, limitStr string) (int, int) {
	page := 1
	limit := 20
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(limitStr); err == nil {
		switch {
		case l < 1:
			limit = 1
		case l > 100:
			limit = 100
		default:
			limit = l
		}
	}
	return page, limit
}
