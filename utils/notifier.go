package utils

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/bonaken/board/models"
)

// Comment notification event names understood by Frits.
const (
	EventBugComment  = "bug_comment"
	EventBugReopened = "bug_reopened"
)

const fritsTimeout = 5 * time.Second

// FritsNotifier delivers best-effort webhooks to the automation agent. Calls
// never block the request that triggered them and never surface errors to it:
// deliveries run in their own goroutine with a bounded timeout, failures are
// logged and otherwise dropped. There is no retry or queue; a bug whose
// creation webhook failed keeps notified=false for manual reconciliation.
type FritsNotifier struct {
	db     *gorm.DB
	url    string
	client *http.Client
}

// NewFritsNotifier builds a notifier posting to webhookURL.
func NewFritsNotifier(db *gorm.DB, webhookURL string) *FritsNotifier {
	return &FritsNotifier{
		db:     db,
		url:    webhookURL,
		client: &http.Client{Timeout: fritsTimeout},
	}
}

type bugCreatedPayload struct {
	PostID      uint   `json:"postId"`
	Title       string `json:"title"`
	Type        string `json:"type"`
	Author      string `json:"author"`
	Contact     string `json:"contact"`
	Description string `json:"description"`
}

type bugCommentPayload struct {
	Event   string `json:"event"`
	PostID  uint   `json:"postId"`
	Title   string `json:"title"`
	Comment string `json:"comment"`
	Author  string `json:"author"`
}

// BugCreated notifies Frits of a freshly reported bug. On a 2xx reply the
// post's notified flag is recorded in a transaction of its own; the triggering
// create has already committed by the time this runs.
func (n *FritsNotifier) BugCreated(post models.Post) {
	go n.deliverBugCreated(post)
}

func (n *FritsNotifier) deliverBugCreated(post models.Post) {
	payload := bugCreatedPayload{
		PostID:      post.ID,
		Title:       post.Title,
		Type:        string(post.Type),
		Author:      post.Author,
		Contact:     post.Contact,
		Description: post.Description,
	}
	if !n.post(payload) {
		return
	}
	if err := n.db.Model(&models.Post{}).Where("id = ?", post.ID).UpdateColumn("notified", true).Error; err != nil {
		if Sugar != nil {
			Sugar.Errorf("frits: delivered bug %d but failed to record notified flag: %v", post.ID, err)
		}
	}
}

// BugComment notifies Frits that someone commented on a bug. A comment on a
// resolved bug counts as reopening it. No delivery bookkeeping is kept for
// comment notifications.
func (n *FritsNotifier) BugComment(post models.Post, comment models.Comment) {
	go n.deliverBugComment(post, comment)
}

func (n *FritsNotifier) deliverBugComment(post models.Post, comment models.Comment) {
	n.post(bugCommentPayload{
		Event:   classifyCommentEvent(post.Status),
		PostID:  post.ID,
		Title:   post.Title,
		Comment: comment.Body,
		Author:  comment.Author,
	})
}

func classifyCommentEvent(status models.Status) string {
	if status == models.StatusResolved {
		return EventBugReopened
	}
	return EventBugComment
}

// post sends one JSON request and reports whether Frits acknowledged with 2xx.
func (n *FritsNotifier) post(v interface{}) bool {
	body, err := json.Marshal(v)
	if err != nil {
		if Sugar != nil {
			Sugar.Errorf("frits: marshal payload: %v", err)
		}
		return false
	}
	resp, err := n.client.Post(n.url, "application/json", bytes.NewReader(body))
	if err != nil {
		if Sugar != nil {
			Sugar.Warnf("frits: webhook delivery to %s failed: %v", n.url, err)
		}
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if Sugar != nil {
			Sugar.Warnf("frits: webhook delivery to %s returned %d", n.url, resp.StatusCode)
		}
		return false
	}
	return true
}
