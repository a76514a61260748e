package entity

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxDescriptionLen is the upper bound on a bug description, in characters, after trimming.
const MaxDescriptionLen = 500

// Identity snapshot defaults used when the owner's profile cannot be resolved.
const (
	DefaultDisplayName   = "Anonymous"
	DefaultDisplayHandle = "@unknown"
	DefaultAvatarRef     = ""
)

// BugRecord is the persisted unit of work and its result.
// An empty Result means the roast is still being produced.
type BugRecord struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"ownerId"`
	Description   string    `json:"description"`
	DisplayName   string    `json:"displayName"`
	DisplayHandle string    `json:"displayHandle"`
	AvatarRef     string    `json:"avatarRef"`
	Result        *string   `json:"result,omitempty"`
	Shared        bool      `json:"shared"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Roast returns the trimmed result and whether it is non-empty.
func (r *BugRecord) Roast() (string, bool) {
	if r == nil || r.Result == nil {
		return "", false
	}
	s := strings.TrimSpace(*r.Result)
	return s, s != ""
}

// VisibleTo reports whether viewerID may read the record. An empty viewerID is an anonymous viewer.
func (r *BugRecord) VisibleTo(viewerID string) bool {
	if r == nil {
		return false
	}
	if viewerID != "" && r.OwnerID == viewerID {
		return true
	}
	return r.Shared
}

// Task is the dispatch payload handed to the enrichment worker.
type Task struct {
	Description string `json:"bugDescription"`
	DocumentID  string `json:"documentId"`
	OwnerID     string `json:"ownerId"`
	Shared      bool   `json:"shared"`
}

// EventType names the kind of change a RecordEvent describes.
type EventType string

const (
	EventCreate EventType = "create"
)

// RecordEvent is published after a record write and delivered to realtime subscribers.
type RecordEvent struct {
	Type     EventType  `json:"type"`
	RecordID string     `json:"recordId"`
	Record   *BugRecord `json:"record"`
}

// NormalizeDescription trims the description and enforces the length bounds.
func NormalizeDescription(desc string) (string, error) {
	s := strings.TrimSpace(desc)
	if s == "" {
		return "", fmt.Errorf("%w: description is required", ErrValidation)
	}
	if n := utf8.RuneCountInString(s); n > MaxDescriptionLen {
		return "", fmt.Errorf("%w: description is %d characters, max %d", ErrValidation, n, MaxDescriptionLen)
	}
	return s, nil
}
