package model

import (
	"strings"
	"time"
)

type Note struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	ContentHTML string    `json:"content_html,omitempty"`
	Tags        []string  `json:"tags"`
	IsPinned    bool      `json:"is_pinned"`
	IsArchived  bool      `json:"is_archived"`
	HasEmbed    bool      `json:"has_embedding"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type NoteMatch struct {
	Note
	Similarity float64 `json:"similarity"`
}

type NoteFilter struct {
	Search     string
	Tag        string
	Archived   bool
	PinnedOnly bool
}

// EmbedText is the text a note is indexed by.
func (n *Note) EmbedText() string {
	parts := []string{n.Title}
	if len(n.Tags) > 0 {
		parts = append(parts, "Tags: "+strings.Join(n.Tags, ", "))
	}
	if n.Content != "" {
		parts = append(parts, n.Content)
	}
	return strings.Join(parts, "\n\n")
}
