package model

import "time"

const (
	SourceTypeURL     = "url"
	SourceTypePDF     = "pdf"
	SourceTypeText    = "text"
	SourceTypeFile    = "file"
	SourceTypeYouTube = "youtube"
)

const (
	SourceStatusIdle    = "idle"
	SourceStatusLoading = "loading"
	SourceStatusSuccess = "success"
	SourceStatusError   = "error"
)

type Source struct {
	ID         string                 `json:"id"`
	OwnerID    string                 `json:"owner_id"`
	SourceType string                 `json:"source_type"`
	URL        string                 `json:"url,omitempty"`
	Filename   string                 `json:"filename,omitempty"`
	Title      string                 `json:"title"`
	Content    string                 `json:"content"`
	PageCount  *int                   `json:"page_count,omitempty"`
	WordCount  *int                   `json:"word_count,omitempty"`
	ExtraData  map[string]interface{} `json:"extra_data"`
	Status     string                 `json:"status"`
	Error      string                 `json:"error,omitempty"`
	HasEmbed   bool                   `json:"has_embedding"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

type SourceMatch struct {
	Source
	Similarity float64 `json:"similarity"`
}

const sourceEmbedLimit = 8000

// EmbedText is the text a source is indexed by, capped at 8000 characters.
func (s *Source) EmbedText() string {
	text := []rune(s.Title + "\n\n" + s.Content)
	if len(text) > sourceEmbedLimit {
		text = text[:sourceEmbedLimit]
	}
	return string(text)
}
