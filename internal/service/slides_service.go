package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notebook/internal/ai"
	"github.com/xxxsen/notebook/internal/model"
)

const slidesSystemPrompt = "You are a presentation design expert. Always respond with valid JSON only."

const slidesPromptTemplate = `You are an expert presentation designer. Create a compelling presentation from the following sources.

Generate exactly %d slides in a clear, professional format. Include:
1. A title slide
2. An overview/agenda slide
3. Content slides with key points (use bullet points for clarity)
4. A summary/conclusion slide

For each slide, provide:
- Type: "title", "content", "bullets", or "summary"
- Title: A clear, concise headline
- Content: Either a string (for title/summary) or a list of bullet points (for bullets/content)
- Notes: Optional speaker notes

IMPORTANT: Return ONLY valid JSON in this exact format:
{
  "slides": [
    {
      "slide_type": "title",
      "title": "Presentation Title",
      "content": "Subtitle or description",
      "notes": "Speaker notes here"
    },
    {
      "slide_type": "bullets",
      "title": "Key Points",
      "content": ["Point 1", "Point 2", "Point 3"],
      "notes": "Additional context"
    }
  ]
}

Sources to analyze:
%s

Generate the slides now:`

const DefaultSlideCount = 8

// SlideContent is either a single text or a bullet list.
type SlideContent struct {
	Text    string
	Bullets []string
}

func (c SlideContent) MarshalJSON() ([]byte, error) {
	if c.Bullets != nil {
		return json.Marshal(c.Bullets)
	}
	return json.Marshal(c.Text)
}

func (c *SlideContent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		c.Text = ""
		return json.Unmarshal(data, &c.Bullets)
	}
	if bytes.Equal(data, []byte("null")) {
		*c = SlideContent{}
		return nil
	}
	c.Bullets = nil
	return json.Unmarshal(data, &c.Text)
}

type Slide struct {
	SlideType string       `json:"slide_type"`
	Title     string       `json:"title"`
	Content   SlideContent `json:"content"`
	Notes     *string      `json:"notes"`
}

type Deck struct {
	Slides      []Slide `json:"slides"`
	SourceCount int     `json:"source_count"`
}

func fallbackSlides() []Slide {
	return []Slide{
		{SlideType: "title", Title: "Presentation", Content: SlideContent{Text: "Generated from your sources"}},
		{SlideType: "bullets", Title: "Key Points", Content: SlideContent{Bullets: []string{"Unable to parse AI response", "Please try again"}}},
	}
}

type SlidesService struct {
	chat ChatClient
}

func NewSlidesService(chat ChatClient) *SlidesService {
	return &SlidesService{chat: chat}
}

func titledSources(sources []model.Source, limit int) string {
	parts := make([]string, 0, len(sources))
	for _, src := range sources {
		content := src.Content
		if limit > 0 {
			content = truncateRunes(content, limit)
		}
		parts = append(parts, fmt.Sprintf("**%s**\n%s", src.Title, content))
	}
	return strings.Join(parts, contextSeparator)
}

func (s *SlidesService) request(sources []model.Source, numSlides int) (ai.ChatRequest, error) {
	if len(sources) == 0 {
		return ai.ChatRequest{}, ErrNoSources
	}
	if numSlides <= 0 {
		numSlides = DefaultSlideCount
	}
	prompt := fmt.Sprintf(slidesPromptTemplate, numSlides, titledSources(sources, 0))
	return ai.ChatRequest{
		Messages:     []ai.Message{{Role: ai.RoleUser, Content: prompt}},
		SystemPrompt: slidesSystemPrompt,
		Temperature:  ai.Temp(0.7),
		MaxTokens:    4000,
	}, nil
}

func (s *SlidesService) Generate(ctx context.Context, sources []model.Source, numSlides int) (Result[[]Slide], error) {
	req, err := s.request(sources, numSlides)
	if err != nil {
		return Result[[]Slide]{}, err
	}
	raw, err := s.chat.Complete(ctx, req)
	if err != nil {
		return Result[[]Slide]{}, err
	}
	var out struct {
		Slides []Slide `json:"slides"`
	}
	if err := decodeStructured(raw, &out); err != nil {
		logutil.GetLogger(ctx).Error("parse slides reply failed", zap.Error(err))
		return FallbackOf(fallbackSlides()), nil
	}
	if out.Slides == nil {
		out.Slides = []Slide{}
	}
	return Parsed(out.Slides), nil
}

func (s *SlidesService) GenerateStream(ctx context.Context, sources []model.Source, numSlides int) (ai.ChatStream, error) {
	req, err := s.request(sources, numSlides)
	if err != nil {
		return nil, err
	}
	return s.chat.CompleteStream(ctx, req)
}
