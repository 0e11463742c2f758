package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/notebook/internal/ai"
	"github.com/xxxsen/notebook/internal/model"
)

const (
	SummaryComprehensive = "comprehensive"
	SummaryKeyPoints     = "key_points"
	SummaryBrief         = "brief"
)

var summaryPrompts = map[string]string{
	SummaryComprehensive: `Generate a comprehensive summary of the provided sources.
Include:
- Main themes and topics covered
- Key arguments and findings
- Important details and supporting evidence
- Connections between different sources

Format the summary with clear sections and bullet points where appropriate.`,
	SummaryKeyPoints: `Extract and list the key points from the provided sources.
Format as a numbered list of the most important takeaways.
Each point should be concise but informative (1-2 sentences).
Aim for 5-10 key points.`,
	SummaryBrief: `Provide a brief, executive summary of the provided sources in 2-3 paragraphs.
Focus on the most essential information and main conclusions.
Keep it concise and easy to scan.`,
}

const summarySourceChars = 8000

type Summary struct {
	Summary     string `json:"summary"`
	SourceCount int    `json:"source_count"`
	SummaryType string `json:"summary_type"`
}

type SummaryService struct {
	chat ChatClient
}

func NewSummaryService(chat ChatClient) *SummaryService {
	return &SummaryService{chat: chat}
}

// NormalizeSummaryType maps unknown kinds onto the comprehensive summary.
func NormalizeSummaryType(kind string) string {
	if _, ok := summaryPrompts[kind]; ok {
		return kind
	}
	return SummaryComprehensive
}

func buildSourceContext(sources []model.Source) string {
	parts := make([]string, 0, len(sources))
	for i, src := range sources {
		title := src.Title
		if title == "" {
			title = "Untitled"
		}
		parts = append(parts, fmt.Sprintf("Source %d: %s\n%s", i+1, title, truncateRunes(src.Content, summarySourceChars)))
	}
	return strings.Join(parts, contextSeparator)
}

func (s *SummaryService) request(sources []model.Source, kind string) (ai.ChatRequest, error) {
	if len(sources) == 0 {
		return ai.ChatRequest{}, ErrNoSources
	}
	return ai.ChatRequest{
		Messages:     []ai.Message{{Role: ai.RoleUser, Content: "Please summarize these sources:\n\n" + buildSourceContext(sources)}},
		SystemPrompt: summaryPrompts[NormalizeSummaryType(kind)],
		Temperature:  ai.Temp(0.7),
		MaxTokens:    2000,
	}, nil
}

func (s *SummaryService) Summarize(ctx context.Context, sources []model.Source, kind string) (*Summary, error) {
	req, err := s.request(sources, kind)
	if err != nil {
		return nil, err
	}
	text, err := s.chat.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Summary{Summary: text, SourceCount: len(sources), SummaryType: NormalizeSummaryType(kind)}, nil
}

func (s *SummaryService) SummarizeStream(ctx context.Context, sources []model.Source, kind string) (ai.ChatStream, error) {
	req, err := s.request(sources, kind)
	if err != nil {
		return nil, err
	}
	return s.chat.CompleteStream(ctx, req)
}
