package service

import (
	"context"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Extracted is the text pulled out of a file, page or video.
type Extracted struct {
	Title     string
	Content   string
	URL       string
	Pages     *int
	ExtraData map[string]interface{}
}

// TextExtractor pulls text out of binary documents such as PDF files.
type TextExtractor interface {
	Extract(ctx context.Context, filename string, data []byte) (*Extracted, error)
}

// PageFetcher downloads a web page and returns its readable text.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*Extracted, error)
}

// TranscriptFetcher returns the transcript of a YouTube video.
type TranscriptFetcher interface {
	Transcript(ctx context.Context, videoID string) (*Extracted, error)
}

var youtubeIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`youtube\.com/watch\?(?:.*&)?v=([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtu\.be/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/embed/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/v/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/shorts/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`^([a-zA-Z0-9_-]{11})$`),
}

// YouTubeVideoID extracts the 11 character video id from a YouTube url or
// a bare id.
func YouTubeVideoID(urlOrID string) (string, bool) {
	s := strings.TrimSpace(urlOrID)
	for _, re := range youtubeIDPatterns {
		if m := re.FindStringSubmatch(s); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// IsYouTubeURL reports whether the url points at a YouTube video.
func IsYouTubeURL(url string) bool {
	lower := strings.ToLower(url)
	if !strings.Contains(lower, "youtube.com") && !strings.Contains(lower, "youtu.be") {
		return false
	}
	_, ok := YouTubeVideoID(url)
	return ok
}

// decodeText reads bytes as UTF-8 and falls back to Latin-1.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}

var (
	blankRunRe = regexp.MustCompile(`\n{3,}`)
	spaceRunRe = regexp.MustCompile(`[ \t]{2,}`)
)

func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	text = spaceRunRe.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func wordCount(text string) *int {
	n := len(strings.Fields(text))
	return &n
}

func fileExt(filename string) string {
	return strings.ToLower(path.Ext(filename))
}

func stripExt(filename string) string {
	if ext := path.Ext(filename); ext != "" && ext != filename {
		return strings.TrimSuffix(filename, ext)
	}
	return filename
}
