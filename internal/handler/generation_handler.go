package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notebook/internal/model"
	appErr "github.com/xxxsen/notebook/internal/pkg/errors"
	"github.com/xxxsen/notebook/internal/pkg/response"
	"github.com/xxxsen/notebook/internal/service"
)

// GenerationHandler serves the endpoints that turn a set of sources into a
// summary, a slide deck or audio.
type GenerationHandler struct {
	sources   *service.SourceService
	summaries *service.SummaryService
	slides    *service.SlidesService
	podcasts  *service.PodcastService
	audio     *service.AudioService
}

func NewGenerationHandler(sources *service.SourceService, summaries *service.SummaryService, slides *service.SlidesService,
	podcasts *service.PodcastService, audio *service.AudioService) *GenerationHandler {
	return &GenerationHandler{sources: sources, summaries: summaries, slides: slides, podcasts: podcasts, audio: audio}
}

type generationRequest struct {
	SourceIDs   []string `json:"source_ids"`
	SummaryType string   `json:"summary_type"`
	NumSlides   int      `json:"num_slides"`
	Provider    string   `json:"provider"`
}

// bind decodes the request and loads its sources. Failures are written with
// fail, which differs between enveloped and raw endpoints.
func (h *GenerationHandler) bind(c *gin.Context, fail func(*gin.Context, error)) (*generationRequest, []model.Source, bool) {
	var req generationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, fmt.Errorf("%w: %v", appErr.ErrInvalid, err))
		return nil, nil, false
	}
	sources, err := h.sources.Resolve(c.Request.Context(), getUserID(c), req.SourceIDs)
	if err != nil {
		fail(c, err)
		return nil, nil, false
	}
	return &req, sources, true
}

func (h *GenerationHandler) Summary(c *gin.Context) {
	req, sources, ok := h.bind(c, handleError)
	if !ok {
		return
	}
	sum, err := h.summaries.Summarize(c.Request.Context(), sources, req.SummaryType)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, sum)
}

func (h *GenerationHandler) SummaryStream(c *gin.Context) {
	req, sources, ok := h.bind(c, handleRawError)
	if !ok {
		return
	}
	stream, err := h.summaries.SummarizeStream(c.Request.Context(), sources, req.SummaryType)
	if err != nil {
		handleRawError(c, err)
		return
	}
	streamChat(c, stream)
}

func (h *GenerationHandler) Slides(c *gin.Context) {
	req, sources, ok := h.bind(c, handleError)
	if !ok {
		return
	}
	res, err := h.slides.Generate(c.Request.Context(), sources, req.NumSlides)
	if err != nil {
		handleError(c, err)
		return
	}
	if res.Fallback {
		logutil.GetLogger(c.Request.Context()).Warn("slides reply unparsable, serving fallback deck",
			zap.String("user_id", getUserID(c)))
	}
	response.Success(c, service.Deck{Slides: res.Payload, SourceCount: len(sources)})
}

func (h *GenerationHandler) SlidesStream(c *gin.Context) {
	req, sources, ok := h.bind(c, handleRawError)
	if !ok {
		return
	}
	stream, err := h.slides.GenerateStream(c.Request.Context(), sources, req.NumSlides)
	if err != nil {
		handleRawError(c, err)
		return
	}
	streamChat(c, stream)
}

func (h *GenerationHandler) PodcastScript(c *gin.Context) {
	_, sources, ok := h.bind(c, handleError)
	if !ok {
		return
	}
	res, err := h.podcasts.Script(c.Request.Context(), sources)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, res.Payload)
}

func (h *GenerationHandler) PodcastScriptStream(c *gin.Context) {
	_, sources, ok := h.bind(c, handleRawError)
	if !ok {
		return
	}
	stream, err := h.podcasts.ScriptStream(c.Request.Context(), sources)
	if err != nil {
		handleRawError(c, err)
		return
	}
	streamChat(c, stream)
}

func (h *GenerationHandler) Podcast(c *gin.Context) {
	req, sources, ok := h.bind(c, handleRawError)
	if !ok {
		return
	}
	data, err := h.podcasts.Audio(c.Request.Context(), sources, req.Provider)
	if err != nil {
		handleRawError(c, err)
		return
	}
	writeAudio(c, data, "podcast.wav")
}

func (h *GenerationHandler) Audio(c *gin.Context) {
	req, sources, ok := h.bind(c, handleRawError)
	if !ok {
		return
	}
	data, err := h.audio.Overview(c.Request.Context(), sources, req.Provider)
	if err != nil {
		handleRawError(c, err)
		return
	}
	writeAudio(c, data, "audio-overview.wav")
}
