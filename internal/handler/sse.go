package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notebook/internal/ai"
)

const sseDone = "[DONE]"

type sseWriter struct {
	c *gin.Context
}

func newSSEWriter(c *gin.Context) *sseWriter {
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	return &sseWriter{c: c}
}

func (w *sseWriter) raw(data string) error {
	if _, err := fmt.Fprintf(w.c.Writer, "data: %s\n\n", data); err != nil {
		return err
	}
	w.c.Writer.Flush()
	return nil
}

// asciiJSON encodes v as json with every non ascii rune escaped, so the
// result is safe to use as an http header value.
func asciiJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, r := range string(data) {
		switch {
		case r < utf8.RuneSelf:
			sb.WriteRune(r)
		case r > 0xFFFF:
			hi, lo := utf16.EncodeRune(r)
			fmt.Fprintf(&sb, "\\u%04x\\u%04x", hi, lo)
		default:
			fmt.Fprintf(&sb, "\\u%04x", r)
		}
	}
	return sb.String(), nil
}

func (w *sseWriter) event(payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return w.raw(string(data))
}

// streamChat relays a token stream as server sent events. A failed stream
// ends with a single error event and no [DONE] marker.
func streamChat(c *gin.Context, stream ai.ChatStream) {
	defer stream.Close()
	w := newSSEWriter(c)
	logger := logutil.GetLogger(c.Request.Context())
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			_ = w.raw(sseDone)
			return
		}
		if err != nil {
			if c.Request.Context().Err() != nil {
				return
			}
			logger.Error("stream failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
			_ = w.event(gin.H{"error": err.Error()})
			return
		}
		if chunk == "" {
			continue
		}
		if err := w.event(gin.H{"content": chunk}); err != nil {
			logger.Debug("client went away", zap.Error(err))
			return
		}
	}
}
