package ai

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
)

// ChatStream yields response text fragments. Recv returns io.EOF once the
// upstream is exhausted. Close releases the upstream connection and may be
// called at any time, more than once.
type ChatStream interface {
	Recv() (string, error)
	Close() error
}

// errSkipChunk marks a payload that could not be decoded. Such payloads are
// dropped and the stream continues.
var errSkipChunk = errors.New("skip stream chunk")

// extractFunc decodes one SSE data payload. It returns errSkipChunk for
// malformed payloads and a *ProviderError when the upstream reports a
// failure inside the stream.
type extractFunc func(payload []byte) (text string, done bool, err error)

type sseStream struct {
	body    io.ReadCloser
	reader  *bufio.Reader
	extract extractFunc
	onEnd   func(error)

	closeOnce sync.Once
	closed    atomic.Bool
	finished  bool
}

func newSSEStream(body io.ReadCloser, extract extractFunc, onEnd func(error)) *sseStream {
	return &sseStream{
		body:    body,
		reader:  bufio.NewReader(body),
		extract: extract,
		onEnd:   onEnd,
	}
}

func (s *sseStream) Recv() (string, error) {
	if s.finished || s.closed.Load() {
		return "", io.EOF
	}
	for {
		line, err := s.reader.ReadBytes('\n')
		if len(line) > 0 {
			text, done, herr := s.handleLine(line)
			if herr != nil {
				s.finish(herr)
				return "", herr
			}
			if done {
				s.finish(nil)
				return "", io.EOF
			}
			if text != "" {
				return text, nil
			}
		}
		if err != nil {
			if err == io.EOF || s.closed.Load() {
				s.finish(nil)
				return "", io.EOF
			}
			s.finish(err)
			return "", err
		}
	}
}

func (s *sseStream) handleLine(line []byte) (string, bool, error) {
	line = bytes.TrimSpace(line)
	if !bytes.HasPrefix(line, []byte("data:")) {
		return "", false, nil
	}
	payload := bytes.TrimSpace(line[len("data:"):])
	if len(payload) == 0 {
		return "", false, nil
	}
	if string(payload) == "[DONE]" {
		return "", true, nil
	}
	text, done, err := s.extract(payload)
	if errors.Is(err, errSkipChunk) {
		return "", false, nil
	}
	return text, done, err
}

func (s *sseStream) finish(err error) {
	if s.finished {
		return
	}
	s.finished = true
	if s.onEnd != nil {
		s.onEnd(err)
	}
	_ = s.Close()
}

func (s *sseStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		err = s.body.Close()
	})
	return err
}

// Collect drains a stream into one string.
func Collect(stream ChatStream) (string, error) {
	defer func() { _ = stream.Close() }()
	var sb strings.Builder
	for {
		text, err := stream.Recv()
		if err == io.EOF {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(text)
	}
}
