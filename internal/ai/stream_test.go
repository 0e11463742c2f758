package ai

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type trackingBody struct {
	io.Reader
	closed int
}

func (b *trackingBody) Close() error {
	b.closed++
	return nil
}

func TestSSEStream_SkipsMalformedAndEmptyFragments(t *testing.T) {
	body := &trackingBody{Reader: strings.NewReader(strings.Join([]string{
		": keep-alive",
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		"",
		`data: {"choices":[{"delta":`,
		`data: {"choices":[{"delta":{"content":""}}]}`,
		`data: {"choices":[]}`,
		`data: {"choices":[{"delta":{"content":"lo"}}]}`,
		"data: [DONE]",
		`data: {"choices":[{"delta":{"content":"ignored"}}]}`,
	}, "\n"))}
	stream := newSSEStream(body, extractOpenAIDelta, nil)

	text, err := Collect(stream)
	require.NoError(t, err)
	require.Equal(t, "Hello", text)
	require.Equal(t, 1, body.closed)
}

func TestSSEStream_EOFWithoutSentinel(t *testing.T) {
	body := &trackingBody{Reader: strings.NewReader(`data: {"choices":[{"delta":{"content":"partial"}}]}`)}
	stream := newSSEStream(body, extractOpenAIDelta, nil)

	text, err := stream.Recv()
	require.NoError(t, err)
	require.Equal(t, "partial", text)
	_, err = stream.Recv()
	require.ErrorIs(t, err, io.EOF)
}

func TestSSEStream_CloseIsIdempotent(t *testing.T) {
	body := &trackingBody{Reader: strings.NewReader(`data: {"choices":[{"delta":{"content":"a"}}]}` + "\n")}
	stream := newSSEStream(body, extractOpenAIDelta, nil)

	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close())
	require.Equal(t, 1, body.closed)

	_, err := stream.Recv()
	require.ErrorIs(t, err, io.EOF)
}

func TestChatRequest_SplitSystem(t *testing.T) {
	req := &ChatRequest{Messages: []Message{
		{Role: RoleSystem, Content: "ctx"},
		{Role: RoleUser, Content: "q"},
	}}
	system, msgs := req.splitSystem()
	require.Equal(t, "ctx", system)
	require.Equal(t, []Message{{Role: RoleUser, Content: "q"}}, msgs)

	req.SystemPrompt = "explicit"
	req.Messages = append(req.Messages, Message{Role: RoleSystem, Content: "more"})
	system, msgs = req.splitSystem()
	require.Equal(t, "explicit\n\nctx\n\nmore", system)
	require.Equal(t, []Message{{Role: RoleUser, Content: "q"}}, msgs)
}

func TestSSEStream_OpenAIErrorChunkFailsStream(t *testing.T) {
	body := &trackingBody{Reader: strings.NewReader(strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"Hi "}}]}`,
		`data: {"error":{"message":"The server had an error","type":"server_error"}}`,
		`data: {"choices":[{"delta":{"content":"never"}}]}`,
	}, "\n"))}
	stream := newSSEStream(body, extractOpenAIDelta, nil)

	text, err := Collect(stream)
	require.Equal(t, "Hi ", text)
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "openai", perr.Provider)
	require.Contains(t, err.Error(), "server_error: The server had an error")
	require.Equal(t, 1, body.closed)

	_, err = stream.Recv()
	require.ErrorIs(t, err, io.EOF)
}
