package service

import (
	"encoding/json"
	"strings"
)

// Result is the outcome of a structured generation. Fallback is set when the
// model reply could not be parsed and Payload holds the canned default.
type Result[T any] struct {
	Payload  T
	Fallback bool
}

func Parsed[T any](v T) Result[T] {
	return Result[T]{Payload: v}
}

func FallbackOf[T any](v T) Result[T] {
	return Result[T]{Payload: v, Fallback: true}
}

// stripFences removes a surrounding markdown code fence from a model reply.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func decodeStructured[T any](raw string, dst *T) error {
	return json.Unmarshal([]byte(stripFences(raw)), dst)
}
