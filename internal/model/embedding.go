package model

const (
	EmbedKindNote   = "note"
	EmbedKindSource = "source"
)

// EmbedTarget identifies a row whose embedding should be recomputed.
type EmbedTarget struct {
	Kind    string
	ID      string
	OwnerID string
}

// EmbedCandidate carries the text needed to compute an embedding.
type EmbedCandidate struct {
	EmbedTarget
	Text string
}

// VectorQuery drives a similarity search. Rows below Threshold are dropped
// and ExcludeID, when set, is never returned.
type VectorQuery struct {
	OwnerID         string
	Vector          []float32
	Threshold       float64
	Limit           int
	ExcludeID       string
	IncludeArchived bool
}
