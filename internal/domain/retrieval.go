package domain

// ScopeFilters narrows retrieval to a course, a single document, or a single
// note. All fields are optional and composable; empty means unscoped.
type ScopeFilters struct {
	CourseID   string
	DocumentID string
	NoteID     string
}

// EntityID returns the single-document filter when the scope names one
// directly. Note scope and document scope both resolve to a document row.
func (f ScopeFilters) EntityID() string {
	if f.DocumentID != "" {
		return f.DocumentID
	}
	return f.NoteID
}

// RetrievalRequest describes one similarity search.
type RetrievalRequest struct {
	Query     string
	Filters   ScopeFilters
	TopK      int
	Threshold float32
}

// RetrievedChunk is a similarity search hit. Results are ordered by
// descending score; ties within the same source break on ascending index.
type RetrievedChunk struct {
	DocumentID  string
	ChunkIndex  int
	Content     string
	SourceTitle string
	Score       float64
}
