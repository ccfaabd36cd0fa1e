package domain

// NoteConcept is a key term the model identified in a note, with the passage
// that defines it.
type NoteConcept struct {
	Term       string
	Definition string
	Page       int
}

// NoteFlashcard is a generated question/answer pair for revision. Difficulty
// is one of easy, medium or hard.
type NoteFlashcard struct {
	Question   string
	Answer     string
	Difficulty string
}

// NoteAnalysis is the study-metadata enrichment produced for a note during
// ingestion. Concepts and flashcards are replaced wholesale on reprocessing,
// like chunks; the summary lands on the document record itself.
type NoteAnalysis struct {
	Concepts   []NoteConcept
	Flashcards []NoteFlashcard
	Tags       []string
	Summary    string
}
