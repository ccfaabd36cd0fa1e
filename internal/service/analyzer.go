package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mwanachuomind/backend/internal/domain"
)

// analysisSystemPrompt pins the model to the study-metadata task and the
// exact JSON shape the parser expects.
const analysisSystemPrompt = `You are an academic content analyzer for university course notes.
Analyze the provided document text and return ONLY a JSON object with this exact shape:
{"concepts": [{"term": "", "definition": "", "page": 1}], "flashcards": [{"question": "", "answer": "", "difficulty": "medium"}], "tags": [], "summary": ""}

Rules:
- "concepts": the key terms a student must know, each with a concise definition from the text.
- "flashcards": revision question/answer pairs; "difficulty" is one of "easy", "medium" or "hard".
- "tags": short topic labels for the document.
- "summary": 2-3 sentences describing what the document covers.
- Return valid JSON only, no markdown fences, no commentary.`

// AnalysisClient runs a non-streaming completion.
type AnalysisClient interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// NoteAnalysisService produces the study-metadata enrichment for a note:
// key concepts, flashcards, tags and a summary.
type NoteAnalysisService struct {
	llm AnalysisClient
}

// NewNoteAnalysisService creates a new NoteAnalysisService instance
func NewNoteAnalysisService(llm AnalysisClient) *NoteAnalysisService {
	return &NoteAnalysisService{llm: llm}
}

// analysisPayload mirrors the JSON shape the model is instructed to return.
type analysisPayload struct {
	Concepts []struct {
		Term       string `json:"term"`
		Definition string `json:"definition"`
		Page       int    `json:"page"`
	} `json:"concepts"`
	Flashcards []struct {
		Question   string `json:"question"`
		Answer     string `json:"answer"`
		Difficulty string `json:"difficulty"`
	} `json:"flashcards"`
	Tags    []string `json:"tags"`
	Summary string   `json:"summary"`
}

// Analyze runs the structured analysis call over extracted note text.
func (s *NoteAnalysisService) Analyze(ctx context.Context, text string) (*domain.NoteAnalysis, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.NewAnalysisError("no text to analyze", nil)
	}

	raw, err := s.llm.Complete(ctx, analysisSystemPrompt, text)
	if err != nil {
		return nil, domain.NewAnalysisError("analysis call failed", err)
	}

	var payload analysisPayload
	if err := json.Unmarshal([]byte(stripJSONFences(raw)), &payload); err != nil {
		return nil, domain.NewAnalysisError("analysis response is not valid JSON", err)
	}

	analysis := &domain.NoteAnalysis{
		Tags:    payload.Tags,
		Summary: strings.TrimSpace(payload.Summary),
	}
	for _, c := range payload.Concepts {
		if strings.TrimSpace(c.Term) == "" {
			continue
		}
		page := c.Page
		if page <= 0 {
			page = 1
		}
		analysis.Concepts = append(analysis.Concepts, domain.NoteConcept{
			Term:       c.Term,
			Definition: c.Definition,
			Page:       page,
		})
	}
	for _, f := range payload.Flashcards {
		if strings.TrimSpace(f.Question) == "" {
			continue
		}
		analysis.Flashcards = append(analysis.Flashcards, domain.NoteFlashcard{
			Question:   f.Question,
			Answer:     f.Answer,
			Difficulty: normalizeDifficulty(f.Difficulty),
		})
	}

	return analysis, nil
}

// stripJSONFences removes markdown code fences some models wrap JSON in
// despite instructions.
func stripJSONFences(raw string) string {
	out := strings.TrimSpace(raw)
	out = strings.TrimPrefix(out, "```json")
	out = strings.TrimPrefix(out, "```")
	out = strings.TrimSuffix(out, "```")
	return strings.TrimSpace(out)
}

func normalizeDifficulty(d string) string {
	switch strings.ToLower(strings.TrimSpace(d)) {
	case "easy":
		return "easy"
	case "hard":
		return "hard"
	default:
		return "medium"
	}
}

func fmtAnalysisSummary(a *domain.NoteAnalysis) string {
	return fmt.Sprintf("%d concepts, %d flashcards", len(a.Concepts), len(a.Flashcards))
}
