package service

import (
	"fmt"
	"strings"
)

// ChunkConfig controls how extracted text is split for embedding.
type ChunkConfig struct {
	// Size is the window length in characters.
	Size int
	// Overlap is the number of characters shared by consecutive windows.
	// Must be strictly smaller than Size.
	Overlap int
	// MinChars drops fragments below this length after trimming.
	MinChars int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:     1000,
		Overlap:  200,
		MinChars: 50,
	}
}

// Validate reports configuration errors. An overlap that is not strictly
// smaller than the window size would make the window start never advance.
func (cfg ChunkConfig) Validate() error {
	if cfg.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", cfg.Size)
	}
	if cfg.Overlap < 0 {
		return fmt.Errorf("chunk overlap cannot be negative, got %d", cfg.Overlap)
	}
	if cfg.Overlap >= cfg.Size {
		return fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", cfg.Overlap, cfg.Size)
	}
	if cfg.MinChars < 0 {
		return fmt.Errorf("chunk min chars cannot be negative, got %d", cfg.MinChars)
	}
	return nil
}

// SplitText splits text into overlapping fixed-size windows. Chunk i covers
// the character range [i*(Size-Overlap), i*(Size-Overlap)+Size). Fragments
// shorter than MinChars after trimming are dropped and the survivors keep
// their relative order, re-numbered densely by the caller. The function is
// pure: identical input always yields the identical sequence.
func SplitText(text string, cfg ChunkConfig) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := cfg.Size - cfg.Overlap
	chunks := make([]string, 0, (len(runes)/step)+1)

	for start := 0; start < len(runes); start += step {
		end := start + cfg.Size
		if end > len(runes) {
			end = len(runes)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if len([]rune(chunk)) >= cfg.MinChars && chunk != "" {
			chunks = append(chunks, chunk)
		}
	}

	return chunks
}
