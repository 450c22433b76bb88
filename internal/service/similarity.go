package service

import (
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
)

// SimilarityService decides whether two response bodies are close enough to be
// the same catch-all boilerplate. It diffs line-wise and scores the fraction
// of text left untouched by the edit script.
type SimilarityService struct {
	Threshold float64
}

func NewSimilarityService(threshold float64) *SimilarityService {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.85
	}
	return &SimilarityService{Threshold: threshold}
}

func (s *SimilarityService) IsSimilar(a, b string) bool {
	return s.Ratio(a, b) >= s.Threshold
}

// Ratio returns a similarity score in [0, 1]: 1 for identical inputs, 0 when
// the edit script rewrites everything.
func (s *SimilarityService) Ratio(a, b string) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 1
	}
	edits := myers.ComputeEdits(span.URIFromPath("body"), a, b)
	changed := 0
	for _, edit := range edits {
		changed += edit.Span.End().Offset() - edit.Span.Start().Offset()
		changed += len(edit.NewText)
	}
	ratio := 1 - float64(changed)/float64(total)
	if ratio < 0 {
		return 0
	}
	return ratio
}
