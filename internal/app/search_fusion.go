package app

import (
	"sort"

	"docexplorer/internal/keyword"
)

type fusedScore struct {
	id            string
	score         float64
	keywordScore  float64
	semanticScore float64
}

// normalizeKeywordScores scales bleve scores into [0,1] by the best hit.
func normalizeKeywordScores(results []keyword.Result) map[string]float64 {
	normalized := make(map[string]float64, len(results))
	if len(results) == 0 {
		return normalized
	}
	maxScore := results[0].Score
	for _, r := range results {
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}
	for _, r := range results {
		if maxScore > 0 {
			normalized[r.ID] = r.Score / maxScore
		} else {
			normalized[r.ID] = 0
		}
	}
	return normalized
}

// fuse merges keyword and semantic scores by weight, best first.
func fuse(keywordScores, semanticScores map[string]float64, kwWeight, semWeight float64) []fusedScore {
	merged := make(map[string]*fusedScore, len(keywordScores)+len(semanticScores))
	for id, score := range keywordScores {
		merged[id] = &fusedScore{id: id, keywordScore: score}
	}
	for id, score := range semanticScores {
		if f, ok := merged[id]; ok {
			f.semanticScore = score
		} else {
			merged[id] = &fusedScore{id: id, semanticScore: score}
		}
	}
	out := make([]fusedScore, 0, len(merged))
	for _, f := range merged {
		f.score = kwWeight*f.keywordScore + semWeight*f.semanticScore
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].id < out[j].id
	})
	return out
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
