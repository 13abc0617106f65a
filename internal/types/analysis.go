package types

import "strings"

type Analysis struct {
	Title         string   `json:"title" validate:"required,max=200"`
	Description   string   `json:"description" validate:"max=5000"`
	Tags          []string `json:"tags" validate:"dive,required,max=50"`
	AISuggestions []string `json:"ai_suggestions"`
	Version       int      `json:"version"`
}

func (a Analysis) Clone() Analysis {
	out := a
	out.Tags = append([]string{}, a.Tags...)
	out.AISuggestions = append([]string{}, a.AISuggestions...)
	return out
}

// NormalizeTags lowercases and trims every tag. Order is preserved and
// duplicates are dropped.
func NormalizeTags(tags []string) []string {
	return MergeTags(nil, tags)
}

// MergeTags appends the normalized form of extra to base, skipping tags
// already present.
func MergeTags(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]struct{}, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, t := range list {
			t = strings.ToLower(strings.TrimSpace(t))
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}

	return out
}
