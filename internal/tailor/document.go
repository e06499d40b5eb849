package tailor

import (
	"strings"

	"jobforge/internal/model"
)

// conformDocument forces the generated document into the base profile's
// top-level structure: missing keys are restored from the base, keys the
// base does not have are dropped, and basics must stay an object. The model
// may rearrange content inside sections, never the section set itself.
func conformDocument(base, generated model.ResumeDocument) model.ResumeDocument {
	out := make(model.ResumeDocument, len(base))
	for key, baseVal := range base {
		genVal, ok := generated[key]
		if !ok || genVal == nil {
			out[key] = baseVal
			continue
		}
		if key == "basics" {
			if _, isMap := genVal.(map[string]any); !isMap {
				out[key] = baseVal
				continue
			}
		}
		out[key] = genVal
	}
	return out
}

// applyFabricationGuard drops generated skills and highlights whose content
// has no lexical support in the base profile. Tailoring reorders and
// rephrases; it never gets to introduce facts.
func applyFabricationGuard(base, doc model.ResumeDocument) model.ResumeDocument {
	corpus := strings.ToLower(strings.Join(collectStrings(base), "\n"))

	if skills, ok := doc["skills"].([]any); ok {
		doc["skills"] = guardSkills(skills, corpus)
	}
	for _, section := range []string{"work", "projects"} {
		entries, ok := doc[section].([]any)
		if !ok {
			continue
		}
		for _, e := range entries {
			entry, ok := e.(map[string]any)
			if !ok {
				continue
			}
			if highlights, ok := entry["highlights"].([]any); ok {
				entry["highlights"] = guardHighlights(highlights, corpus)
			}
		}
	}
	return doc
}

func guardSkills(skills []any, corpus string) []any {
	kept := make([]any, 0, len(skills))
	for _, s := range skills {
		switch skill := s.(type) {
		case string:
			if strings.Contains(corpus, strings.ToLower(skill)) {
				kept = append(kept, skill)
			}
		case map[string]any:
			name, _ := skill["name"].(string)
			nameKnown := name != "" && strings.Contains(corpus, strings.ToLower(name))

			var keptKeywords []any
			if keywords, ok := skill["keywords"].([]any); ok {
				for _, kw := range keywords {
					if str, ok := kw.(string); ok && strings.Contains(corpus, strings.ToLower(str)) {
						keptKeywords = append(keptKeywords, str)
					}
				}
				skill["keywords"] = keptKeywords
			}
			if nameKnown || len(keptKeywords) > 0 {
				kept = append(kept, skill)
			}
		}
	}
	return kept
}

// guardHighlights keeps a rephrased highlight when most of its substantive
// words trace back to the base profile.
func guardHighlights(highlights []any, corpus string) []any {
	kept := make([]any, 0, len(highlights))
	for _, h := range highlights {
		str, ok := h.(string)
		if !ok {
			continue
		}
		if highlightSupported(str, corpus) {
			kept = append(kept, str)
		}
	}
	return kept
}

func highlightSupported(highlight, corpus string) bool {
	words := strings.Fields(strings.ToLower(highlight))
	substantive, matched := 0, 0
	for _, w := range words {
		w = strings.Trim(w, ".,;:()%")
		if len(w) <= 3 {
			continue
		}
		substantive++
		if strings.Contains(corpus, w) {
			matched++
		}
	}
	if substantive == 0 {
		return false
	}
	return matched*2 >= substantive
}

// collectStrings walks the document and gathers every string value.
func collectStrings(v any) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case map[string]any:
		var out []string
		for _, item := range val {
			out = append(out, collectStrings(item)...)
		}
		return out
	case model.ResumeDocument:
		var out []string
		for _, item := range val {
			out = append(out, collectStrings(item)...)
		}
		return out
	case []any:
		var out []string
		for _, item := range val {
			out = append(out, collectStrings(item)...)
		}
		return out
	default:
		return nil
	}
}
