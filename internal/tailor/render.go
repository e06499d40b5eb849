package tailor

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"strings"

	"jobforge/internal/model"
)

//go:embed templates/resume.html
var resumeTemplateRaw string

var resumeTemplate = template.Must(template.New("resume").Parse(resumeTemplateRaw))

// resumeView is the typed projection of a JSON-Resume document that the
// HTML template renders. Unknown sections in the document are simply not
// rendered; they still round-trip through storage untouched.
type resumeView struct {
	Basics    *basicsView
	Work      []entryView
	Skills    []skillView
	Education []educationView
	Projects  []entryView
}

type basicsView struct {
	Name     string
	Label    string
	Email    string
	Phone    string
	Location string
	Summary  string
}

type entryView struct {
	Name        string
	Position    string
	StartDate   string
	EndDate     string
	Summary     string
	Description string
	Highlights  []string
}

type skillView struct {
	Name     string
	Keywords []string
}

type educationView struct {
	Institution string
	Area        string
	StudyType   string
	StartDate   string
	EndDate     string
}

// RenderHTML renders the document through the embedded resume template.
func RenderHTML(doc model.ResumeDocument) (string, error) {
	var buf bytes.Buffer
	if err := resumeTemplate.Execute(&buf, buildView(doc)); err != nil {
		return "", fmt.Errorf("render resume template: %w", err)
	}
	return buf.String(), nil
}

func buildView(doc model.ResumeDocument) resumeView {
	var v resumeView

	if basics, ok := doc["basics"].(map[string]any); ok {
		b := basicsView{
			Name:    str(basics, "name"),
			Label:   str(basics, "label"),
			Email:   str(basics, "email"),
			Phone:   str(basics, "phone"),
			Summary: str(basics, "summary"),
		}
		if loc, ok := basics["location"].(map[string]any); ok {
			parts := []string{}
			for _, k := range []string{"city", "region", "countryCode"} {
				if s := str(loc, k); s != "" {
					parts = append(parts, s)
				}
			}
			b.Location = strings.Join(parts, ", ")
		}
		v.Basics = &b
	}

	for _, e := range entries(doc, "work") {
		v.Work = append(v.Work, entryView{
			Name:       str(e, "name"),
			Position:   str(e, "position"),
			StartDate:  str(e, "startDate"),
			EndDate:    str(e, "endDate"),
			Summary:    str(e, "summary"),
			Highlights: strs(e, "highlights"),
		})
	}

	for _, e := range entries(doc, "skills") {
		v.Skills = append(v.Skills, skillView{
			Name:     str(e, "name"),
			Keywords: strs(e, "keywords"),
		})
	}

	for _, e := range entries(doc, "education") {
		v.Education = append(v.Education, educationView{
			Institution: str(e, "institution"),
			Area:        str(e, "area"),
			StudyType:   str(e, "studyType"),
			StartDate:   str(e, "startDate"),
			EndDate:     str(e, "endDate"),
		})
	}

	for _, e := range entries(doc, "projects") {
		v.Projects = append(v.Projects, entryView{
			Name:        str(e, "name"),
			Description: str(e, "description"),
			Highlights:  strs(e, "highlights"),
		})
	}

	return v
}

func entries(doc model.ResumeDocument, key string) []map[string]any {
	raw, ok := doc[key].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func strs(m map[string]any, key string) []string {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
