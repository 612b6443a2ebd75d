// Package prompts holds the built-in prompt templates and result definitions
// for the transcription and entity-extraction tasks.
package prompts

import (
	"bytes"
	_ "embed"
	"text/template"

	"github.com/wjbmattingly/iiif-htr/schema"
)

//go:embed transcription.tmpl
var transcriptionTmpl string

//go:embed entities.tmpl
var entitiesTmpl string

var (
	transcriptionTemplate = template.Must(template.New("transcription").Parse(transcriptionTmpl))
	entitiesTemplate      = template.Must(template.New("entities").Parse(entitiesTmpl))
)

type promptData struct {
	FieldList string
	Label     string
	Text      string
}

// Transcription returns the result definition for handwritten-text
// transcription. The human_remains marker follows archival cataloguing
// practice for flagging sensitive records.
func Transcription() schema.Definition {
	return schema.Definition{
		Name: "transcription",
		Fields: []schema.Field{
			{
				Name:        "transcription",
				Type:        "string",
				Description: "Full transcription of the text on the page, preserving line breaks",
			},
			{
				Name:        "human_remains",
				Type:        "string",
				Description: "Note on any mention of human remains in the record, null when none is present",
				Optional:    true,
				Nullable:    true,
			},
		},
	}
}

// Entities returns the result definition for entity extraction from a
// transcribed page.
func Entities() schema.Definition {
	return schema.Definition{
		Name: "entities",
		Fields: []schema.Field{
			{Name: "people", Type: "array", Items: "string", Description: "Personal names mentioned on the page"},
			{Name: "places", Type: "array", Items: "string", Description: "Place names mentioned on the page"},
			{Name: "dates", Type: "array", Items: "string", Description: "Dates mentioned on the page, as written"},
		},
	}
}

// TranscriptionPrompt renders the transcription prompt for one page. The
// label, when present, gives the model the page's catalogue context.
func TranscriptionPrompt(def schema.Definition, label string) string {
	return render(transcriptionTemplate, transcriptionTmpl, promptData{
		FieldList: def.Description(),
		Label:     label,
	})
}

// EntitiesPrompt renders the entity-extraction prompt for a transcription.
func EntitiesPrompt(def schema.Definition, text string) string {
	return render(entitiesTemplate, entitiesTmpl, promptData{
		FieldList: def.Description(),
		Text:      text,
	})
}

// render executes the template, falling back to the raw template text on
// error so a bad template never blocks a batch.
func render(tmpl *template.Template, raw string, data promptData) string {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return raw
	}
	return buf.String()
}
