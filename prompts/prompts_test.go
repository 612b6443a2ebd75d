package prompts

import (
	"strings"
	"testing"
)

func TestTranscriptionPrompt_SplicesFieldList(t *testing.T) {
	def := Transcription()
	prompt := TranscriptionPrompt(def, "Page 4")

	if !strings.Contains(prompt, `catalogued as "Page 4"`) {
		t.Fatalf("prompt should mention the label:\n%s", prompt)
	}
	for _, f := range def.Fields {
		if !strings.Contains(prompt, f.Name+": "+f.Type) {
			t.Fatalf("prompt should list field %q:\n%s", f.Name, prompt)
		}
	}
}

func TestTranscriptionPrompt_EmptyLabelOmitted(t *testing.T) {
	prompt := TranscriptionPrompt(Transcription(), "")
	if strings.Contains(prompt, "catalogued") {
		t.Fatalf("prompt should not mention cataloguing without a label:\n%s", prompt)
	}
}

func TestEntitiesPrompt_IncludesTranscription(t *testing.T) {
	def := Entities()
	prompt := EntitiesPrompt(def, "June 3rd. Collected specimens near Fort Yukon with Mr. Lockhart.")

	if !strings.Contains(prompt, "Fort Yukon") {
		t.Fatalf("prompt should carry the transcription text:\n%s", prompt)
	}
	for _, name := range []string{"people", "places", "dates"} {
		if !strings.Contains(prompt, name+": array") {
			t.Fatalf("prompt should list field %q:\n%s", name, prompt)
		}
	}
}

func TestBuiltinDefinitions_Validate(t *testing.T) {
	if err := Transcription().Validate([]byte(`{"transcription":"hello","human_remains":null}`)); err != nil {
		t.Fatalf("transcription definition rejects valid record: %v", err)
	}
	if err := Entities().Validate([]byte(`{"people":[],"places":["Fort Yukon"],"dates":["June 3rd"]}`)); err != nil {
		t.Fatalf("entities definition rejects valid record: %v", err)
	}
}
