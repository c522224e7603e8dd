package prompts

import (
	"strings"
	"testing"
)

func newManager(t *testing.T) *PromptManager {
	t.Helper()
	pm, err := NewPromptManager()
	if err != nil {
		t.Fatalf("NewPromptManager returned error: %v", err)
	}
	return pm
}

func TestTemplatesLoaded(t *testing.T) {
	pm := newManager(t)
	for mode, variants := range map[string][]string{
		ModeQuestion:       {StageOpening, StageTechnical, StageCareer, StageClosing},
		ModeEvaluation:     {DefaultVariant},
		ModeAnswerFeedback: {DefaultVariant},
	} {
		for _, v := range variants {
			if _, ok := pm.prompts[mode][v]; !ok {
				t.Fatalf("missing template %s/%s", mode, v)
			}
		}
	}
}

func TestBuildQuestionPrompt(t *testing.T) {
	pm := newManager(t)
	data := QuestionData{
		Job:            Job{Title: "Backend Engineer", Description: "Go services", ExperienceLevel: "senior"},
		Difficulty:     "hard",
		QuestionNumber: 3,
		MaxQuestions:   10,
		CandidateName:  "Sam",
	}

	got, err := pm.BuildPrompt(ModeQuestion, StageTechnical, "zh", data)
	if err != nil {
		t.Fatalf("BuildPrompt returned error: %v", err)
	}
	for _, want := range []string{"Backend Engineer", "question 3 of 10", "hard technical question", "Respond in Chinese."} {
		if !strings.Contains(got, want) {
			t.Fatalf("prompt missing %q:\n%s", want, got)
		}
	}
}

func TestBuildPromptUnknownLanguageFallsBack(t *testing.T) {
	pm := newManager(t)
	got, err := pm.BuildPrompt(ModeAnswerFeedback, DefaultVariant, "fr", AnswerFeedbackData{Question: "q", Answer: "a"})
	if err != nil {
		t.Fatalf("BuildPrompt returned error: %v", err)
	}
	if !strings.HasSuffix(got, "Respond in English.") {
		t.Fatalf("expected english fallback, got:\n%s", got)
	}
	if !strings.Contains(got, "a software role") {
		t.Fatalf("expected default title, got:\n%s", got)
	}
}

func TestBuildPromptErrors(t *testing.T) {
	pm := newManager(t)
	if _, err := pm.BuildPrompt("missing", DefaultVariant, "en", nil); err == nil {
		t.Fatal("expected error for unknown mode")
	}
	if _, err := pm.BuildPrompt(ModeQuestion, "missing", "en", QuestionData{}); err == nil {
		t.Fatal("expected error for unknown variant")
	}
	if _, err := pm.BuildPrompt(ModeEvaluation, DefaultVariant, "en", struct{}{}); err == nil {
		t.Fatal("expected error for mismatched data")
	}
}

func TestQuestionStage(t *testing.T) {
	cases := map[int]string{
		1:  StageOpening,
		2:  StageTechnical,
		7:  StageTechnical,
		8:  StageCareer,
		9:  StageCareer,
		10: StageClosing,
		11: StageClosing,
	}
	for n, want := range cases {
		if got := QuestionStage(n, 10); got != want {
			t.Fatalf("question %d: expected %s, got %s", n, want, got)
		}
	}
}
