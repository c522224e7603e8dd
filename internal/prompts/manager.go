package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// embeds all .yaml files in the templates folder into Go program at compile time
//
//go:embed templates/*.yaml
var templateFS embed.FS

// prompt modes, one per template file
const (
	ModeQuestion       = "question"
	ModeEvaluation     = "evaluation"
	ModeAnswerFeedback = "answer_feedback"
)

// question stages
const (
	StageOpening   = "opening"
	StageTechnical = "technical"
	StageCareer    = "career"
	StageClosing   = "closing"
)

// DefaultVariant is used by modes that have a single body.
const DefaultVariant = "default"

type PromptManager struct {
	prompts map[string]map[string]*template.Template // mode -> variant -> compiled prompt
	outputs map[string]map[string]string             // mode -> language -> output instruction
}

// loaded prompt template
type PromptTemplate struct {
	BasePrompt string            `yaml:"base_prompt"`
	Variants   map[string]string `yaml:"variants"`
	Languages  map[string]string `yaml:"languages"`
}

// Job is the job posting section shared by all prompts.
type Job struct {
	Title           string
	Description     string
	ExperienceLevel string
}

type QuestionData struct {
	Job            Job
	Difficulty     string
	QuestionNumber int
	MaxQuestions   int
	CandidateName  string
}

type EvaluationData struct {
	Job             Job
	CandidateName   string
	DurationMinutes int
	Transcript      string
}

type AnswerFeedbackData struct {
	Job      Job
	Question string
	Answer   string
}

// creates a new prompt manager and loads templates
func NewPromptManager() (*PromptManager, error) {
	pm := &PromptManager{
		prompts: make(map[string]map[string]*template.Template),
		outputs: make(map[string]map[string]string),
	}

	if err := pm.loadPrompts(); err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}

	return pm, nil
}

// BuildPrompt renders the prompt for mode/variant with data and appends the output
// language instruction. Unknown languages fall back to English.
func (pm *PromptManager) BuildPrompt(mode, variant, language string, data any) (string, error) {
	modePrompts, exists := pm.prompts[mode]
	if !exists {
		return "", fmt.Errorf("template not found for mode: %s", mode)
	}

	tmpl, exists := modePrompts[variant]
	if !exists {
		return "", fmt.Errorf("variant '%s' not found for mode '%s'", variant, mode)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s/%s: %w", mode, variant, err)
	}

	langs := pm.outputs[mode]
	instruction, ok := langs[language]
	if !ok {
		instruction = langs["en"]
	}
	if instruction != "" {
		buf.WriteString("\n\n")
		buf.WriteString(instruction)
	}
	return strings.TrimSpace(buf.String()), nil
}

// QuestionStage picks the prompt variant for question n of an interview capped at limit.
func QuestionStage(n, limit int) string {
	switch {
	case n <= 1:
		return StageOpening
	case n >= limit:
		return StageClosing
	case n >= limit-2:
		return StageCareer
	default:
		return StageTechnical
	}
}

// loadPrompts loads all YAML prompt files from the embedded filesystem
func (pm *PromptManager) loadPrompts() error {
	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		return fmt.Errorf("failed to read templates directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		data, err := templateFS.ReadFile("templates/" + entry.Name())
		if err != nil {
			return fmt.Errorf("failed to read template file %s: %w", entry.Name(), err)
		}

		var promptTemplate PromptTemplate
		if err := yaml.Unmarshal(data, &promptTemplate); err != nil {
			return fmt.Errorf("failed to parse template file %s: %w", entry.Name(), err)
		}

		name := strings.TrimSuffix(entry.Name(), ".yaml")
		pm.prompts[name] = make(map[string]*template.Template)
		pm.outputs[name] = promptTemplate.Languages

		for variant, body := range promptTemplate.Variants {
			var full strings.Builder
			if promptTemplate.BasePrompt != "" {
				full.WriteString(promptTemplate.BasePrompt)
				full.WriteString("\n\n")
			}
			full.WriteString(body)

			tmpl, err := template.New(name + "/" + variant).Option("missingkey=error").Parse(full.String())
			if err != nil {
				return fmt.Errorf("failed to compile %s/%s: %w", name, variant, err)
			}
			pm.prompts[name][variant] = tmpl
		}
	}

	return nil
}
