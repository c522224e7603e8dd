package models

// message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// interview languages
const (
	LanguageChinese = "zh"
	LanguageEnglish = "en"
)

// language model choices, fixed at interview creation
const (
	ModelGemini   = "gemini"
	ModelDeepSeek = "deepseek"
)

const (
	DefaultLanguage        = LanguageChinese
	DefaultModel           = ModelGemini
	DefaultDifficulty      = "medium"
	DefaultExperienceLevel = "junior"
	DefaultCandidateName   = "Candidate"
)

var SupportedLanguages = map[string]bool{
	LanguageChinese: true,
	LanguageEnglish: true,
}

var SupportedModels = map[string]bool{
	ModelGemini:   true,
	ModelDeepSeek: true,
}

var ValidDifficulties = map[string]bool{
	"easy":   true,
	"medium": true,
	"hard":   true,
}

var ValidExperienceLevels = map[string]bool{
	"junior":    true,
	"mid-level": true,
	"senior":    true,
}

func SupportedLanguagesList() []string {
	return []string{LanguageChinese, LanguageEnglish}
}

func SupportedModelsList() []string {
	return []string{ModelGemini, ModelDeepSeek}
}
