package chillm

import (
	"context"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/thushan/chillm/internal/core/domain"
)

const (
	DefaultSummarySentences = 3
	DefaultTargetLanguage   = "English"
	DefaultExtractFormat    = "json"
	defaultAnalyzeQuestion  = "Analyze this code and explain what it does"

	maxAnalyzeChars = 20000
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func AskPrompt(question, background string) string {
	if background != "" {
		return fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nAnswer:", background, question)
	}
	return fmt.Sprintf("Question: %s\n\nAnswer:", question)
}

func SummarizePrompt(text string, maxSentences int) string {
	if maxSentences <= 0 {
		maxSentences = DefaultSummarySentences
	}
	return fmt.Sprintf("Summarize this text in %d sentences:\n\n%s\n\nSummary:", maxSentences, text)
}

func TranslatePrompt(text, targetLanguage string) string {
	if targetLanguage == "" {
		targetLanguage = DefaultTargetLanguage
	}
	return fmt.Sprintf("Translate this text to %s:\n\n%s\n\nTranslation:", targetLanguage, text)
}

func ClassifyPrompt(text string, categories []string) string {
	return fmt.Sprintf("Classify this text into one of these categories [%s]:\n\n%s\n\nCategory:",
		strings.Join(categories, ", "), text)
}

// ExtractPrompt renders schema as compact JSON when one is given.
func ExtractPrompt(text, format string, schema map[string]any) string {
	if format == "" {
		format = DefaultExtractFormat
	}
	var sb strings.Builder
	sb.WriteString("Extract information from this text and return as ")
	sb.WriteString(format)
	if len(schema) > 0 {
		if encoded, err := json.MarshalToString(schema); err == nil {
			sb.WriteString(" following this structure: ")
			sb.WriteString(encoded)
		}
	}
	fmt.Fprintf(&sb, ":\n\n%s\n\nExtracted %s:", text, format)
	return sb.String()
}

// AnalyzeInput trims oversized code and fills the default question.
func AnalyzeInput(code, question string) (string, string) {
	if len(code) > maxAnalyzeChars {
		code = code[:maxAnalyzeChars] + "\n... (truncated)"
	}
	if question == "" {
		question = defaultAnalyzeQuestion
	}
	return code, question
}

// Ask answers question, grounded on background when it is not empty.
func (l *LLM) Ask(ctx context.Context, question, background string) (string, error) {
	return l.Generate(ctx, AskPrompt(question, background))
}

func (l *LLM) Summarize(ctx context.Context, text string, maxSentences int) (string, error) {
	return l.GenerateWith(ctx, SummarizePrompt(text, maxSentences), GenerateOptions{Temperature: domain.Float64(0.3)})
}

func (l *LLM) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	return l.GenerateWith(ctx, TranslatePrompt(text, targetLanguage), GenerateOptions{Temperature: domain.Float64(0.1)})
}

func (l *LLM) Classify(ctx context.Context, text string, categories []string) (string, error) {
	return l.GenerateWith(ctx, ClassifyPrompt(text, categories), GenerateOptions{
		Temperature: domain.Float64(0.1),
		MaxTokens:   domain.Int(50),
	})
}

func (l *LLM) Extract(ctx context.Context, text, format string, schema map[string]any) (string, error) {
	return l.GenerateWith(ctx, ExtractPrompt(text, format, schema), GenerateOptions{Temperature: domain.Float64(0.1)})
}

// Analyze asks a question about code; the question defaults to a general explanation.
func (l *LLM) Analyze(ctx context.Context, code, question string) (string, error) {
	code, question = AnalyzeInput(code, question)
	return l.GenerateWith(ctx, AskPrompt(question, code), GenerateOptions{Temperature: domain.Float64(0.3)})
}
