package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"yakunote/internal/ai"
)

const (
	LangJapanese = "ja"
	LangEnglish  = "en"

	jaTruncationMarker = "...(テキストが長すぎるため、一部のみを要約しています)"
	jaTruncationNotice = "\n\n(注: 元のテキストが長すぎるため、最初の部分のみを要約しています)"
	enTruncationMarker = "...(Text is too long, only summarizing the first part)"
	enTruncationNotice = "\n\n(Note: The original text was too long, only the first part was summarized)"

	jaDetailedPrompt  = "以下の文章を内容を維持したまま、できるだけ詳しくわかりやすく要約してください。省略しすぎないようにしてください。"
	jaConcisePrompt   = "以下の文章を要約してください。簡潔にまとめてください。"
	enConcisePrompt   = "Please summarize the following text in English. Be concise."
	enStoredPrompt    = "Please summarize the following text in English."
	jaTranslatePrompt = "以下の文章を日本語に翻訳してください。"
	enTranslatePrompt = "Please translate the following text into English."

	defaultPrimaryModel  = "gpt-3.5-turbo-0125"
	defaultFallbackModel = "gpt-3.5-turbo"
	defaultBudget        = 4000
	defaultStoredBudget  = 12000
	summaryMaxTokens     = 1000
)

type modelCall struct {
	Model       string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// summaryProfile fixes the prompt, models and truncation rules of one summary flavour.
type summaryProfile struct {
	Name     string
	Budget   int
	Marker   string
	Notice   string
	Primary  modelCall
	Fallback *modelCall
}

type SummaryConfig struct {
	PrimaryModel          string
	FallbackModel         string
	SummaryMaxChars       int
	StoredSummaryMaxChars int
}

type SummaryService struct {
	llm      ai.Completer
	log      *slog.Logger
	japanese summaryProfile
	english  summaryProfile
	stored   summaryProfile
	model    string
}

func NewSummaryService(llm ai.Completer, cfg SummaryConfig, log *slog.Logger) *SummaryService {
	if log == nil {
		log = slog.Default()
	}
	primary := orDefault(cfg.PrimaryModel, defaultPrimaryModel)
	fallback := orDefault(cfg.FallbackModel, defaultFallbackModel)
	budget := cfg.SummaryMaxChars
	if budget <= 0 {
		budget = defaultBudget
	}
	storedBudget := cfg.StoredSummaryMaxChars
	if storedBudget <= 0 {
		storedBudget = defaultStoredBudget
	}

	return &SummaryService{
		llm: llm,
		log: log,
		japanese: summaryProfile{
			Name:     "summarize",
			Budget:   budget,
			Marker:   jaTruncationMarker,
			Notice:   jaTruncationNotice,
			Primary:  modelCall{Model: primary, Prompt: jaDetailedPrompt, Temperature: 0.5, MaxTokens: summaryMaxTokens},
			Fallback: &modelCall{Model: fallback, Prompt: jaConcisePrompt, Temperature: 0.7, MaxTokens: summaryMaxTokens},
		},
		english: summaryProfile{
			Name:     "summarize_english",
			Budget:   budget,
			Marker:   enTruncationMarker,
			Notice:   enTruncationNotice,
			Primary:  modelCall{Model: primary, Prompt: enConcisePrompt, Temperature: 0.7, MaxTokens: summaryMaxTokens},
			Fallback: &modelCall{Model: fallback, Prompt: enConcisePrompt, Temperature: 0.7, MaxTokens: summaryMaxTokens},
		},
		stored: summaryProfile{
			Name:    "summary_english",
			Budget:  storedBudget,
			Marker:  enTruncationMarker,
			Notice:  enTruncationNotice,
			Primary: modelCall{Model: fallback, Prompt: enStoredPrompt},
		},
		model: fallback,
	}
}

// Summarize produces a detailed Japanese summary.
func (s *SummaryService) Summarize(ctx context.Context, text string) (string, error) {
	return s.run(ctx, s.japanese, text)
}

// SummarizeEnglish produces a concise English summary.
func (s *SummaryService) SummarizeEnglish(ctx context.Context, text string) (string, error) {
	return s.run(ctx, s.english, text)
}

// ResummarizeEnglish summarizes a stored original text in English with the larger budget.
func (s *SummaryService) ResummarizeEnglish(ctx context.Context, text string) (string, error) {
	return s.run(ctx, s.stored, text)
}

func (s *SummaryService) Translate(ctx context.Context, text, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", invalid("text", "is required")
	}

	var prompt string
	switch target {
	case LangJapanese:
		prompt = jaTranslatePrompt
	case LangEnglish:
		prompt = enTranslatePrompt
	default:
		return "", invalid("targetLang", "must be ja or en")
	}

	out, err := s.complete(ctx, modelCall{Model: s.model, Prompt: prompt}, text)
	if err != nil {
		return "", fmt.Errorf("translate to %s failed: %w", target, err)
	}
	return out, nil
}

func (s *SummaryService) run(ctx context.Context, p summaryProfile, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", invalid("text", "is required")
	}

	input, truncated := Truncate(text, p.Budget, p.Marker)
	if truncated {
		s.log.InfoContext(ctx, "summary input truncated",
			"profile", p.Name,
			"chars", utf8.RuneCountInString(text),
			"budget", p.Budget,
		)
	}

	out, err := s.complete(ctx, p.Primary, input)
	if err != nil && p.Fallback != nil && ai.IsModelUnavailable(err) {
		s.log.WarnContext(ctx, "primary model unavailable, using fallback",
			"profile", p.Name,
			"primary", p.Primary.Model,
			"fallback", p.Fallback.Model,
			"error", err,
		)
		out, err = s.complete(ctx, *p.Fallback, input)
	}
	if err != nil {
		return "", fmt.Errorf("%s failed: %w", p.Name, err)
	}

	if truncated {
		out += p.Notice
	}
	return out, nil
}

func (s *SummaryService) complete(ctx context.Context, call modelCall, text string) (string, error) {
	return s.llm.Complete(ctx, ai.CompletionRequest{
		Model: call.Model,
		Messages: []ai.ChatMessage{
			{Role: ai.RoleSystem, Content: call.Prompt},
			{Role: ai.RoleUser, Content: text},
		},
		Temperature: call.Temperature,
		MaxTokens:   call.MaxTokens,
	})
}

// Truncate keeps the first budget code points of text and appends marker when anything was cut.
func Truncate(text string, budget int, marker string) (string, bool) {
	if budget <= 0 || utf8.RuneCountInString(text) <= budget {
		return text, false
	}
	runes := []rune(text)
	return string(runes[:budget]) + marker, true
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
