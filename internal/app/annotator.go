package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"review_hub/internal/adapters/observability"
	"review_hub/internal/domain"
)

const (
	systemPrompt = "You are a helpful assistant that analyzes reviews and generates professional, on-brand responses for local businesses."

	classifyTemperature = 0.1
	draftTemperature    = 0.6
	maxTokens           = 200
)

var ErrDraftingDisabled = errors.New("no text generation provider configured")

// Annotator labels sentiment and drafts owner replies. With a nil generator,
// classification falls back to neutral and drafting fails.
type Annotator struct {
	gen domain.TextGenerator
	log zerolog.Logger
}

func NewAnnotator(gen domain.TextGenerator, log zerolog.Logger) *Annotator {
	return &Annotator{gen: gen, log: log}
}

// Enabled reports whether a generation provider is configured.
func (a *Annotator) Enabled() bool { return a.gen != nil }

// ClassifySentiment never fails: call errors and off-label answers resolve to neutral.
func (a *Annotator) ClassifySentiment(ctx context.Context, text string) domain.Sentiment {
	if a.gen == nil {
		return domain.SentimentNeutral
	}
	prompt := fmt.Sprintf("Analyze the sentiment of this review and respond with only one word: positive, negative, or neutral.\n\nReview: %q\n\nSentiment:", text)
	out, err := a.gen.Generate(ctx, domain.GenerationRequest{
		System:      systemPrompt,
		Prompt:      prompt,
		Temperature: classifyTemperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		observability.ObserveGeneration("sentiment", "error")
		a.log.Warn().Err(err).Msg("sentiment classification failed, using neutral")
		return domain.SentimentNeutral
	}
	s, ok := parseLabel(out)
	if !ok {
		observability.ObserveGeneration("sentiment", "unparsed")
		a.log.Warn().Str("answer", truncate(out, 64)).Msg("sentiment answer off-label, using neutral")
		return domain.SentimentNeutral
	}
	observability.ObserveGeneration("sentiment", "ok")
	return s
}

// parseLabel accepts "Positive." or "neutral\n" but not a sentence.
func parseLabel(out string) (domain.Sentiment, bool) {
	w := strings.Trim(strings.TrimSpace(out), ".!\"'`*")
	return domain.ParseSentiment(w)
}

// DraftResponse returns *domain.GenerationError when the call fails.
func (a *Annotator) DraftResponse(ctx context.Context, r domain.Review, opts domain.DraftOptions) (string, error) {
	if a.gen == nil {
		observability.ObserveGeneration("draft", "disabled")
		return "", &domain.GenerationError{Err: ErrDraftingDisabled}
	}
	out, err := a.gen.Generate(ctx, domain.GenerationRequest{
		System:      systemPrompt,
		Prompt:      draftPrompt(r, opts),
		Temperature: draftTemperature,
		MaxTokens:   maxTokens,
	})
	if err == nil && strings.TrimSpace(out) == "" {
		err = errors.New("empty completion")
	}
	if err != nil {
		observability.ObserveGeneration("draft", "error")
		return "", &domain.GenerationError{Err: err}
	}
	observability.ObserveGeneration("draft", "ok")
	return strings.TrimSpace(out), nil
}

// AnalyzeAndDraft classifies first so the label can steer the draft's tone.
func (a *Annotator) AnalyzeAndDraft(ctx context.Context, r domain.Review, opts domain.DraftOptions) (domain.Sentiment, string, error) {
	s := a.ClassifySentiment(ctx, r.Text)
	r.Sentiment = &s
	draft, err := a.DraftResponse(ctx, r, opts)
	if err != nil {
		return s, "", err
	}
	return s, draft, nil
}

func draftPrompt(r domain.Review, opts domain.DraftOptions) string {
	sentiment := "unknown"
	if r.Sentiment != nil {
		sentiment = string(*r.Sentiment)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Generate a professional, warm, and on-brand response to this %s review for a local business.\n\n", platformTitle(r.Platform))
	b.WriteString("Review Details:\n")
	fmt.Fprintf(&b, "- Rating: %d/5 stars\n", r.Rating)
	fmt.Fprintf(&b, "- Author: %s\n", r.AuthorName)
	fmt.Fprintf(&b, "- Text: %q\n", r.Text)
	fmt.Fprintf(&b, "- Sentiment: %s", sentiment)
	if kw := joinKeywords(opts.Keywords); kw != "" {
		fmt.Fprintf(&b, "\n- Business Keywords to include: %s", kw)
	}
	if c := strings.TrimSpace(opts.CustomPrompt); c != "" {
		fmt.Fprintf(&b, "\n- Custom Instructions: %s", c)
	}
	b.WriteString(`

Guidelines:
- Keep response under 80 words
- Be warm, professional, and authentic
- Address specific points mentioned in the review
- For positive reviews: thank them and invite them back
- For negative reviews: apologize, acknowledge concerns, and offer to make it right
- For neutral reviews: thank them and encourage them to return
- Include relevant business keywords naturally if provided
- End with a call to action when appropriate

Response:`)
	return b.String()
}

func joinKeywords(kws []string) string {
	out := make([]string, 0, len(kws))
	for _, k := range kws {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return strings.Join(out, ", ")
}

func platformTitle(p domain.Platform) string {
	switch p {
	case domain.PlatformGoogle:
		return "Google"
	case domain.PlatformYelp:
		return "Yelp"
	}
	return string(p)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
