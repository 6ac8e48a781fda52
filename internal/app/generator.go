package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"quizly-service/internal/domain"
)

const (
	// QuestionCount is the exact number of questions a generated quiz carries.
	QuestionCount = 10
	// OptionCount is the exact number of options per question.
	OptionCount = 4
	// maxDescriptionLen bounds the quiz description after trimming.
	maxDescriptionLen = 150

	defaultMaxAttempts  = 3
	defaultRetryBackoff = time.Second
)

// Generator drives the generative model through the prompt/validate/repair
// protocol until it yields a schema-valid quiz draft or the retry budget is
// exhausted.
type Generator struct {
	model       ModelClient
	log         *zap.SugaredLogger
	maxAttempts int
	backoff     time.Duration
	sleep       func(time.Duration)
}

func NewGenerator(model ModelClient, log *zap.SugaredLogger) *Generator {
	return &Generator{
		model:       model,
		log:         log,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultRetryBackoff,
		sleep:       time.Sleep,
	}
}

// attemptOutcome is the typed result of one generate(+repair) round.
type attemptOutcome struct {
	draft     domain.QuizDraft
	err       error
	retryable bool
}

// Generate produces a validated quiz draft from a transcript.
//
// Each attempt: one generation call, parse, validate; on a schema fault,
// exactly one repair call followed by a final parse+validate. Validation-class
// failures are retried up to the attempt budget with a fixed backoff. Vendor
// quota responses and other client errors are terminal immediately.
func (g *Generator) Generate(ctx context.Context, transcript string) (domain.QuizDraft, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return domain.QuizDraft{}, domain.ErrTranscriptEmpty
	}

	prompt := buildQuizPrompt(transcript)
	var lastErr error

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		outcome := g.attempt(ctx, prompt)
		if outcome.err == nil {
			return outcome.draft, nil
		}
		lastErr = outcome.err
		if !outcome.retryable {
			return domain.QuizDraft{}, outcome.err
		}
		g.log.Warnw("quiz generation attempt failed",
			"attempt", attempt, "max_attempts", g.maxAttempts, "error", outcome.err)
		if attempt < g.maxAttempts {
			g.sleep(g.backoff)
		}
	}
	return domain.QuizDraft{}, lastErr
}

func (g *Generator) attempt(ctx context.Context, prompt string) attemptOutcome {
	raw, err := g.model.Complete(ctx, prompt)
	if err != nil {
		// Vendor-side failures (quota included) are never retried here:
		// retrying a rate-limited client would compound the condition.
		return attemptOutcome{err: err, retryable: false}
	}
	if strings.TrimSpace(raw) == "" {
		return attemptOutcome{err: domain.ErrGenerationEmpty, retryable: true}
	}

	payload, err := extractJSONObject(raw)
	if err != nil {
		return attemptOutcome{err: err, retryable: true}
	}

	draft, err := validateQuizPayload(payload)
	if err == nil {
		return attemptOutcome{draft: draft}
	}

	// Single repair round-trip: hand the malformed JSON back to the model
	// with the schema restated, then validate once more.
	g.log.Infow("quiz schema validation failed, issuing repair call", "error", err)
	repaired, repairErr := g.repair(ctx, payload)
	if repairErr != nil {
		retryable := domain.IsValidationError(repairErr) &&
			!errors.Is(repairErr, domain.ErrQuotaExceeded) &&
			!errors.Is(repairErr, domain.ErrModelRequestFailed)
		return attemptOutcome{err: repairErr, retryable: retryable}
	}
	return attemptOutcome{draft: repaired}
}

func (g *Generator) repair(ctx context.Context, broken json.RawMessage) (domain.QuizDraft, error) {
	raw, err := g.model.Complete(ctx, buildRepairPrompt(broken))
	if err != nil {
		return domain.QuizDraft{}, err
	}
	if strings.TrimSpace(raw) == "" {
		return domain.QuizDraft{}, domain.ErrGenerationEmpty
	}
	payload, err := extractJSONObject(raw)
	if err != nil {
		return domain.QuizDraft{}, err
	}
	return validateQuizPayload(payload)
}

func buildQuizPrompt(transcript string) string {
	var sb strings.Builder
	sb.WriteString("Generate a quiz as VALID JSON only.\n")
	sb.WriteString("Return exactly ONE JSON object and nothing else.\n\n")
	sb.WriteString("Schema:\n")
	sb.WriteString("{\n")
	sb.WriteString("  \"title\": \"string\",\n")
	sb.WriteString("  \"description\": \"string (<= 150 characters)\",\n")
	sb.WriteString("  \"questions\": [\n")
	sb.WriteString("    {\n")
	sb.WriteString("      \"question_title\": \"string\",\n")
	sb.WriteString("      \"question_options\": [\"string\", \"string\", \"string\", \"string\"],\n")
	sb.WriteString("      \"answer\": \"string (must be one of question_options)\"\n")
	sb.WriteString("    }\n")
	sb.WriteString("  ]\n")
	sb.WriteString("}\n\n")
	sb.WriteString("Hard rules:\n")
	sb.WriteString("- Output MUST be a single parsable JSON object.\n")
	sb.WriteString(fmt.Sprintf("- questions MUST contain EXACTLY %d items.\n", QuestionCount))
	sb.WriteString(fmt.Sprintf("- Each question_options MUST contain EXACTLY %d DISTINCT strings.\n", OptionCount))
	sb.WriteString("- Do NOT include markdown, code fences, comments, ellipsis '...', or extra text.\n\n")
	sb.WriteString("Transcript:\n")
	sb.WriteString(transcript)
	sb.WriteString("\n")
	return sb.String()
}

func buildRepairPrompt(broken json.RawMessage) string {
	var sb strings.Builder
	sb.WriteString("Fix the following JSON to match these rules and return VALID JSON only:\n")
	sb.WriteString("- Root object must contain: title, description, questions\n")
	sb.WriteString(fmt.Sprintf("- questions MUST contain EXACTLY %d items\n", QuestionCount))
	sb.WriteString(fmt.Sprintf("- Each item must contain: question_title, question_options (exactly %d distinct strings), answer\n", OptionCount))
	sb.WriteString("- answer MUST be one of question_options\n")
	sb.WriteString("- Remove any extra keys, markdown, comments, and ellipsis\n\n")
	sb.WriteString("JSON to fix:\n")
	sb.Write(broken)
	sb.WriteString("\n")
	return sb.String()
}

// extractJSONObject strips any code-fence wrapper and slices the text from
// the first '{' to the last '}'.
func extractJSONObject(raw string) (json.RawMessage, error) {
	cleaned := stripCodeFences(raw)
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("%w: %q", domain.ErrGenerationUnparsable, truncate(cleaned, 80))
	}
	return json.RawMessage(strings.TrimSpace(cleaned[start : end+1])), nil
}

func stripCodeFences(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimPrefix(cleaned, "json")
		cleaned = strings.TrimPrefix(cleaned, "JSON")
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	return strings.TrimSpace(cleaned)
}

// validateQuizPayload enforces the quiz schema and returns a fully trimmed
// draft so persistence never re-validates.
func validateQuizPayload(payload json.RawMessage) (domain.QuizDraft, error) {
	var data struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Questions   []struct {
			QuestionTitle string `json:"question_title"`
			RawOptions    []any  `json:"question_options"`
			Answer        string `json:"answer"`
		} `json:"questions"`
	}
	if err := json.Unmarshal(payload, &data); err != nil {
		return domain.QuizDraft{}, fmt.Errorf("%w: %v", domain.ErrGenerationInvalid, err)
	}

	title := strings.TrimSpace(data.Title)
	description := strings.TrimSpace(data.Description)
	if title == "" {
		return domain.QuizDraft{}, fmt.Errorf("%w: title is missing", domain.ErrGenerationInvalid)
	}
	if description == "" {
		return domain.QuizDraft{}, fmt.Errorf("%w: description is missing", domain.ErrGenerationInvalid)
	}
	if len([]rune(description)) > maxDescriptionLen {
		return domain.QuizDraft{}, fmt.Errorf("%w: description exceeds %d characters", domain.ErrGenerationInvalid, maxDescriptionLen)
	}
	if len(data.Questions) != QuestionCount {
		return domain.QuizDraft{}, fmt.Errorf("%w: expected exactly %d questions, got %d",
			domain.ErrGenerationInvalid, QuestionCount, len(data.Questions))
	}

	questions := make([]domain.QuestionDraft, 0, QuestionCount)
	for i, q := range data.Questions {
		qTitle := strings.TrimSpace(q.QuestionTitle)
		answer := strings.TrimSpace(q.Answer)
		if qTitle == "" {
			return domain.QuizDraft{}, fmt.Errorf("%w: question %d: question_title is missing", domain.ErrGenerationInvalid, i+1)
		}
		if len(q.RawOptions) != OptionCount {
			return domain.QuizDraft{}, fmt.Errorf("%w: question %d: must have exactly %d options", domain.ErrGenerationInvalid, i+1, OptionCount)
		}

		options := make([]string, 0, OptionCount)
		seen := make(map[string]struct{}, OptionCount)
		answerFound := false
		for _, rawOpt := range q.RawOptions {
			opt, ok := rawOpt.(string)
			if !ok {
				return domain.QuizDraft{}, fmt.Errorf("%w: question %d: option is not a string", domain.ErrGenerationInvalid, i+1)
			}
			opt = strings.TrimSpace(opt)
			if opt == "" {
				return domain.QuizDraft{}, fmt.Errorf("%w: question %d: empty option found", domain.ErrGenerationInvalid, i+1)
			}
			if _, dup := seen[opt]; dup {
				return domain.QuizDraft{}, fmt.Errorf("%w: question %d: options must be distinct", domain.ErrGenerationInvalid, i+1)
			}
			seen[opt] = struct{}{}
			if opt == answer {
				answerFound = true
			}
			options = append(options, opt)
		}
		if !answerFound {
			return domain.QuizDraft{}, fmt.Errorf("%w: question %d: answer must be one of the options", domain.ErrGenerationInvalid, i+1)
		}

		questions = append(questions, domain.QuestionDraft{
			QuestionTitle: qTitle,
			Options:       options,
			Answer:        answer,
		})
	}

	return domain.QuizDraft{
		Title:       title,
		Description: description,
		Questions:   questions,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
