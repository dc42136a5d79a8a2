package processing

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/GokulKGit/quiz-API/config"
	"github.com/GokulKGit/quiz-API/errors"
	"github.com/GokulKGit/quiz-API/server/metrics"
)

// Generator produces a completion for a single prompt. The provider manager
// satisfies it, as do the individual providers.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// TokenCounter estimates the token length of a prompt.
type TokenCounter interface {
	Count(text string) int
}

// Processor runs the generation pipeline for one request: it renders the
// category prompt, calls the generator, and parses the reply into a
// QuestionSet. Configuration can be swapped at runtime with Reload while
// requests are in flight; each request sees a single consistent revision.
type Processor struct {
	generator Generator
	state     atomic.Pointer[processorState]
	tokens    TokenCounter
	metrics   *metrics.Metrics
	logger    *zap.Logger
	tracer    trace.Tracer
}

type processorState struct {
	prompts    *PromptBuilder
	parsers    map[Category]*ResponseParser
	formatting config.ResponseFormattingConfig
	truncate   bool
	timeout    time.Duration
	maxContext int
	maxOutput  int
}

// Option configures optional Processor collaborators.
type Option func(*Processor)

// WithTokenCounter enables the prompt size check against the model's
// context window.
func WithTokenCounter(tc TokenCounter) Option {
	return func(p *Processor) { p.tokens = tc }
}

// WithMetrics records generation metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// NewProcessor creates a processor from cfg. Templates are compiled up
// front, so an invalid override fails here rather than per request.
func NewProcessor(cfg *config.Config, gen Generator, logger *zap.Logger, opts ...Option) (*Processor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Processor{
		generator: gen,
		logger:    logger,
		tracer:    otel.Tracer("github.com/GokulKGit/quiz-API/server/processing"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.Reload(cfg); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload rebuilds templates and parsers from cfg. On error the previous
// revision stays active.
func (p *Processor) Reload(cfg *config.Config) error {
	overrides := make(map[Category]string)
	parsers := make(map[Category]*ResponseParser)
	for _, c := range Categories() {
		cc := cfg.Processing.Category(string(c))
		if cc.Template != "" {
			overrides[c] = cc.Template
		}
		parsers[c] = NewResponseParser(DefaultParserOptions(c).withOverrides(cc))
	}

	prompts, err := NewPromptBuilder(overrides)
	if err != nil {
		return err
	}

	p.state.Store(&processorState{
		prompts:    prompts,
		parsers:    parsers,
		formatting: cfg.Processing.ResponseFormatting,
		truncate:   cfg.Processing.TruncateToCount,
		timeout:    cfg.LLM.Timeout,
		maxContext: cfg.LLM.MaxContextTokens,
		maxOutput:  cfg.LLM.Generation.MaxOutputTokens,
	})
	return nil
}

// Process generates the question set for req. Errors are QuizErrors where
// the failure category is known, or context errors when the request was
// cancelled or timed out.
func (p *Processor) Process(ctx context.Context, req QuestionRequest) (*QuestionSet, error) {
	st := p.state.Load()

	ctx, span := p.tracer.Start(ctx, "generate", trace.WithAttributes(
		attribute.String("quiz.category", string(req.Category)),
		attribute.String("quiz.level", req.Level),
		attribute.Int("quiz.count", req.Count),
	))
	defer span.End()

	set, err := p.process(ctx, st, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("quiz.questions", len(set.Questions)),
		attribute.Int("quiz.skipped", set.Skipped),
	)
	return set, nil
}

func (p *Processor) process(ctx context.Context, st *processorState, req QuestionRequest) (*QuestionSet, error) {
	prompt, err := st.prompts.Build(req)
	if err != nil {
		return nil, errors.NewInternalError("", err)
	}

	if p.tokens != nil {
		n := p.tokens.Count(prompt)
		if p.metrics != nil {
			p.metrics.PromptTokens.WithLabelValues(string(req.Category)).Observe(float64(n))
		}
		if st.maxContext > 0 && n+st.maxOutput > st.maxContext {
			return nil, errors.NewValidationError("", fmt.Sprintf(
				"Request too large: prompt needs %d tokens plus %d for the reply, limit is %d.",
				n, st.maxOutput, st.maxContext))
		}
	}

	raw, err := p.generate(ctx, st, req.Category, prompt)
	if err != nil {
		return nil, err
	}

	parsed, err := st.parsers[req.Category].Parse(p.clean(st, raw))
	if err != nil {
		p.logger.Warn("failed to parse model reply",
			zap.String("category", string(req.Category)),
			zap.Error(err),
		)
		return nil, err
	}
	for _, issue := range parsed.Issues {
		p.logger.Debug("skipped malformed line",
			zap.Int("line", issue.Line),
			zap.String("reason", issue.Reason),
		)
	}

	records := parsed.Records
	switch {
	case st.truncate && req.Count > 0 && len(records) > req.Count:
		records = records[:req.Count]
	case len(records) < req.Count:
		p.logger.Info("model returned fewer questions than requested",
			zap.String("category", string(req.Category)),
			zap.Int("requested", req.Count),
			zap.Int("returned", len(records)),
		)
	}

	if p.metrics != nil {
		p.metrics.QuestionsGenerated.WithLabelValues(string(req.Category)).Add(float64(len(records)))
		p.metrics.LinesSkipped.WithLabelValues(string(req.Category)).Add(float64(parsed.Skipped))
	}

	return &QuestionSet{
		Category:  req.Category,
		Topic:     req.Topic,
		Count:     req.Count,
		Level:     req.Level,
		Questions: records,
		Skipped:   parsed.Skipped,
	}, nil
}

func (p *Processor) generate(ctx context.Context, st *processorState, c Category, prompt string) (string, error) {
	if st.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, st.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := p.generator.Generate(ctx, prompt)
	if p.metrics != nil {
		p.metrics.GenerationDuration.WithLabelValues(string(c)).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		var qe *errors.QuizError
		if errors.As(err, &qe) {
			return "", err
		}
		return "", errors.NewUpstreamError("", err)
	}
	if strings.TrimSpace(raw) == "" {
		return "", errors.NewUpstreamError("", fmt.Errorf("model returned an empty reply"))
	}
	return raw, nil
}

// clean removes markdown code fence lines and applies the length limit
// on whole lines.
func (p *Processor) clean(st *processorState, raw string) string {
	if st.formatting.StripCodeFences {
		lines := strings.Split(raw, "\n")
		kept := lines[:0]
		for _, line := range lines {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				continue
			}
			kept = append(kept, line)
		}
		raw = strings.Join(kept, "\n")
	}
	if limit := st.formatting.MaxLength; limit > 0 && len(raw) > limit {
		raw = truncateLines(raw, limit)
	}
	return raw
}

// truncateLines cuts raw to at most limit bytes without splitting a line.
// A line that would cross the limit is dropped whole.
func truncateLines(raw string, limit int) string {
	if len(raw) <= limit {
		return raw
	}
	if raw[limit] == '\n' {
		return raw[:limit]
	}
	if i := strings.LastIndexByte(raw[:limit], '\n'); i >= 0 {
		return raw[:i]
	}
	return ""
}
