// Package orchestrator routes each question to a backend and degrades
// gracefully when a backend is slow, rate-limited, or unavailable. The flow is
// a fixed state machine: classify, primary attempt, at most one fallback tier,
// validation, history persistence. Quota and overload failures short-circuit:
// retrying a saturated dependency only compounds its load.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"retail-assist/internal/conversation"
	"retail-assist/internal/failure"
	"retail-assist/internal/llm"
	"retail-assist/internal/metrics"
	"retail-assist/internal/routing"
	"retail-assist/internal/storage"
	"retail-assist/internal/validate"
)

// Route tags surfaced to the caller.
const (
	RouteSQL         = "sql"
	RouteRAG         = "rag"
	RouteSQLFallback = "sql_fallback"
	RouteLLMFallback = "llm_fallback"
	RouteQuotaError  = "quota_error"
	RouteOverload    = "overload_error"
)

// DataBackend answers a question against the relational schemas.
type DataBackend interface {
	Answer(ctx context.Context, question string, category routing.Category) (string, error)
}

// Retriever returns top-k context snippets; empty results are not failures.
type Retriever interface {
	Retrieve(ctx context.Context, question string, topK int) ([]string, error)
}

// Request is one inbound question.
type Request struct {
	Question string
	UserID   string
	TopK     int
	// History, when non-empty, replaces the stored session before handling;
	// the client is the source of truth for its own log. An empty list means
	// absent and keeps the server-side session.
	History []conversation.Turn
}

// Result is the contract returned to the caller. Answer is always non-empty.
type Result struct {
	Answer         string
	Route          string
	ConversationID string
	Error          string
	RetryAfter     string
}

type Options struct {
	ContextTurns int           // turns of history handed to the generator
	DefaultTopK  int           // retrieval depth when the request leaves it unset
	Timeout      time.Duration // overall per-request deadline
	SystemPrompt string        // knowledge-route system instruction
}

type Orchestrator struct {
	data      DataBackend
	retriever Retriever
	generator llm.Client
	store     *conversation.Store
	recorder  storage.Recorder
	logger    *slog.Logger
	opts      Options
}

func New(data DataBackend, retriever Retriever, generator llm.Client, store *conversation.Store, recorder storage.Recorder, logger *slog.Logger, opts Options) *Orchestrator {
	if opts.ContextTurns <= 0 {
		opts.ContextTurns = 10
	}
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		data:      data,
		retriever: retriever,
		generator: generator,
		store:     store,
		recorder:  recorder,
		logger:    logger,
		opts:      opts,
	}
}

// Handle runs one question through the state machine. A returned error means a
// fatal failure that survived the fallback tier; everything else is expressed
// in the Result, including capacity errors.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (Result, error) {
	question := strings.TrimSpace(req.Question)
	userID := req.UserID
	if userID == "" {
		userID = "default"
	}

	ctx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	// Start: load session, optionally replace from client-supplied history.
	o.store.GetOrCreate(userID)
	if len(req.History) > 0 {
		o.store.ReplaceFromClient(userID, req.History)
	}
	metrics.ActiveSessions.Set(float64(o.store.Sessions()))

	// Classified.
	decision := routing.Classify(question)

	// PrimaryAttempt.
	primaryRoute, fallbackRoute := RouteRAG, RouteLLMFallback
	if decision.Route == routing.RouteData {
		primaryRoute, fallbackRoute = RouteSQL, RouteSQLFallback
	}

	answer, err := o.primaryAttempt(ctx, userID, question, decision, req.TopK)
	route := primaryRoute
	if err != nil {
		cls := o.classify(err)
		if cls.Kind != failure.KindUnclassified {
			o.logger.Warn("capacity failure on primary attempt",
				"route", primaryRoute, "kind", cls.Kind.String(), "retry_after", cls.RetryAfter)
			return capacityResult(userID, cls), nil
		}

		// FallbackAttempt: a single pure-generation tier, depth fixed at 1.
		o.logger.Warn("primary attempt failed, running fallback",
			"route", primaryRoute, "error", err)
		fbAnswer, fbErr := o.fallbackAttempt(ctx, userID, question)
		if fbErr != nil {
			cls = o.classify(fbErr)
			if cls.Kind != failure.KindUnclassified {
				return capacityResult(userID, cls), nil
			}
			msg, _ := llm.Describe(fbErr)
			return Result{}, fmt.Errorf("fallback failed after %s error: %s", primaryRoute, truncate(msg, 200))
		}

		// Degraded: answered, but without the primary backend.
		answer = fbAnswer + degradationNotice(decision.Route)
		route = fallbackRoute
	}

	// Validated.
	answer = validate.Answer(answer)

	// Done: persist exactly one question/answer pair, then return.
	o.store.AppendExchange(userID, question, answer)
	o.record(userID, question, answer, route)
	metrics.RequestCount.WithLabelValues(route).Inc()

	return Result{Answer: answer, Route: route, ConversationID: userID}, nil
}

func (o *Orchestrator) primaryAttempt(ctx context.Context, userID, question string, decision routing.Decision, topK int) (string, error) {
	start := time.Now()
	if decision.Route == routing.RouteData {
		answer, err := o.data.Answer(ctx, question, decision.Category)
		metrics.BackendLatency.WithLabelValues("sql").Observe(time.Since(start).Seconds())
		return answer, err
	}

	if topK <= 0 {
		topK = o.opts.DefaultTopK
	}
	snippets, err := o.retriever.Retrieve(ctx, question, topK)
	metrics.BackendLatency.WithLabelValues("retrieval").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", err
	}

	msgs := []llm.Message{{Role: llm.RoleSystem, Content: o.opts.SystemPrompt}}
	msgs = append(msgs, o.historyMessages(userID)...)
	msgs = append(msgs, llm.Message{
		Role:    llm.RoleUser,
		Content: fmt.Sprintf("Context from documents:\n%s\n\nQuestion: %s", strings.Join(snippets, "\n\n"), question),
	})

	start = time.Now()
	resp, err := o.generator.Generate(ctx, msgs)
	metrics.BackendLatency.WithLabelValues("generation").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// The fallback tier uses only the question and conversation history; no
// retrieval, no data query.
const fallbackInstruction = `You are an assistant for a retail system. Answer from the conversation history only.
Always state units clearly: "Product (unit): price", quantities as "150 units",
amounts with thousands separators. Keep answers short and readable.`

func (o *Orchestrator) fallbackAttempt(ctx context.Context, userID, question string) (string, error) {
	msgs := []llm.Message{{Role: llm.RoleSystem, Content: fallbackInstruction}}
	msgs = append(msgs, o.historyMessages(userID)...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: question})

	start := time.Now()
	resp, err := o.generator.Generate(ctx, msgs)
	metrics.BackendLatency.WithLabelValues("generation").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (o *Orchestrator) historyMessages(userID string) []llm.Message {
	turns := o.store.Snapshot(userID, o.opts.ContextTurns)
	msgs := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, llm.Message{Role: t.Role, Content: t.Content})
	}
	return msgs
}

func (o *Orchestrator) classify(err error) failure.Classification {
	msg, tag := llm.Describe(err)
	cls := failure.Classify(msg, tag)
	metrics.FailureCount.WithLabelValues(cls.Kind.String()).Inc()
	return cls
}

// capacityResult builds the short-circuit response for quota/overload
// failures. The question was never truly answered, so the session stays
// untouched.
func capacityResult(userID string, cls failure.Classification) Result {
	route := RouteQuotaError
	errTag := "quota_exceeded"
	if cls.Kind == failure.KindOverloaded {
		route = RouteOverload
		errTag = "overloaded"
	}
	return Result{
		Answer:         failure.UserMessage(cls),
		Route:          route,
		ConversationID: userID,
		Error:          errTag,
		RetryAfter:     cls.RetryAfter,
	}
}

func degradationNotice(route routing.Route) string {
	if route == routing.RouteData {
		return "\n\nNote: the data query engine was unavailable, so this answer was generated without live data."
	}
	return "\n\nNote: document retrieval is temporarily unavailable, so this answer was generated from conversation context only."
}

func (o *Orchestrator) record(userID, question, answer, route string) {
	if o.recorder == nil {
		return
	}
	err := o.recorder.AppendInteraction(storage.Event{
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		Question:  question,
		Answer:    answer,
		Route:     route,
	})
	if err != nil {
		o.logger.Error("failed to record interaction", "error", err)
	}
}

// truncate cuts on a rune boundary so multi-byte characters are never split.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
