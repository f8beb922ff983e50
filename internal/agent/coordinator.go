package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"golang.org/x/sync/errgroup"

	"github.com/askflow-ai/askflow/internal/catalog"
	"github.com/askflow-ai/askflow/internal/governance"
	"github.com/askflow-ai/askflow/internal/observability"
	"github.com/askflow-ai/askflow/internal/relevance"
	"github.com/askflow-ai/askflow/internal/store"
	"github.com/askflow-ai/askflow/internal/stream"
	"github.com/askflow-ai/askflow/internal/tools"
)

// Deps collects the coordinator's collaborators and policy knobs.
type Deps struct {
	Store    *store.Store
	Graph    catalog.GraphStore
	Resolver *relevance.Resolver
	Model    llms.Model
	Runner   tools.QueryRunner
	Policy   governance.PolicyEngine
	Prompts  *PromptManager
	Logger   *observability.Logger

	SandboxURL     string
	SandboxTimeout time.Duration
	WebSearch      tools.Tool // optional

	MaxIterations     int
	MaxRevisions      int
	ResultBudget      int
	QueryRowCap       int
	HistoryDepth      int
	HeartbeatInterval time.Duration
}

// Coordinator owns one orchestration run end to end: it claims the message,
// streams events, drives the pipeline and is the sole writer of the
// persisted terminal state.
type Coordinator struct {
	deps Deps
}

func NewCoordinator(deps Deps) *Coordinator {
	if deps.HeartbeatInterval <= 0 {
		deps.HeartbeatInterval = 30 * time.Second
	}
	if deps.HistoryDepth <= 0 {
		deps.HistoryDepth = 10
	}
	return &Coordinator{deps: deps}
}

// ExecuteAgent runs the full orchestration for one user message and resolves
// only after the terminal event has been emitted and the result persisted.
// Setup failures (unknown chat or message, user mismatch) return an error
// before any event is emitted; everything after the claim terminates the
// stream with exactly one message_complete or message_error event.
func (c *Coordinator) ExecuteAgent(ctx context.Context, chatID, messageID, question, userID string, sink stream.Sink) error {
	d := c.deps

	chat, err := d.Store.FindChatByID(ctx, chatID)
	if err != nil {
		return err
	}
	if chat.UserID != "" && userID != "" && chat.UserID != userID {
		return fmt.Errorf("chat %s does not belong to user %s", chatID, userID)
	}
	if _, err := d.Store.FindMessageByID(ctx, messageID); err != nil {
		return err
	}

	claimed, err := d.Store.ClaimMessage(ctx, messageID)
	if err != nil {
		return err
	}
	d.Logger.LogClaim(chatID, messageID, claimed)
	if !claimed {
		c.emit(ctx, sink, stream.MessageError(messageID, "message is already being processed"))
		return nil
	}

	c.emit(ctx, sink, stream.MessageStart(messageID))

	// The pipeline must finish and persist even if the transport drops, so
	// it runs on a context detached from the caller's cancellation. Event
	// emission keeps the caller's context and simply stops on disconnect.
	runCtx, stopHeartbeat := context.WithCancel(context.WithoutCancel(ctx))
	defer stopHeartbeat()

	var g errgroup.Group
	g.Go(func() error {
		ticker := time.NewTicker(d.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return nil
			case <-ticker.C:
				_ = sink.KeepAlive(ctx)
				d.Logger.LogHeartbeat()
			}
		}
	})

	c.run(runCtx, ctx, chat, messageID, question, sink)

	stopHeartbeat()
	return g.Wait()
}

func (c *Coordinator) run(ctx, emitCtx context.Context, chat *store.Chat, messageID, question string, sink stream.Sink) {
	d := c.deps

	resolution, err := d.Resolver.Resolve(ctx, chat.ScopeID, question)
	if err != nil {
		c.fail(ctx, emitCtx, messageID, sink, nil, err)
		return
	}
	if resolution.CatalogEmpty {
		// Not an error: the run completes with an explanatory message and
		// no stage ever executes.
		content := "No datasets are available in this workspace yet, so I cannot answer data questions. Connect a data source first."
		meta := &RunMetadata{Error: "no_datasets"}
		if err := d.Store.UpdateAssistantMessage(ctx, messageID, content, meta, store.StatusComplete); err != nil {
			c.fail(ctx, emitCtx, messageID, sink, nil, err)
			return
		}
		c.emit(emitCtx, sink, stream.MessageComplete(messageID, content))
		return
	}

	history, err := d.Store.GetChatMessages(ctx, chat.ID, d.HistoryDepth)
	if err != nil {
		c.fail(ctx, emitCtx, messageID, sink, nil, err)
		return
	}

	registry, queryTool := c.buildRegistry(chat.ScopeID)
	pipeline := &Pipeline{
		Model:         d.Model,
		Registry:      registry,
		QueryTool:     queryTool,
		Graph:         d.Graph,
		ScopeID:       chat.ScopeID,
		Prompts:       d.Prompts,
		Logger:        d.Logger,
		Sink:          emitScopedSink{sink: sink, ctx: emitCtx},
		ChatID:        chat.ID,
		MessageID:     messageID,
		MaxIterations: d.MaxIterations,
		MaxRevisions:  d.MaxRevisions,
		ResultBudget:  d.ResultBudget,
	}

	result, err := pipeline.Run(ctx, question, BuildHistoryContext(history), renderDatasets(resolution.Datasets))
	if err != nil {
		c.fail(ctx, emitCtx, messageID, sink, result, err)
		return
	}

	meta := &RunMetadata{
		ToolCalls:    result.ToolCalls,
		Tokens:       result.Tokens,
		Datasets:     result.Datasets,
		Plan:         result.Plan,
		Lineage:      result.Lineage,
		Revisions:    result.Revisions,
		Verification: result.Report,
		Caveat:       result.Caveat,
	}
	if err := d.Store.UpdateAssistantMessage(ctx, messageID, result.Answer, meta, store.StatusComplete); err != nil {
		c.fail(ctx, emitCtx, messageID, sink, result, err)
		return
	}

	d.Logger.LogCost(chat.ID, messageID, result.Tokens.Prompt, result.Tokens.Completion, "")
	c.emit(emitCtx, sink, stream.TokenUpdate(messageID, result.Tokens.Prompt, result.Tokens.Completion, result.Tokens.Total))
	c.emit(emitCtx, sink, stream.MessageComplete(messageID, result.Answer))
}

// fail persists the failed status with the raw error and emits the single
// terminal error event. partial, when present, preserves whatever tool
// calls and usage accumulated before the failure.
func (c *Coordinator) fail(ctx, emitCtx context.Context, messageID string, sink stream.Sink, partial *PipelineResult, cause error) {
	meta := &RunMetadata{Error: cause.Error()}
	if partial != nil {
		meta.ToolCalls = partial.ToolCalls
		meta.Tokens = partial.Tokens
		meta.Revisions = partial.Revisions
		meta.Plan = partial.Plan
		meta.Verification = partial.Report
	}
	_ = c.deps.Store.UpdateAssistantMessage(ctx, messageID, "", meta, store.StatusFailed)
	c.emit(emitCtx, sink, stream.MessageError(messageID, cause.Error()))
}

// buildRegistry constructs the static capability set for one run.
func (c *Coordinator) buildRegistry(scopeID string) (*tools.Registry, *tools.QueryTool) {
	d := c.deps
	registry := tools.NewRegistry()

	queryTool := tools.NewQueryTool(d.Runner, d.Policy, d.QueryRowCap)
	registry.Register(queryTool)
	registry.Register(tools.NewPreviewTool(d.Runner))
	registry.Register(tools.NewDatasetListTool(d.Graph, scopeID))
	registry.Register(tools.NewDatasetDetailsTool(d.Graph, scopeID))
	registry.Register(tools.NewRelationshipsTool(d.Graph, scopeID))
	if d.SandboxURL != "" {
		registry.Register(tools.NewCodeTool(d.SandboxURL, d.SandboxTimeout))
	}
	if d.WebSearch != nil {
		registry.Register(d.WebSearch)
	}
	return registry, queryTool
}

// emitScopedSink pins event delivery to the transport's context. The pipeline
// runs on a detached context, so without this its events would never observe
// a client disconnect; with it, every Send after the disconnect sees the
// cancellation and stops while the run itself continues to completion.
type emitScopedSink struct {
	sink stream.Sink
	ctx  context.Context
}

func (s emitScopedSink) Send(ctx context.Context, event stream.Event) error {
	return s.sink.Send(s.ctx, event)
}

func (s emitScopedSink) KeepAlive(ctx context.Context) error {
	return s.sink.KeepAlive(s.ctx)
}

func (c *Coordinator) emit(ctx context.Context, sink stream.Sink, evt stream.Event) {
	if sink == nil {
		return
	}
	_ = sink.Send(ctx, evt)
}

func renderDatasets(datasets []catalog.Dataset) string {
	if len(datasets) == 0 {
		return ""
	}
	var b strings.Builder
	for _, ds := range datasets {
		fmt.Fprintf(&b, "- %s: %s\n", ds.Name, ds.Description)
	}
	return strings.TrimSpace(b.String())
}
