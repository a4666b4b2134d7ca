package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nexus-agent/orchestrator/internal/agent"
	agentcontext "github.com/nexus-agent/orchestrator/internal/agent/context"
	"github.com/nexus-agent/orchestrator/internal/compaction"
	"github.com/nexus-agent/orchestrator/internal/events"
	"github.com/nexus-agent/orchestrator/internal/history/codec"
	"github.com/nexus-agent/orchestrator/internal/history/store"
	"github.com/nexus-agent/orchestrator/internal/observability"
	execpkg "github.com/nexus-agent/orchestrator/internal/tools/exec"
	"github.com/nexus-agent/orchestrator/pkg/models"
)

// MaxIterations bounds StepLoop: a turn that has not reached a final
// (no tool call) response after this many model calls is an AgentFatal.
const MaxIterations = 10

// MaxToolRetries is the number of attempts the orchestrator gives a
// single tool call before giving up on it and returning the failure to
// the agent as the tool's own result.
const MaxToolRetries = 10

// summaryCache remembers, per conversation, how far a prior summarization
// pass already covers (coversUntilID). Summaries are never persisted (see
// pkg/models.Conversation), so this in-memory watermark is the only
// record that a summary already exists for a conversation; it is lost on
// restart, which simply causes the next turn to resummarize from scratch.
type summaryCache struct {
	coversUntilID int64
	summary       *models.Message
}

// Orchestrator drives turns for one process: it owns the history store,
// tool registry, LLM provider and context-management components, and
// exposes HandleTurn as the single entry point C9's connection loop
// calls once per received frame.
type Orchestrator struct {
	Store      store.Store
	Registry   *agent.ToolRegistry
	Provider   agent.LLMProvider
	Packer     *agentcontext.Packer
	Summarizer *agentcontext.Summarizer

	Model  string
	System string

	// Metrics is optional; HandleTurn, tool execution and compaction all
	// nil-check it before recording, so an Orchestrator built without
	// metrics (every existing test) behaves exactly as before.
	Metrics *observability.Metrics

	summaries map[int64]*summaryCache
}

// New creates an Orchestrator with the given collaborators. Packer and
// Summarizer may be nil to disable compaction entirely.
func New(st store.Store, registry *agent.ToolRegistry, provider agent.LLMProvider, packer *agentcontext.Packer, summarizer *agentcontext.Summarizer, model, system string) *Orchestrator {
	return &Orchestrator{
		Store:      st,
		Registry:   registry,
		Provider:   provider,
		Packer:     packer,
		Summarizer: summarizer,
		Model:      model,
		System:     system,
		summaries:  make(map[int64]*summaryCache),
	}
}

// Frame is a client-to-server turn request: {content, conversation_id?,
// request_id?}. RequestID is opaque to the orchestrator; it is echoed
// back unchanged on any `error` envelope this frame triggers.
type Frame struct {
	Content        string
	ConversationID *int64
	RequestID      string
}

// HandleTurn drives one full pass of the state machine for frame, emitting
// envelopes to sink as it goes. A returned error is either an
// AgentFatalError (the empty AGENT row is already deleted; the caller
// disconnects), which also covers a failed provider call, or a plain
// I/O error from the store (also fatal to the connection); the
// InvalidFrame/UnknownConversation conditions are NOT returned as errors
// — they emit an `error` envelope and HandleTurn returns nil, since the
// spec keeps the connection open and returns to Recv for those two.
func (o *Orchestrator) HandleTurn(ctx context.Context, frame Frame, sink events.Sink) (turnErr error) {
	// Recv
	if strings.TrimSpace(frame.Content) == "" {
		events.NewEmitter(0, sink).ErrorWithRequestID(ctx, ErrEmptyContent, frame.RequestID)
		return nil
	}

	// EnsureConversation
	conv, err := o.ensureConversation(ctx, frame.ConversationID, frame.RequestID, sink)
	if err != nil {
		if err == ErrConversationNotFound {
			return nil
		}
		return fmt.Errorf("ensure conversation: %w", err)
	}

	if o.Metrics != nil {
		defer func() {
			status := "success"
			if turnErr != nil {
				status = "failed"
			}
			o.Metrics.RecordRunAttempt(status)
		}()
	}

	emitter := events.NewEmitter(conv.ID, sink)

	// PersistUser
	userMsg := &models.Message{
		ConversationID: conv.ID,
		Role:           models.RoleUser,
		Content:        frame.Content,
	}
	if err := o.Store.InsertMessage(ctx, userMsg); err != nil {
		return fmt.Errorf("persist user message: %w", err)
	}
	userMsg.Parts = []models.MessagePart{{
		Kind:       models.PartUserPrompt,
		Seq:        1,
		UserPrompt: &models.UserPromptPart{Content: frame.Content},
	}}
	emitter.Message(ctx, userMsg)

	// LoadHistory
	history, err := o.Store.ListMessages(ctx, conv.ID, 0)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	history = excludeMessage(history, userMsg.ID)
	history, _ = codec.RepairHistory(history)

	// Compact?
	history = o.compact(ctx, conv.ID, history)

	// StartAgent
	agentMsg := &models.Message{ConversationID: conv.ID, Role: models.RoleAgent}
	if err := o.Store.InsertMessage(ctx, agentMsg); err != nil {
		return fmt.Errorf("start agent message: %w", err)
	}

	state := State{
		Phase:          PhaseStepLoop,
		ConversationID: conv.ID,
		AgentMessageID: agentMsg.ID,
		MaxIterations:  MaxIterations,
	}

	rendered := renderHistory(history)
	rendered = append(rendered, renderMessage(userMsg))

	// StepLoop
	for {
		if state.Iteration >= state.MaxIterations {
			return o.abandonTurn(ctx, conv.ID, agentMsg.ID, state.Iteration, fmt.Errorf("tool retry budget exhausted"))
		}

		result, err := o.callModel(ctx, rendered)
		if err != nil {
			return o.abandonTurn(ctx, conv.ID, agentMsg.ID, state.Iteration, err)
		}

		var stepParts []models.MessagePart
		state, stepParts, state.Done = step(state, result)

		if len(stepParts) > 0 {
			node := models.Node{
				ID:        models.NodeID(state.Iteration),
				Step:      state.Iteration,
				Parts:     stepParts,
				ModelName: state.ModelName,
				Timestamp: state.Timestamp,
			}
			emitter.NodeAdded(ctx, agentMsg.ID, node)
		}

		assistantTurn := agent.CompletionMessage{Role: "assistant", Content: result.text}
		for _, call := range result.toolCalls {
			assistantTurn.ToolCalls = append(assistantTurn.ToolCalls, agent.ToolCall{ID: call.id, Name: call.name, Input: call.input})
		}
		rendered = append(rendered, assistantTurn)

		if state.Done {
			break
		}

		toolResultsTurn := agent.CompletionMessage{Role: "tool"}
		for _, call := range result.toolCalls {
			appendToolCall(&state, call)
			emitter.ToolStart(ctx, agentMsg.ID, call.name, call.input)

			toolCtx := execpkg.WithConversationID(ctx, conv.ID)
			toolResult, toolErr := o.executeToolWithRetry(toolCtx, call)

			status := events.ToolStatusSuccess
			errMsg := ""
			content := ""
			isError := false
			if toolErr != nil {
				status = events.ToolStatusError
				errMsg = toolErr.Error()
				content = errMsg
				isError = true
			} else {
				content = toolResult.Content
				isError = toolResult.IsError
				if isError {
					status = events.ToolStatusError
					errMsg = toolResult.Content
				}
			}

			emitter.ToolComplete(ctx, agentMsg.ID, call.name, content, status, errMsg)
			appendToolReturn(&state, call.id, call.name, canonicalToolResultContent(content), isError)

			toolResultsTurn.ToolResults = append(toolResultsTurn.ToolResults, agent.ToolResult{
				ToolCallID: call.id,
				Content:    content,
				IsError:    isError,
			})
		}
		rendered = append(rendered, toolResultsTurn)
	}

	// Finalize
	agentMsg.Content = state.FinalOutput
	agentMsg.Parts = state.TurnParts
	agentMsg.ModelName = state.ModelName
	agentMsg.FinalizedAt = time.Now()
	if err := o.Store.FinalizeMessage(ctx, agentMsg); err != nil {
		return fmt.Errorf("finalize agent message: %w", err)
	}
	emitter.MessageComplete(ctx, agentMsg)

	return nil
}

// abandonTurn deletes the empty AGENT row inserted at StartAgent (per the
// "on any turn error after the empty AGENT message was inserted, roll
// back so the empty row does not persist" rule) and returns the
// AgentFatalError describing why. Store has no transaction primitive, so
// this is a compensating delete rather than a real rollback; the
// conversation row itself is left intact even when it was newly created
// this turn, since a conversation with zero messages is a valid, empty
// conversation the client may still reference.
func (o *Orchestrator) abandonTurn(ctx context.Context, conversationID, agentMessageID int64, iteration int, cause error) error {
	_ = o.Store.DeleteMessage(ctx, agentMessageID)

	if o.Metrics != nil {
		o.Metrics.RecordError("orchestrator", "agent_fatal")
	}

	return &AgentFatalError{
		Iteration:      iteration,
		ConversationID: conversationID,
		AgentMessageID: agentMessageID,
		Cause:          cause,
	}
}

func (o *Orchestrator) ensureConversation(ctx context.Context, conversationID *int64, requestID string, sink events.Sink) (*models.Conversation, error) {
	if conversationID == nil {
		conv := &models.Conversation{Title: models.DefaultConversationTitle}
		if err := o.Store.CreateConversation(ctx, conv); err != nil {
			return nil, err
		}
		events.NewEmitter(conv.ID, sink).ConversationCreated(ctx, conv.ID)
		return conv, nil
	}

	conv, err := o.Store.GetConversation(ctx, *conversationID)
	if err == store.ErrNotFound {
		events.NewEmitter(0, sink).ErrorWithRequestID(ctx, fmt.Errorf("conversation %d not found", *conversationID), requestID)
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (o *Orchestrator) compact(ctx context.Context, conversationID int64, history []*models.Message) []*models.Message {
	if o.Summarizer == nil || o.Packer == nil {
		return history
	}

	cached := o.summaries[conversationID]
	var coversUntilID int64
	var summary *models.Message
	if cached != nil {
		coversUntilID = cached.coversUntilID
		summary = cached.summary
	}

	if !o.Summarizer.ShouldSummarize(history, coversUntilID) {
		packed, err := o.Packer.Pack(history, nil, summary)
		if err != nil {
			return history
		}
		o.logPackedBudget(conversationID, packed)
		return packed
	}

	newSummary, newCoversUntilID, err := o.Summarizer.Summarize(ctx, conversationID, history, coversUntilID)
	if err != nil {
		packed, packErr := o.Packer.Pack(history, nil, summary)
		if packErr != nil {
			return history
		}
		o.logPackedBudget(conversationID, packed)
		return packed
	}
	o.summaries[conversationID] = &summaryCache{coversUntilID: newCoversUntilID, summary: newSummary}
	if o.Metrics != nil {
		o.Metrics.RecordRunAttempt("compacted")
	}

	packed, err := o.Packer.Pack(history, nil, newSummary)
	if err != nil {
		return history
	}
	o.logPackedBudget(conversationID, packed)
	return packed
}

// logPackedBudget reports the packed context's estimated token footprint
// using the compaction package's char/4 heuristic, and feeds the same
// estimate to the context-window-utilization histogram when metrics are
// enabled.
func (o *Orchestrator) logPackedBudget(conversationID int64, packed []*models.Message) {
	estimated := make([]*compaction.Message, len(packed))
	for i, m := range packed {
		estimated[i] = &compaction.Message{Role: string(m.Role), Content: m.TextContent()}
	}
	tokens := compaction.EstimateMessagesTokens(estimated)
	slog.Debug("packed context budget",
		"conversation_id", conversationID,
		"messages", len(packed),
		"estimated_tokens", tokens,
	)
	if o.Metrics != nil {
		o.Metrics.RecordContextWindow(o.providerName(), o.Model, tokens)
	}
}

// providerName returns the configured LLM provider's name, or "unknown" if
// none is set (only possible in tests that construct an Orchestrator
// without a provider).
func (o *Orchestrator) providerName() string {
	if o.Provider == nil {
		return "unknown"
	}
	return o.Provider.Name()
}

func (o *Orchestrator) callModel(ctx context.Context, messages []agent.CompletionMessage) (modelStepResult, error) {
	req := &agent.CompletionRequest{
		Model:    o.Model,
		System:   o.System,
		Messages: messages,
		Tools:    o.Registry.AsLLMTools(),
	}

	start := time.Now()
	chunks, err := o.Provider.Complete(ctx, req)
	if err != nil {
		o.recordLLMRequest("error", start, 0, 0)
		return modelStepResult{}, err
	}

	var result modelStepResult
	var text, thinking strings.Builder
	var toolCalls []pendingToolCall
	var inputTokens, outputTokens int
	for chunk := range chunks {
		if chunk.Error != nil {
			o.recordLLMRequest("error", start, inputTokens, outputTokens)
			return modelStepResult{}, chunk.Error
		}
		if chunk.Text != "" {
			text.WriteString(chunk.Text)
		}
		if chunk.Thinking != "" {
			thinking.WriteString(chunk.Thinking)
		}
		if chunk.InputTokens > 0 {
			inputTokens = chunk.InputTokens
		}
		if chunk.OutputTokens > 0 {
			outputTokens = chunk.OutputTokens
		}
		if chunk.ToolCall != nil {
			toolCalls = append(toolCalls, pendingToolCall{
				id:    chunk.ToolCall.ID,
				name:  chunk.ToolCall.Name,
				input: chunk.ToolCall.Input,
			})
		}
	}
	o.recordLLMRequest("success", start, inputTokens, outputTokens)
	result.text = text.String()
	result.thinking = thinking.String()
	result.toolCalls = toolCalls
	result.modelName = o.Model
	return result, nil
}

// recordLLMRequest reports one Complete call's outcome, latency and token
// usage when metrics are enabled.
func (o *Orchestrator) recordLLMRequest(status string, start time.Time, inputTokens, outputTokens int) {
	if o.Metrics == nil {
		return
	}
	o.Metrics.RecordLLMRequest(o.providerName(), o.Model, status, time.Since(start).Seconds(), inputTokens, outputTokens)
}

func (o *Orchestrator) executeToolWithRetry(ctx context.Context, call pendingToolCall) (*agent.ToolResult, error) {
	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= MaxToolRetries; attempt++ {
		result, err := o.Registry.Execute(ctx, call.name, call.input)
		if err == nil {
			o.recordToolExecution(call.name, "success", start)
			return result, nil
		}
		lastErr = err
		if !agent.IsToolRetryable(err) {
			o.recordToolExecution(call.name, "error", start)
			return nil, err
		}
	}
	o.recordToolExecution(call.name, "error", start)
	return nil, lastErr
}

// recordToolExecution reports one tool call's outcome and wall-clock
// duration (across however many retry attempts it took) when metrics are
// enabled.
func (o *Orchestrator) recordToolExecution(name, status string, start time.Time) {
	if o.Metrics == nil {
		return
	}
	o.Metrics.RecordToolExecution(name, status, time.Since(start).Seconds())
}

func excludeMessage(messages []*models.Message, id int64) []*models.Message {
	out := make([]*models.Message, 0, len(messages))
	for _, m := range messages {
		if m.ID == id {
			continue
		}
		out = append(out, m)
	}
	return out
}
