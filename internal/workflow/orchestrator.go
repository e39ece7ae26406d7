// Package workflow runs the three-phase startup analysis pipeline:
// parallel specialist analysis, per-specialist verification, then summary
// report generation. Progress streams out through an EventSink; results
// accumulate in the store.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mkarag/venturo/internal/agent"
	"github.com/mkarag/venturo/internal/event"
	"github.com/mkarag/venturo/internal/store"
)

// EventSink receives pipeline progress events. The NATS emitter satisfies
// this in the daemon; tests capture events directly.
type EventSink interface {
	Emit(ev event.Event)
}

type Orchestrator struct {
	store   store.Store
	invoker *agent.Invoker
	sink    EventSink
	runs    *runTracker

	wg sync.WaitGroup
}

func NewOrchestrator(s store.Store, invoker *agent.Invoker, sink EventSink) *Orchestrator {
	return &Orchestrator{
		store:   s,
		invoker: invoker,
		sink:    sink,
		runs:    newRunTracker(),
	}
}

// Start creates the conversation record and kicks off the pipeline in the
// background. The passed context bounds the whole run; the daemon hands in
// its shutdown context so analyses stop cleanly on exit.
func (o *Orchestrator) Start(ctx context.Context, conv *store.Conversation) error {
	if conv.Prompt == "" {
		return fmt.Errorf("prompt must not be empty")
	}
	conv.Status = store.StatusPending
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}

	if err := o.store.Create(conv); err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(ctx, conv.ID, conv.Prompt, conv.Files)
	}()

	return nil
}

// Wait blocks until all in-flight analyses finish.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// ActiveRuns reports how many analyses are in flight and for which
// conversations.
func (o *Orchestrator) ActiveRuns() (int, []string) {
	return o.runs.count(), o.runs.ids()
}

func (o *Orchestrator) run(ctx context.Context, id, prompt string, files []store.FileDescriptor) {
	done := o.runs.begin(id)
	defer done()

	slog.Info("starting analysis", "conversation", id)
	o.sink.Emit(event.ConversationStatus(id, "started", "Starting analysis with specialized agents...", nil))

	specialist, err := o.runSpecialistPhase(ctx, id, prompt, files)
	if err != nil {
		o.fail(id, err)
		return
	}

	verified, err := o.runVerificationPhase(ctx, id, specialist)
	if err != nil {
		o.fail(id, err)
		return
	}

	report, err := o.runSummaryPhase(ctx, id, verified)
	if err != nil {
		o.fail(id, err)
		return
	}

	o.sink.Emit(event.ConversationStatus(id, store.StatusCompleted, "Analysis complete!",
		map[string]any{"report": report}))
	slog.Info("analysis complete", "conversation", id, "score", report.OverallScore)
}

// fail moves the conversation into the absorbing error state. Store
// failures at this point are only logged; the error event still goes out.
func (o *Orchestrator) fail(id string, err error) {
	slog.Error("analysis failed", "conversation", id, "error", err)
	if serr := o.store.SetError(id, err.Error()); serr != nil {
		slog.Error("failed to record conversation error", "conversation", id, "error", serr)
	}
	o.sink.Emit(event.ConversationStatus(id, store.StatusError,
		fmt.Sprintf("Analysis failed: %v", err), nil))
}

// runSpecialistPhase fans the analysis prompt out to all specialists at
// once. The first failure wins; remaining results are discarded.
func (o *Orchestrator) runSpecialistPhase(ctx context.Context, id, prompt string, files []store.FileDescriptor) (map[string]string, error) {
	if err := o.transition(id, store.StatusSpecialistAnalysis,
		"Marketing, Product, and Legal agents analyzing..."); err != nil {
		return nil, err
	}

	taskPrompt := analysisPrompt(prompt, files)

	var (
		mu       sync.Mutex
		results  = make(map[string]string, len(agent.SpecialistRoles))
		firstErr error
		wg       sync.WaitGroup
	)

	for _, role := range agent.SpecialistRoles {
		wg.Add(1)
		go func(role agent.Role) {
			defer wg.Done()

			out, err := o.invokeWithTyping(ctx, id, role, taskPrompt)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			results[role.String()] = out
			o.sink.Emit(event.AgentMessage(id, role.String(), out, event.StageSpecialistAnalysis, nil))
		}(role)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	if err := o.store.SetSpecialistResults(id, results); err != nil {
		return nil, fmt.Errorf("save specialist results: %w", err)
	}
	return results, nil
}

// runVerificationPhase has the verifier review each specialist analysis in
// turn, in the fixed specialist order.
func (o *Orchestrator) runVerificationPhase(ctx context.Context, id string, specialist map[string]string) (map[string]store.VerifiedResult, error) {
	if err := o.transition(id, store.StatusVerification,
		"Verifier agent reviewing all analyses..."); err != nil {
		return nil, err
	}

	verified := make(map[string]store.VerifiedResult, len(specialist))
	for _, role := range agent.SpecialistRoles {
		analysis, ok := specialist[role.String()]
		if !ok {
			continue
		}

		o.sink.Emit(event.AgentMessage(id, agent.RoleVerifier.String(),
			fmt.Sprintf("Starting verification of %s analysis...", role),
			event.StageVerificationStart, nil))

		out, err := o.invokeWithTyping(ctx, id, agent.RoleVerifier, verificationPrompt(role, analysis))
		if err != nil {
			return nil, err
		}

		o.sink.Emit(event.AgentMessage(id, agent.RoleVerifier.String(), out,
			event.StageVerificationResult, map[string]any{"specialist_type": role.String()}))

		verified[role.String()] = store.VerifiedResult{
			OriginalAnalysis:   analysis,
			VerificationResult: out,
			Status:             "verified",
		}
	}

	if err := o.store.SetVerifiedResults(id, verified); err != nil {
		return nil, fmt.Errorf("save verified results: %w", err)
	}
	return verified, nil
}

func (o *Orchestrator) runSummaryPhase(ctx context.Context, id string, verified map[string]store.VerifiedResult) (*store.Report, error) {
	if err := o.transition(id, store.StatusSummaryGeneration,
		"Summary agent generating final report..."); err != nil {
		return nil, err
	}

	out, err := o.invokeWithTyping(ctx, id, agent.RoleSummary, summaryPrompt(verified))
	if err != nil {
		return nil, err
	}

	report := structureReport(out, verified)
	if err := o.store.SetFinalReport(id, report, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("save final report: %w", err)
	}

	o.sink.Emit(event.AgentMessage(id, agent.RoleSummary.String(), out,
		event.StageFinalReport, map[string]any{"structured_report": report}))
	return report, nil
}

// invokeWithTyping brackets one agent call with typing indicators. The
// trailing indicator always goes out, success or failure.
func (o *Orchestrator) invokeWithTyping(ctx context.Context, id string, role agent.Role, prompt string) (string, error) {
	o.sink.Emit(event.TypingIndicator(id, role.String(), true))
	defer func() {
		o.sink.Emit(event.TypingIndicator(id, role.String(), false))
	}()

	return o.invoker.Invoke(ctx, role, prompt)
}

func (o *Orchestrator) transition(id, status, message string) error {
	if err := o.store.UpdateStatus(id, status); err != nil {
		return fmt.Errorf("update status to %s: %w", status, err)
	}
	o.sink.Emit(event.ConversationStatus(id, status, message, nil))
	return nil
}
