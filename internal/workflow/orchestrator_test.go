package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mkarag/venturo/internal/agent"
	"github.com/mkarag/venturo/internal/event"
	"github.com/mkarag/venturo/internal/store"
)

type captureSink struct {
	mu     sync.Mutex
	events []event.Event
}

func (c *captureSink) Emit(ev event.Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *captureSink) all() []event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]event.Event(nil), c.events...)
}

func (c *captureSink) ofType(t string) []event.Event {
	var out []event.Event
	for _, ev := range c.all() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type scriptedCapability struct {
	failRole agent.Role
}

func (s *scriptedCapability) Generate(ctx context.Context, role agent.Role, prompt string) (string, error) {
	if role == s.failRole {
		return "", errors.New("model unavailable")
	}
	switch role {
	case agent.RoleVerifier:
		return "verification of: " + firstLine(prompt), nil
	case agent.RoleSummary:
		return "Overall success score: 82. Marketing: 85, Product: 80, Legal: 78.", nil
	default:
		return string(role) + " analysis", nil
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func newTestOrchestrator(capability agent.Capability) (*Orchestrator, *store.Memory, *captureSink) {
	s := store.NewMemory()
	sink := &captureSink{}
	inv := agent.NewInvoker(capability, 4, time.Second)
	return NewOrchestrator(s, inv, sink), s, sink
}

func startAndWait(t *testing.T, o *Orchestrator, conv *store.Conversation) {
	t.Helper()
	if err := o.Start(context.Background(), conv); err != nil {
		t.Fatalf("start error: %v", err)
	}
	o.Wait()
}

func TestPipelineSuccess(t *testing.T) {
	o, s, _ := newTestOrchestrator(&scriptedCapability{})

	conv := &store.Conversation{ID: "c1", Prompt: "An app that waters plants"}
	startAndWait(t, o, conv)

	got, err := s.Get("c1")
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if got.Status != store.StatusCompleted {
		t.Fatalf("expected completed, got %s (error: %s)", got.Status, got.Error)
	}
	if len(got.SpecialistResults) != 3 {
		t.Errorf("expected 3 specialist results, got %d", len(got.SpecialistResults))
	}
	for _, role := range agent.SpecialistRoles {
		v, ok := got.VerifiedResults[role.String()]
		if !ok {
			t.Errorf("missing verified result for %s", role)
			continue
		}
		if v.Status != "verified" {
			t.Errorf("expected status verified for %s, got %s", role, v.Status)
		}
		if v.OriginalAnalysis != role.String()+" analysis" {
			t.Errorf("unexpected original analysis for %s: %q", role, v.OriginalAnalysis)
		}
	}
	if got.FinalReport == nil {
		t.Fatal("expected final report")
	}
	if got.FinalReport.OverallScore != 82 {
		t.Errorf("expected extracted overall score 82, got %d", got.FinalReport.OverallScore)
	}
	if got.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}
}

func TestPipelineStatusEventSequence(t *testing.T) {
	o, _, sink := newTestOrchestrator(&scriptedCapability{})

	conv := &store.Conversation{ID: "c1", Prompt: "idea"}
	startAndWait(t, o, conv)

	var statuses []string
	for _, ev := range sink.ofType(event.TypeConversationStatus) {
		statuses = append(statuses, ev.Status)
	}

	want := []string{"started", store.StatusSpecialistAnalysis, store.StatusVerification,
		store.StatusSummaryGeneration, store.StatusCompleted}
	if len(statuses) != len(want) {
		t.Fatalf("expected statuses %v, got %v", want, statuses)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("status %d: expected %s, got %s", i, want[i], statuses[i])
		}
	}

	// Completion event carries the structured report.
	completed := sink.ofType(event.TypeConversationStatus)
	last := completed[len(completed)-1]
	if last.Metadata == nil || last.Metadata["report"] == nil {
		t.Error("expected completion event to carry the report")
	}
}

func TestPipelineTypingIndicatorsPair(t *testing.T) {
	o, _, sink := newTestOrchestrator(&scriptedCapability{})

	conv := &store.Conversation{ID: "c1", Prompt: "idea"}
	startAndWait(t, o, conv)

	// Each invocation opens and closes one indicator: 3 specialists,
	// 3 verifications, 1 summary.
	open := map[string]int{}
	for _, ev := range sink.ofType(event.TypeTypingIndicator) {
		if ev.IsTyping == nil {
			t.Fatal("typing indicator without is_typing")
		}
		if *ev.IsTyping {
			open[ev.AgentType]++
		} else {
			open[ev.AgentType]--
		}
	}
	for agentType, n := range open {
		if n != 0 {
			t.Errorf("unbalanced typing indicators for %s: %d", agentType, n)
		}
	}
	if len(sink.ofType(event.TypeTypingIndicator)) != 14 {
		t.Errorf("expected 14 typing indicators, got %d", len(sink.ofType(event.TypeTypingIndicator)))
	}
}

func TestPipelineAgentMessages(t *testing.T) {
	o, _, sink := newTestOrchestrator(&scriptedCapability{})

	conv := &store.Conversation{ID: "c1", Prompt: "idea"}
	startAndWait(t, o, conv)

	stages := map[string]int{}
	for _, ev := range sink.ofType(event.TypeAgentMessage) {
		stages[ev.Stage]++
	}
	if stages[event.StageSpecialistAnalysis] != 3 {
		t.Errorf("expected 3 specialist messages, got %d", stages[event.StageSpecialistAnalysis])
	}
	if stages[event.StageVerificationStart] != 3 {
		t.Errorf("expected 3 verification-start messages, got %d", stages[event.StageVerificationStart])
	}
	if stages[event.StageVerificationResult] != 3 {
		t.Errorf("expected 3 verification results, got %d", stages[event.StageVerificationResult])
	}
	if stages[event.StageFinalReport] != 1 {
		t.Errorf("expected 1 final report message, got %d", stages[event.StageFinalReport])
	}

	for _, ev := range sink.ofType(event.TypeAgentMessage) {
		if ev.Stage == event.StageVerificationResult {
			if ev.Metadata["specialist_type"] == nil {
				t.Error("verification result missing specialist_type metadata")
			}
		}
	}
}

func TestPipelineSpecialistFailure(t *testing.T) {
	o, s, sink := newTestOrchestrator(&scriptedCapability{failRole: agent.RoleProduct})

	conv := &store.Conversation{ID: "c1", Prompt: "idea"}
	startAndWait(t, o, conv)

	got, _ := s.Get("c1")
	if got.Status != store.StatusError {
		t.Fatalf("expected status error, got %s", got.Status)
	}
	if !strings.Contains(got.Error, "product") {
		t.Errorf("expected error to name the failing agent, got %q", got.Error)
	}
	if got.FinalReport != nil {
		t.Error("expected no final report after failure")
	}

	statuses := sink.ofType(event.TypeConversationStatus)
	last := statuses[len(statuses)-1]
	if last.Status != store.StatusError {
		t.Errorf("expected final status event error, got %s", last.Status)
	}
	if !strings.HasPrefix(last.Message, "Analysis failed:") {
		t.Errorf("unexpected error message: %q", last.Message)
	}
}

func TestPipelineVerifierFailure(t *testing.T) {
	o, s, _ := newTestOrchestrator(&scriptedCapability{failRole: agent.RoleVerifier})

	conv := &store.Conversation{ID: "c1", Prompt: "idea"}
	startAndWait(t, o, conv)

	got, _ := s.Get("c1")
	if got.Status != store.StatusError {
		t.Fatalf("expected status error, got %s", got.Status)
	}
	// Specialist results were saved before the verifier failed.
	if len(got.SpecialistResults) != 3 {
		t.Errorf("expected specialist results to survive, got %d", len(got.SpecialistResults))
	}
	if got.VerifiedResults != nil {
		t.Errorf("expected no verified results, got %+v", got.VerifiedResults)
	}
}

func TestStartRejectsEmptyPrompt(t *testing.T) {
	o, _, _ := newTestOrchestrator(&scriptedCapability{})

	err := o.Start(context.Background(), &store.Conversation{ID: "c1"})
	if err == nil {
		t.Fatal("expected error for empty prompt")
	}
}

func TestActiveRuns(t *testing.T) {
	release := make(chan struct{})
	blocking := &blockingCapability{release: release}
	o, _, _ := newTestOrchestrator(blocking)

	if err := o.Start(context.Background(), &store.Conversation{ID: "c1", Prompt: "idea"}); err != nil {
		t.Fatalf("start error: %v", err)
	}

	// Wait for the run to register.
	deadline := time.After(2 * time.Second)
	for {
		if n, ids := o.ActiveRuns(); n == 1 {
			if ids[0] != "c1" {
				t.Errorf("expected active run c1, got %v", ids)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("timeout waiting for active run")
		case <-time.After(5 * time.Millisecond):
		}
	}

	close(release)
	o.Wait()

	if n, _ := o.ActiveRuns(); n != 0 {
		t.Errorf("expected no active runs after completion, got %d", n)
	}
}

type blockingCapability struct {
	release chan struct{}
}

func (b *blockingCapability) Generate(ctx context.Context, role agent.Role, prompt string) (string, error) {
	select {
	case <-b.release:
		return "ok", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
