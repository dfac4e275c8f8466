package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"linkedin-optimizer/internal/auth"
	"linkedin-optimizer/internal/contextfmt"
	"linkedin-optimizer/internal/llm"
	"linkedin-optimizer/internal/prompt"
	"linkedin-optimizer/internal/storage"
)

type fakeLLM struct {
	reply      string
	err        error
	lastPrompt string
}

func (f *fakeLLM) Generate(ctx context.Context, msgs []llm.Message) (llm.Response, error) {
	if f.err != nil {
		return llm.Response{}, f.err
	}
	if len(msgs) > 0 {
		f.lastPrompt = msgs[len(msgs)-1].Content
	}
	return llm.Response{Content: f.reply}, nil
}

type fakeBridge struct {
	text          string
	audio         []byte
	transcribeErr error
	synthErr      error
}

func (f *fakeBridge) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	return f.text, f.transcribeErr
}

func (f *fakeBridge) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return f.audio, f.synthErr
}

// flakyStore fails AppendInteraction while leaving the rest of the contract
// intact.
type flakyStore struct {
	*storage.Memory
	failAppend bool
}

func (f *flakyStore) AppendInteraction(ctx context.Context, identity, group, query, response string) error {
	if f.failAppend {
		return errors.New("db down")
	}
	return f.Memory.AppendInteraction(ctx, identity, group, query, response)
}

func signUp(t *testing.T, store storage.Store, o *Orchestrator) *Session {
	t.Helper()
	rec, err := auth.New(store).SignUp(context.Background(), "a@b.com", "pw123")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	_, s := o.Attach(rec)
	return s
}

func TestAskPipeline(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	fake := &fakeLLM{reply: "Your profile looks strong."}
	o := NewOrchestrator(store, fake, nil)
	s := signUp(t, store, o)

	blob := contextfmt.FormatProfile("Jane", "Go", "", "", "")
	if blob != "Name: Jane\nSkills: Go" {
		t.Fatalf("unexpected profile blob: %q", blob)
	}
	if err := o.SaveProfile(ctx, s, blob); err != nil {
		t.Fatalf("save profile: %v", err)
	}

	result, err := o.Ask(ctx, s, "analyze my profile", false)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if result.Answer != "Your profile looks strong." {
		t.Fatalf("unexpected answer: %q", result.Answer)
	}
	if result.Warning != "" {
		t.Fatalf("unexpected warning: %q", result.Warning)
	}

	for _, want := range []string{
		"- Profile: Name: Jane\nSkills: Go",
		"- Job Details: " + contextfmt.NoJobData,
		"- Career Goals: " + contextfmt.NoCareerGoals,
		prompt.NoHistory,
		`The user has asked: "analyze my profile"`,
	} {
		if !strings.Contains(fake.lastPrompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, fake.lastPrompt)
		}
	}

	if len(s.Transcript) != 2 {
		t.Fatalf("want 2 transcript turns, got %d", len(s.Transcript))
	}
	if s.Transcript[0].Role != llm.RoleUser || s.Transcript[0].Content != "analyze my profile" {
		t.Fatalf("unexpected user turn: %+v", s.Transcript[0])
	}
	if s.Transcript[1].Role != llm.RoleAssistant || s.Transcript[1].Content != result.Answer {
		t.Fatalf("unexpected assistant turn: %+v", s.Transcript[1])
	}

	rows, err := store.LoadSession(ctx, s.Identity, s.Group)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if len(rows) != 1 || rows[0].Query != "analyze my profile" || rows[0].Response != result.Answer {
		t.Fatalf("interaction not mirrored to storage: %+v", rows)
	}
}

func TestAskIncludesHistory(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	fake := &fakeLLM{reply: "answer one"}
	o := NewOrchestrator(store, fake, nil)
	s := signUp(t, store, o)

	if _, err := o.Ask(ctx, s, "first question", false); err != nil {
		t.Fatalf("first ask: %v", err)
	}
	fake.reply = "answer two"
	if _, err := o.Ask(ctx, s, "what was my previous question?", false); err != nil {
		t.Fatalf("second ask: %v", err)
	}

	if !strings.Contains(fake.lastPrompt, "You: first question") {
		t.Fatalf("history missing user turn:\n%s", fake.lastPrompt)
	}
	if !strings.Contains(fake.lastPrompt, "Assistant: answer one") {
		t.Fatalf("history missing assistant turn:\n%s", fake.lastPrompt)
	}
}

func TestAskVoiceReply(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	bridge := &fakeBridge{audio: []byte("mp3-bytes")}
	o := NewOrchestrator(store, &fakeLLM{reply: "spoken answer"}, bridge)
	s := signUp(t, store, o)

	result, err := o.Ask(ctx, s, "analyze my profile", true)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if string(result.Audio) != "mp3-bytes" {
		t.Fatalf("expected audio payload, got %q", result.Audio)
	}
	if len(s.Transcript[1].Audio) == 0 {
		t.Fatalf("assistant turn should carry audio")
	}

	// Synthesis failure falls back to text only, with a warning.
	bridge.synthErr = errors.New("tts down")
	result, err = o.Ask(ctx, s, "job fit", true)
	if err != nil {
		t.Fatalf("ask with failing synthesis: %v", err)
	}
	if result.Audio != nil {
		t.Fatalf("no audio expected after synthesis failure")
	}
	if !strings.Contains(result.Warning, "text only") {
		t.Fatalf("expected fallback warning, got %q", result.Warning)
	}
	if result.Answer != "spoken answer" {
		t.Fatalf("text answer should survive synthesis failure, got %q", result.Answer)
	}
}

func TestAskCompletionFailureIsHard(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	o := NewOrchestrator(store, &fakeLLM{err: errors.New("model down")}, nil)
	s := signUp(t, store, o)

	if _, err := o.Ask(ctx, s, "analyze my profile", false); err == nil {
		t.Fatalf("expected completion failure to propagate")
	}
	if len(s.Transcript) != 0 {
		t.Fatalf("failed turn must not touch the transcript: %+v", s.Transcript)
	}
	rows, _ := store.LoadSession(ctx, s.Identity, s.Group)
	if len(rows) != 0 {
		t.Fatalf("failed turn must not be persisted: %+v", rows)
	}
}

func TestAskDegradesWhenAppendFails(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Memory: storage.NewMemory(), failAppend: true}
	o := NewOrchestrator(store, &fakeLLM{reply: "still here"}, nil)
	s := signUp(t, store, o)

	result, err := o.Ask(ctx, s, "analyze my profile", false)
	if err != nil {
		t.Fatalf("persistence failure must not abort the turn: %v", err)
	}
	if !strings.Contains(result.Warning, "could not be saved") {
		t.Fatalf("expected unsaved warning, got %q", result.Warning)
	}
	if len(s.Transcript) != 2 {
		t.Fatalf("transcript should still grow, got %d turns", len(s.Transcript))
	}
}

func TestSessionGroupTransitions(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	fake := &fakeLLM{reply: "a1"}
	o := NewOrchestrator(store, fake, nil)
	s := signUp(t, store, o)

	firstGroup := s.Group
	if !strings.HasPrefix(firstGroup, "session_") {
		t.Fatalf("unexpected group label: %q", firstGroup)
	}
	if _, err := o.Ask(ctx, s, "q1", false); err != nil {
		t.Fatalf("ask: %v", err)
	}

	second := o.NewGroup(s)
	if second == firstGroup {
		t.Fatalf("new group should mint a new label")
	}
	if s.Group != second {
		t.Fatalf("returned label %q does not match active group %q", second, s.Group)
	}
	if len(s.Transcript) != 0 {
		t.Fatalf("new group should clear the transcript")
	}

	fake.reply = "a2"
	if _, err := o.Ask(ctx, s, "q2", false); err != nil {
		t.Fatalf("ask in new group: %v", err)
	}

	groups, err := o.ListGroups(ctx, s)
	if err != nil {
		t.Fatalf("list groups: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("want 2 groups, got %d", len(groups))
	}
	if groups[0].Group != s.Group || groups[0].FirstQuery != "q2" {
		t.Fatalf("newest group first expected, got %+v", groups[0])
	}

	turns, err := o.LoadGroup(ctx, s, firstGroup)
	if err != nil {
		t.Fatalf("load group: %v", err)
	}
	if s.Group != firstGroup {
		t.Fatalf("active group not switched")
	}
	if turns != 2 || len(s.Transcript) != 2 {
		t.Fatalf("want rebuilt transcript of 2 turns, got %d (%d in session)", turns, len(s.Transcript))
	}
	if s.Transcript[0].Role != llm.RoleUser || s.Transcript[0].Content != "q1" {
		t.Fatalf("unexpected rebuilt user turn: %+v", s.Transcript[0])
	}
	if s.Transcript[1].Role != llm.RoleAssistant || s.Transcript[1].Content != "a1" {
		t.Fatalf("unexpected rebuilt assistant turn: %+v", s.Transcript[1])
	}
}

func TestAttachHydratesAndDetachForgets(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	o := NewOrchestrator(store, &fakeLLM{reply: "x"}, nil)

	svc := auth.New(store)
	if _, err := svc.SignUp(ctx, "a@b.com", "pw123"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if err := store.UpdateProfile(ctx, "a@b.com", "Name: Jane"); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	rec, err := svc.Login(ctx, "a@b.com", "pw123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	token, s := o.Attach(rec)
	if s.ProfileContext != "Name: Jane" {
		t.Fatalf("profile not hydrated at login: %q", s.ProfileContext)
	}
	if len(s.Transcript) != 0 {
		t.Fatalf("transcript should start empty")
	}

	if _, ok := o.Get(token); !ok {
		t.Fatalf("attached session not found")
	}
	o.Detach(token)
	if _, ok := o.Get(token); ok {
		t.Fatalf("detached session still live")
	}
}

func TestSnapshotIsDetachedCopy(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	o := NewOrchestrator(store, &fakeLLM{reply: "a1"}, nil)
	s := signUp(t, store, o)

	if _, err := o.Ask(ctx, s, "q1", false); err != nil {
		t.Fatalf("ask: %v", err)
	}
	snap := s.Snapshot()
	if snap.Group != s.Group || len(snap.Transcript) != 2 {
		t.Fatalf("snapshot out of sync: %+v", snap)
	}

	// Mutating the copy must not reach the live session.
	snap.Transcript[0].Content = "tampered"
	if s.Transcript[0].Content != "q1" {
		t.Fatalf("snapshot shares backing array with session")
	}
}

// Page renders happen while turns are in flight on other requests for the
// same cookie, so snapshots and asks must be safe to interleave.
func TestSnapshotDuringConcurrentAsks(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	o := NewOrchestrator(store, &fakeLLM{reply: "a"}, nil)
	s := signUp(t, store, o)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			if _, err := o.Ask(ctx, s, "q", false); err != nil {
				t.Errorf("ask: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			snap := s.Snapshot()
			// Both turns of a round are appended under one lock, so a
			// snapshot never observes a half-written round.
			if len(snap.Transcript)%2 != 0 {
				t.Errorf("snapshot saw odd transcript length %d", len(snap.Transcript))
				return
			}
		}
	}()
	wg.Wait()

	if len(s.Transcript) != 40 {
		t.Fatalf("want 40 transcript turns, got %d", len(s.Transcript))
	}
}

func TestTranscribeDisabled(t *testing.T) {
	o := NewOrchestrator(storage.NewMemory(), &fakeLLM{}, nil)
	if _, err := o.Transcribe(context.Background(), []byte("audio"), "q.ogg"); err == nil {
		t.Fatalf("expected error when speech is disabled")
	}
}
