package session

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"linkedin-optimizer/internal/contextfmt"
	"linkedin-optimizer/internal/llm"
	"linkedin-optimizer/internal/prompt"
	"linkedin-optimizer/internal/speech"
	"linkedin-optimizer/internal/storage"
)

// AskResult is one completed pipeline run. Warning carries non-fatal
// degradations (unsaved turn, failed synthesis) for inline display.
type AskResult struct {
	Answer  string
	Audio   []byte
	Warning string
}

// Orchestrator runs session transitions and the ask pipeline for all live
// sessions. The speech bridge is nil when the capability is disabled; the
// rest of the flow is identical with or without it.
type Orchestrator struct {
	store  storage.Store
	llm    llm.Client
	speech speech.Bridge

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewOrchestrator(store storage.Store, client llm.Client, bridge speech.Bridge) *Orchestrator {
	return &Orchestrator{
		store:    store,
		llm:      client,
		speech:   bridge,
		sessions: make(map[string]*Session),
	}
}

// SpeechEnabled reports whether voice input/output is available.
func (o *Orchestrator) SpeechEnabled() bool { return o.speech != nil }

// Attach creates a live session for an authenticated user: fresh group,
// empty transcript, context blobs hydrated from the stored record. The
// returned token identifies the session until Detach.
func (o *Orchestrator) Attach(rec storage.UserRecord) (string, *Session) {
	s := &Session{
		Identity:       rec.Identity,
		Group:          NewGroupLabel(),
		ProfileContext: rec.Profile,
		JobContext:     rec.Job,
		CareerGoals:    rec.Goals,
	}
	token := uuid.NewString()
	o.mu.Lock()
	o.sessions[token] = s
	o.mu.Unlock()
	log.Printf("user %s logged in, session group %s", rec.Identity, s.Group)
	return token, s
}

func (o *Orchestrator) Get(token string) (*Session, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.sessions[token]
	return s, ok
}

// Count reports the number of live sessions.
func (o *Orchestrator) Count() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.sessions)
}

// Detach discards the live session (logout).
func (o *Orchestrator) Detach(token string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.sessions, token)
}

// NewGroup starts a fresh conversation: new label, cleared transcript. The
// minted label is returned so callers do not re-read the session without the
// lock.
func (o *Orchestrator) NewGroup(s *Session) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Group = NewGroupLabel()
	s.Transcript = nil
	log.Printf("user %s switched to new session group %s", s.Identity, s.Group)
	return s.Group
}

// ListGroups returns the session picker entries for the user, newest first.
func (o *Orchestrator) ListGroups(ctx context.Context, s *Session) ([]storage.SessionGroup, error) {
	return o.store.ListSessionGroups(ctx, s.Identity)
}

// LoadGroup switches the active session group and rebuilds the transcript
// from the persisted history, alternating user/assistant turns. Returns the
// number of rebuilt turns.
func (o *Orchestrator) LoadGroup(ctx context.Context, s *Session, group string) (int, error) {
	rows, err := o.store.LoadSession(ctx, s.Identity, group)
	if err != nil {
		return 0, fmt.Errorf("load session %s: %w", group, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Group = group
	s.Transcript = nil
	for _, row := range rows {
		s.Transcript = append(s.Transcript,
			Turn{Role: llm.RoleUser, Content: row.Query},
			Turn{Role: llm.RoleAssistant, Content: row.Response},
		)
	}
	return len(s.Transcript), nil
}

// SaveProfile stores the formatted profile blob. The in-memory context is
// updated even when persistence fails; the returned error then means
// "saved for this session only".
func (o *Orchestrator) SaveProfile(ctx context.Context, s *Session, blob string) error {
	s.mu.Lock()
	s.ProfileContext = blob
	s.mu.Unlock()
	if err := o.store.UpdateProfile(ctx, s.Identity, blob); err != nil {
		log.Printf("failed to persist profile for %s: %v", s.Identity, err)
		return err
	}
	return nil
}

func (o *Orchestrator) SaveJob(ctx context.Context, s *Session, blob string) error {
	s.mu.Lock()
	s.JobContext = blob
	s.mu.Unlock()
	if err := o.store.UpdateJob(ctx, s.Identity, blob); err != nil {
		log.Printf("failed to persist job details for %s: %v", s.Identity, err)
		return err
	}
	return nil
}

func (o *Orchestrator) SaveGoals(ctx context.Context, s *Session, goals string) error {
	s.mu.Lock()
	s.CareerGoals = goals
	s.mu.Unlock()
	if err := o.store.UpdateGoals(ctx, s.Identity, goals); err != nil {
		log.Printf("failed to persist career goals for %s: %v", s.Identity, err)
		return err
	}
	return nil
}

// Transcribe converts an uploaded audio question to text. The caller falls
// back to typed input when this fails.
func (o *Orchestrator) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if o.speech == nil {
		return "", fmt.Errorf("voice input is not enabled")
	}
	return o.speech.Transcribe(ctx, audio, filename)
}

// Ask runs the full pipeline for one submitted query: render history,
// assemble the prompt, call the completion endpoint, optionally synthesize a
// voice reply, append both turns to the transcript and mirror them into the
// interaction log. Turns are strictly serial per session.
func (o *Orchestrator) Ask(ctx context.Context, s *Session, query string, wantAudio bool) (AskResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := prompt.RenderHistory(s.Messages())
	filled, err := prompt.Assemble(prompt.Vars{
		Query:          query,
		ProfileContext: orFallback(s.ProfileContext, contextfmt.NoProfileData),
		JobContext:     orFallback(s.JobContext, contextfmt.NoJobData),
		CareerGoals:    orFallback(s.CareerGoals, contextfmt.NoCareerGoals),
		ChatHistory:    history,
	})
	if err != nil {
		return AskResult{}, err
	}

	// Completion failures are hard failures for the turn: no retry, no
	// catch-and-continue. The transcript stays untouched.
	resp, err := o.llm.Generate(ctx, []llm.Message{{Role: llm.RoleUser, Content: filled}})
	if err != nil {
		return AskResult{}, fmt.Errorf("completion failed: %w", err)
	}
	answer := resp.Content

	var warnings []string
	var audio []byte
	if wantAudio && o.speech != nil {
		audio, err = o.speech.Synthesize(ctx, answer)
		if err != nil {
			log.Printf("synthesis failed for %s: %v", s.Identity, err)
			warnings = append(warnings, "voice reply unavailable, showing text only")
			audio = nil
		}
	}

	s.Transcript = append(s.Transcript,
		Turn{Role: llm.RoleUser, Content: query},
		Turn{Role: llm.RoleAssistant, Content: answer, Audio: audio},
	)

	if err := o.store.AppendInteraction(ctx, s.Identity, s.Group, query, answer); err != nil {
		log.Printf("failed to save interaction for %s/%s: %v", s.Identity, s.Group, err)
		warnings = append(warnings, "this turn could not be saved")
	}

	return AskResult{Answer: answer, Audio: audio, Warning: strings.Join(warnings, "; ")}, nil
}

func orFallback(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
