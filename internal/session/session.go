// Package session owns the per-connection conversation state and the ask
// pipeline that ties the formatter, prompt assembler, completion client,
// speech bridge and persistence gateway together.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"sync"

	"linkedin-optimizer/internal/llm"
)

// Turn is one transcript entry. Audio is non-nil only when a voice reply was
// requested and synthesis succeeded.
type Turn struct {
	Role    string
	Content string
	Audio   []byte
}

// Session carries the mutable state of one logged-in connection. It replaces
// the ambient UI state of earlier revisions: handlers receive it explicitly,
// it is created at login and discarded at logout.
type Session struct {
	mu sync.Mutex

	Identity       string
	Group          string
	ProfileContext string
	JobContext     string
	CareerGoals    string
	Transcript     []Turn

	// ResumeText holds text extracted from an uploaded resume, waiting to be
	// reviewed and saved into the profile.
	ResumeText string
}

// NewGroupLabel mints an opaque session-group label from random bytes.
// Labels only need to be unique per user; eight hex chars match the labels
// users already have in their history.
func NewGroupLabel() string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return "session_" + hex.EncodeToString(b[:])
}

// Snapshot is a consistent copy of the session state, taken under the
// session lock. The web and bot surfaces render from the copy, so a turn in
// flight on another request cannot race the page.
type Snapshot struct {
	Identity       string
	Group          string
	ProfileContext string
	JobContext     string
	CareerGoals    string
	ResumeText     string
	Transcript     []Turn
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Identity:       s.Identity,
		Group:          s.Group,
		ProfileContext: s.ProfileContext,
		JobContext:     s.JobContext,
		CareerGoals:    s.CareerGoals,
		ResumeText:     s.ResumeText,
		Transcript:     append([]Turn(nil), s.Transcript...),
	}
}

// SetResumeText stashes extracted resume text for review.
func (s *Session) SetResumeText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResumeText = text
}

// Messages returns the transcript as completion messages, oldest first.
// The caller must hold s.mu.
func (s *Session) Messages() []llm.Message {
	out := make([]llm.Message, 0, len(s.Transcript))
	for _, t := range s.Transcript {
		out = append(out, llm.Message{Role: t.Role, Content: t.Content})
	}
	return out
}
