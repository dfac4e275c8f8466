package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryUsers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.CreateUser(ctx, "a@b.com", "digest1"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := m.CreateUser(ctx, "a@b.com", "digest2"); !errors.Is(err, ErrDuplicateIdentity) {
		t.Fatalf("want ErrDuplicateIdentity, got %v", err)
	}

	rec, err := m.Authenticate(ctx, "a@b.com", "digest1")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if rec.Profile != "" || rec.Job != "" || rec.Goals != "" {
		t.Fatalf("fresh user should have empty blobs: %+v", rec)
	}

	if _, err := m.Authenticate(ctx, "a@b.com", "wrong"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("want ErrInvalidCredential, got %v", err)
	}

	if err := m.UpdateProfile(ctx, "a@b.com", "Name: Jane"); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if err := m.UpdateJob(ctx, "a@b.com", "Job Title: SE"); err != nil {
		t.Fatalf("update job: %v", err)
	}
	if err := m.UpdateGoals(ctx, "a@b.com", "grow"); err != nil {
		t.Fatalf("update goals: %v", err)
	}

	rec, err = m.Authenticate(ctx, "a@b.com", "digest1")
	if err != nil {
		t.Fatalf("authenticate after updates: %v", err)
	}
	if rec.Profile != "Name: Jane" || rec.Job != "Job Title: SE" || rec.Goals != "grow" {
		t.Fatalf("blobs not persisted: %+v", rec)
	}
}

func TestMemoryInteractionLog(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.CreateUser(ctx, "a@b.com", "digest"); err != nil {
		t.Fatalf("create user: %v", err)
	}

	// Every interaction belongs to a user, as in the relational schema.
	if err := m.AppendInteraction(ctx, "ghost@b.com", "g", "q", "r"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("append for unknown identity: want ErrInvalidCredential, got %v", err)
	}

	turns := []struct{ q, a string }{
		{"first question", "first answer"},
		{"second question", "second answer"},
		{"third question", "third answer"},
	}
	for _, turn := range turns {
		if err := m.AppendInteraction(ctx, "a@b.com", "session_aaaa", turn.q, turn.a); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := m.LoadSession(ctx, "a@b.com", "session_aaaa")
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if len(got) != len(turns) {
		t.Fatalf("want %d rows, got %d", len(turns), len(got))
	}
	for i, row := range got {
		if row.Query != turns[i].q || row.Response != turns[i].a {
			t.Fatalf("row %d out of order: %+v", i, row)
		}
		if i > 0 && got[i].Sequence <= got[i-1].Sequence {
			t.Fatalf("sequences not increasing: %d then %d", got[i-1].Sequence, got[i].Sequence)
		}
	}

	if rows, _ := m.LoadSession(ctx, "a@b.com", "session_none"); len(rows) != 0 {
		t.Fatalf("unknown group should be empty, got %d rows", len(rows))
	}
}

func TestMemoryListSessionGroups(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.CreateUser(ctx, "a@b.com", "digest")
	_ = m.CreateUser(ctx, "other@b.com", "digest")

	_ = m.AppendInteraction(ctx, "a@b.com", "session_old", "old first", "r1")
	_ = m.AppendInteraction(ctx, "a@b.com", "session_old", "old second", "r2")
	_ = m.AppendInteraction(ctx, "a@b.com", "session_new", "new first", "r3")
	_ = m.AppendInteraction(ctx, "other@b.com", "session_x", "not mine", "r4")

	groups, err := m.ListSessionGroups(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("want 2 groups, got %d", len(groups))
	}
	if groups[0].Group != "session_new" || groups[0].FirstQuery != "new first" {
		t.Fatalf("newest group first expected, got %+v", groups[0])
	}
	if groups[1].Group != "session_old" || groups[1].FirstQuery != "old first" {
		t.Fatalf("group labeled with earliest query expected, got %+v", groups[1])
	}
}

func TestMemoryCountInteractionsSince(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.CreateUser(ctx, "a@b.com", "digest")
	_ = m.CreateUser(ctx, "b@b.com", "digest")

	_ = m.AppendInteraction(ctx, "a@b.com", "g", "q1", "r1")
	_ = m.AppendInteraction(ctx, "b@b.com", "g", "q2", "r2")

	turns, users, err := m.CountInteractionsSince(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if turns != 2 || users != 2 {
		t.Fatalf("want 2 turns / 2 users, got %d / %d", turns, users)
	}

	turns, users, err = m.CountInteractionsSince(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("count future: %v", err)
	}
	if turns != 0 || users != 0 {
		t.Fatalf("want nothing in the future window, got %d / %d", turns, users)
	}
}
