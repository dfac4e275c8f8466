package auth

import (
	"context"
	"errors"
	"testing"

	"linkedin-optimizer/internal/storage"
)

func TestHashPassword(t *testing.T) {
	a := HashPassword("pw123")
	b := HashPassword("pw123")
	if a != b {
		t.Fatalf("hash not deterministic: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("want 64 hex chars, got %d", len(a))
	}
	if HashPassword("pw124") == a {
		t.Fatalf("different plaintexts produced the same digest")
	}
}

func TestSignUpAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := New(storage.NewMemory())

	rec, err := svc.SignUp(ctx, "a@b.com", "pw123")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if rec.Identity != "a@b.com" || rec.Profile != "" || rec.Job != "" || rec.Goals != "" {
		t.Fatalf("unexpected signup record: %+v", rec)
	}

	if _, err := svc.SignUp(ctx, "a@b.com", "other"); !errors.Is(err, storage.ErrDuplicateIdentity) {
		t.Fatalf("want ErrDuplicateIdentity, got %v", err)
	}

	rec, err = svc.Login(ctx, "a@b.com", "pw123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if rec.Identity != "a@b.com" {
		t.Fatalf("unexpected login record: %+v", rec)
	}

	if _, err := svc.Login(ctx, "a@b.com", "wrong"); !errors.Is(err, storage.ErrInvalidCredential) {
		t.Fatalf("want ErrInvalidCredential, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@b.com", "pw123"); !errors.Is(err, storage.ErrInvalidCredential) {
		t.Fatalf("want ErrInvalidCredential for unknown identity, got %v", err)
	}
}
