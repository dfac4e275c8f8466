package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"linkedin-optimizer/internal/storage"
)

// HashPassword returns the lowercase hex SHA-256 digest of the plaintext
// secret. Deterministic and unsalted: login compares the stored digest for
// exact equality, so the same plaintext must always produce the same digest.
func HashPassword(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// Service handles signup and login on top of the Store.
type Service struct {
	store storage.Store
}

func New(store storage.Store) *Service {
	return &Service{store: store}
}

// SignUp registers the identity and returns a record with empty context
// blobs. Returns storage.ErrDuplicateIdentity when the identity is taken.
func (s *Service) SignUp(ctx context.Context, identity, password string) (storage.UserRecord, error) {
	if err := s.store.CreateUser(ctx, identity, HashPassword(password)); err != nil {
		return storage.UserRecord{}, err
	}
	return storage.UserRecord{Identity: identity}, nil
}

// Login verifies the credential pair and returns the stored context blobs.
// Returns storage.ErrInvalidCredential when no user matches.
func (s *Service) Login(ctx context.Context, identity, password string) (storage.UserRecord, error) {
	return s.store.Authenticate(ctx, identity, HashPassword(password))
}
