package auth_test

import (
	"context"
	"sync"
	"time"

	"media_tracker/internal/models"
	"media_tracker/internal/storage"
)

// fakeStore is an in-memory user store with the same conditional-update semantics
// as the real repositories.
type fakeStore struct {
	mu    sync.Mutex
	users map[string]models.User

	saveErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]models.User)}
}

func (f *fakeStore) SaveUser(_ context.Context, u models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.saveErr != nil {
		return f.saveErr
	}

	for _, existing := range f.users {
		if existing.Email == u.Email {
			return storage.ErrUserExists
		}
	}

	f.users[u.ID] = u
	return nil
}

func (f *fakeStore) User(_ context.Context, email string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, storage.ErrUserNotFound
}

func (f *fakeStore) UserByID(_ context.Context, id string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeStore) SetEmailVerified(_ context.Context, token string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, u := range f.users {
		if u.VerificationToken != nil && *u.VerificationToken == token {
			u.IsVerified = true
			u.VerificationToken = nil
			f.users[id] = u
			return u, nil
		}
	}
	return models.User{}, storage.ErrTokenNotFound
}

func (f *fakeStore) UpdateVerificationToken(_ context.Context, email, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, u := range f.users {
		if u.Email == email && !u.IsVerified {
			u.VerificationToken = &token
			f.users[id] = u
			return nil
		}
	}
	return storage.ErrUserNotFound
}

func (f *fakeStore) delete(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
}

// raceStore reports every email as free on lookup, so only the insert sees the duplicate.
type raceStore struct {
	*fakeStore
}

func (r raceStore) User(context.Context, string) (models.User, error) {
	return models.User{}, storage.ErrUserNotFound
}

type sentEmail struct {
	Email, Token, Name string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentEmail
}

func (n *fakeNotifier) SendVerification(email, token, name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentEmail{Email: email, Token: token, Name: name})
}

func (n *fakeNotifier) last() sentEmail {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}

type fakeLimiter struct {
	held map[string]bool
	err  error
}

func (l *fakeLimiter) AcquireResendSlot(_ context.Context, email string, _ time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	if l.held[email] {
		return false, nil
	}
	l.held[email] = true
	return true, nil
}
