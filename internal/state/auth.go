package state

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/lexnova/lexnova/internal/api"
	"github.com/lexnova/lexnova/internal/db"
)

// Persister is the save/load boundary for the auth state. *db.Store
// implements it.
type Persister interface {
	LoadAuth() (*db.AuthRecord, error)
	SaveAuth(db.AuthRecord) error
	ClearAuth() error
}

// AuthState is the lawyer's identity.
type AuthState struct {
	Token           string
	User            *api.User
	IsAuthenticated bool
}

// AuthStore owns the bearer token and current user.
type AuthStore struct {
	client  *api.Client
	persist Persister

	mu    sync.RWMutex
	state AuthState
}

// NewAuthStore creates an AuthStore. persist may be nil, in which case the
// identity lives only for the process.
func NewAuthStore(client *api.Client, persist Persister) *AuthStore {
	return &AuthStore{client: client, persist: persist}
}

// Load restores the persisted identity. Call once at process start.
func (s *AuthStore) Load() error {
	if s.persist == nil {
		return nil
	}
	rec, err := s.persist.LoadAuth()
	if err != nil {
		return err
	}
	if rec == nil || !rec.Authenticated || rec.Token == "" {
		return nil
	}

	s.mu.Lock()
	s.state = AuthState{
		Token: rec.Token,
		User: &api.User{
			ID:    rec.UserID,
			Email: rec.Email,
			Name:  rec.Name,
		},
		IsAuthenticated: true,
	}
	s.mu.Unlock()
	return nil
}

// State returns a copy of the current identity.
func (s *AuthStore) State() AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

// Token returns the bearer token, or "" when logged out. It is suitable as
// an api.WithTokenSource function.
func (s *AuthStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

// IsAuthenticated reports whether a lawyer is logged in.
func (s *AuthStore) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated
}

// Login exchanges credentials for a token and fetches the user with it.
// Nothing is committed unless both calls succeed.
func (s *AuthStore) Login(ctx context.Context, email, password string) error {
	if err := ValidateCredentials(email, password); err != nil {
		return err
	}
	email = strings.TrimSpace(email)

	resp, err := s.client.Login(ctx, email, password)
	if err != nil {
		log.Printf("login failed: %v", err)
		return err
	}
	user, err := s.client.WithToken(resp.AccessToken).Me(ctx)
	if err != nil {
		log.Printf("login failed: %v", err)
		return err
	}

	s.mu.Lock()
	s.state = AuthState{Token: resp.AccessToken, User: user, IsAuthenticated: true}
	s.mu.Unlock()

	if s.persist != nil {
		err := s.persist.SaveAuth(db.AuthRecord{
			Token:         resp.AccessToken,
			UserID:        user.ID,
			Email:         user.Email,
			Name:          user.Name,
			Authenticated: true,
		})
		if err != nil {
			log.Printf("persist auth state: %v", err)
		}
	}
	return nil
}

// Logout clears the identity in memory and on disk. It cannot fail.
func (s *AuthStore) Logout() {
	s.mu.Lock()
	s.state = AuthState{}
	s.mu.Unlock()

	if s.persist != nil {
		if err := s.persist.ClearAuth(); err != nil {
			log.Printf("clear auth state: %v", err)
		}
	}
}

// Register creates an account. It does not log in.
func (s *AuthStore) Register(ctx context.Context, email, password, name string) error {
	if err := ValidateRegistration(email, password, name); err != nil {
		return err
	}
	err := s.client.Register(ctx, api.RegisterRequest{
		Email:    strings.TrimSpace(email),
		Password: password,
		Name:     strings.TrimSpace(name),
	})
	if err != nil {
		log.Printf("registration failed: %v", err)
	}
	return err
}
