package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/msmm/aitools/internal/models"
	"github.com/msmm/aitools/internal/store"
)

// UserStore implements store.UserStore using in-memory storage.
// Deleting a user also deletes their sessions from the linked SessionStore,
// mirroring the ON DELETE CASCADE of the PostgreSQL schema.
type UserStore struct {
	mu sync.RWMutex

	users    map[string]*models.User // username -> User
	nextID   int64
	sessions *SessionStore
}

// NewUserStore creates a new in-memory user store. sessions may be nil.
func NewUserStore(sessions *SessionStore) *UserStore {
	return &UserStore{
		users:    make(map[string]*models.User),
		nextID:   1,
		sessions: sessions,
	}
}

// Create creates a new user in memory.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.Username]; exists {
		return store.ErrUserAlreadyExists
	}

	user.UserID = s.nextID
	s.nextID++
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	clone := *user
	s.users[user.Username] = &clone

	return nil
}

// GetByUsername retrieves a user by username.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[username]
	if !exists {
		return nil, store.ErrUserNotFound
	}

	clone := *user
	return &clone, nil
}

// TouchLastLogin records a successful login.
func (s *UserStore) TouchLastLogin(ctx context.Context, userID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.UserID == userID {
			t := at
			user.LastLogin = &t
			return nil
		}
	}

	return store.ErrUserNotFound
}

// Delete removes a user and cascades to their sessions.
func (s *UserStore) Delete(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[username]
	if !exists {
		return store.ErrUserNotFound
	}

	if s.sessions != nil {
		if _, err := s.sessions.DeleteByUser(ctx, user.UserID); err != nil {
			return err
		}
	}

	delete(s.users, username)

	return nil
}

// List returns all users ordered by username.
func (s *UserStore) List(ctx context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*models.User, 0, len(s.users))
	for _, user := range s.users {
		clone := *user
		users = append(users, &clone)
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].Username < users[j].Username
	})

	return users, nil
}
