// Package session provides the per-browser persistent key-value storage that
// holds the auth token, role and profile of a signed-in browser.
// Each browser owns a key namespace identified by an opaque browser id; the
// logical keys inside it are authToken, userRole and userData.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Logical keys within a browser namespace
const (
	KeyAuthToken = "authToken"
	KeyUserRole  = "userRole"
	KeyUserData  = "userData"
)

// DefaultMaxAge is how long an idle browser namespace is kept
const DefaultMaxAge = 24 * time.Hour

// ErrEmptyBrowserID is returned when an operation is attempted without a browser id
var ErrEmptyBrowserID = errors.New("empty browser id")

// Manager defines the interface for session storage operations
type Manager interface {
	// Load never fails: a missing, partial or corrupt record reads as no session.
	Load(ctx context.Context, browserID string) (*Session, bool)
	Save(ctx context.Context, browserID string, s Session) error
	Clear(ctx context.Context, browserID string) error
	UpdateProfile(ctx context.Context, browserID string, p Profile) error

	GetItem(ctx context.Context, browserID, key string) (string, error)
	SetItem(ctx context.Context, browserID, key, value string) error
	RemoveItem(ctx context.Context, browserID, key string) error
}

// manager implements Manager interface
type manager struct {
	store  Store
	maxAge time.Duration
	logger *slog.Logger
}

// NewManager creates a new session manager
func NewManager(store Store, maxAge time.Duration, logger *slog.Logger) Manager {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &manager{
		store:  store,
		maxAge: maxAge,
		logger: logger,
	}
}

// NewBrowserID returns a fresh random browser id
func NewBrowserID() string {
	return uuid.New().String()
}

func itemKey(browserID, key string) string {
	return fmt.Sprintf("browser:%s:%s", browserID, key)
}

// Load reads the three session keys. Anything short of a complete, decodable
// record is reported as no session.
func (m *manager) Load(ctx context.Context, browserID string) (*Session, bool) {
	if browserID == "" {
		return nil, false
	}

	token, err := m.store.Get(ctx, itemKey(browserID, KeyAuthToken))
	if err != nil {
		m.logLoadMiss(browserID, KeyAuthToken, err)
		return nil, false
	}
	userRole, err := m.store.Get(ctx, itemKey(browserID, KeyUserRole))
	if err != nil {
		m.logLoadMiss(browserID, KeyUserRole, err)
		return nil, false
	}
	userData, err := m.store.Get(ctx, itemKey(browserID, KeyUserData))
	if err != nil {
		m.logLoadMiss(browserID, KeyUserData, err)
		return nil, false
	}

	if token == "" || userRole == "" || userData == "" {
		return nil, false
	}

	var profile Profile
	if err := json.Unmarshal([]byte(userData), &profile); err != nil {
		m.logger.Warn("Discarding malformed user data",
			"browser_id", browserID,
			"error", err.Error(),
		)
		return nil, false
	}

	return &Session{
		Token:   token,
		Role:    userRole,
		Profile: profile,
	}, true
}

func (m *manager) logLoadMiss(browserID, key string, err error) {
	if errors.Is(err, ErrKeyNotFound) {
		return
	}
	m.logger.Warn("Session storage read failed",
		"browser_id", browserID,
		"key", key,
		"error", err.Error(),
	)
}

// Save writes token, role and profile together
func (m *manager) Save(ctx context.Context, browserID string, s Session) error {
	if browserID == "" {
		return ErrEmptyBrowserID
	}

	userData, err := json.Marshal(s.Profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	values := map[string]string{
		itemKey(browserID, KeyAuthToken): s.Token,
		itemKey(browserID, KeyUserRole):  s.Role,
		itemKey(browserID, KeyUserData):  string(userData),
	}
	if err := m.store.SetMany(ctx, values, m.maxAge); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	return nil
}

// Clear destroys the browser namespace: token, role, profile and every item
// stored next to them, such as wizard progress
func (m *manager) Clear(ctx context.Context, browserID string) error {
	if browserID == "" {
		return nil
	}
	err := m.store.Delete(ctx,
		itemKey(browserID, KeyAuthToken),
		itemKey(browserID, KeyUserRole),
		itemKey(browserID, KeyUserData),
	)
	if err == nil {
		err = m.store.DeletePrefix(ctx, itemKey(browserID, ""))
	}
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// UpdateProfile replaces the stored profile of an existing session
func (m *manager) UpdateProfile(ctx context.Context, browserID string, p Profile) error {
	current, ok := m.Load(ctx, browserID)
	if !ok {
		return ErrKeyNotFound
	}
	current.Profile = p
	return m.Save(ctx, browserID, *current)
}

// GetItem reads an arbitrary key from the browser namespace
func (m *manager) GetItem(ctx context.Context, browserID, key string) (string, error) {
	if browserID == "" {
		return "", ErrEmptyBrowserID
	}
	return m.store.Get(ctx, itemKey(browserID, key))
}

// SetItem writes an arbitrary key into the browser namespace
func (m *manager) SetItem(ctx context.Context, browserID, key, value string) error {
	if browserID == "" {
		return ErrEmptyBrowserID
	}
	return m.store.Set(ctx, itemKey(browserID, key), value, m.maxAge)
}

// RemoveItem deletes an arbitrary key from the browser namespace
func (m *manager) RemoveItem(ctx context.Context, browserID, key string) error {
	if browserID == "" {
		return nil
	}
	return m.store.Delete(ctx, itemKey(browserID, key))
}
