package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tailorly/internal/session"
)

// Storage keys inside a browser namespace
const (
	orderKey       = "wizard:order"
	measurementKey = "wizard:measurement"
)

// Store persists wizard progress per browser so a reload resumes the wizard
type Store struct {
	sessions session.Manager
	logger   *slog.Logger
}

// NewStore creates a Store on top of the browser session storage
func NewStore(sessions session.Manager, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{sessions: sessions, logger: logger}
}

// Order returns the saved order step, or the first step when nothing usable is stored
func (s *Store) Order(ctx context.Context, browserID string) OrderStep {
	raw, ok := s.load(ctx, browserID, orderKey)
	if !ok {
		return NewOrder()
	}
	step, err := DecodeOrder([]byte(raw))
	if err != nil {
		s.logger.Warn("Discarding unreadable order wizard", "browser_id", browserID, "error", err.Error())
		return NewOrder()
	}
	return step
}

// SaveOrder stores step
func (s *Store) SaveOrder(ctx context.Context, browserID string, step OrderStep) error {
	b, err := EncodeOrder(step)
	if err != nil {
		return err
	}
	if err := s.sessions.SetItem(ctx, browserID, orderKey, string(b)); err != nil {
		return fmt.Errorf("save order wizard: %w", err)
	}
	return nil
}

// ResetOrder discards order progress
func (s *Store) ResetOrder(ctx context.Context, browserID string) error {
	return s.sessions.RemoveItem(ctx, browserID, orderKey)
}

// Measurement returns the saved measurement step, or the first step
func (s *Store) Measurement(ctx context.Context, browserID string) MeasurementStep {
	raw, ok := s.load(ctx, browserID, measurementKey)
	if !ok {
		return NewMeasurement()
	}
	step, err := DecodeMeasurement([]byte(raw))
	if err != nil {
		s.logger.Warn("Discarding unreadable measurement wizard", "browser_id", browserID, "error", err.Error())
		return NewMeasurement()
	}
	return step
}

// SaveMeasurement stores step
func (s *Store) SaveMeasurement(ctx context.Context, browserID string, step MeasurementStep) error {
	b, err := EncodeMeasurement(step)
	if err != nil {
		return err
	}
	if err := s.sessions.SetItem(ctx, browserID, measurementKey, string(b)); err != nil {
		return fmt.Errorf("save measurement wizard: %w", err)
	}
	return nil
}

// ResetMeasurement discards measurement progress
func (s *Store) ResetMeasurement(ctx context.Context, browserID string) error {
	return s.sessions.RemoveItem(ctx, browserID, measurementKey)
}

func (s *Store) load(ctx context.Context, browserID, key string) (string, bool) {
	raw, err := s.sessions.GetItem(ctx, browserID, key)
	if err != nil {
		if !errors.Is(err, session.ErrKeyNotFound) {
			s.logger.Warn("Wizard storage read failed", "browser_id", browserID, "key", key, "error", err.Error())
		}
		return "", false
	}
	return raw, true
}
