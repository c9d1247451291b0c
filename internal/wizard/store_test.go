package wizard

import (
	"context"
	"testing"
	"time"

	"tailorly/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, session.Manager) {
	t.Helper()
	backend := session.NewMemoryStore(time.Minute)
	t.Cleanup(func() { backend.Close() })
	sessions := session.NewManager(backend, time.Hour, nil)
	return NewStore(sessions, nil), sessions
}

func TestStore_OrderResumes(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	assert.Equal(t, SelectProduct{}, s.Order(ctx, "b"))

	require.NoError(t, s.SaveOrder(ctx, "b", reviewStep()))
	assert.Equal(t, reviewStep(), s.Order(ctx, "b"))

	submitted := OrderSubmitted{OrderReview: reviewStep(), OrderID: "o-1"}
	require.NoError(t, s.SaveOrder(ctx, "b", submitted))
	assert.Equal(t, submitted, s.Order(ctx, "b"))

	require.NoError(t, s.ResetOrder(ctx, "b"))
	assert.Equal(t, SelectProduct{}, s.Order(ctx, "b"))
}

func TestStore_MeasurementResumes(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	review := MeasurementReview{Subject: ada, Values: body()}
	require.NoError(t, s.SaveMeasurement(ctx, "b", review))
	assert.Equal(t, review, s.Measurement(ctx, "b"))

	require.NoError(t, s.ResetMeasurement(ctx, "b"))
	assert.Equal(t, EnterSubject{}, s.Measurement(ctx, "b"))
}

func TestStore_CorruptStateRestarts(t *testing.T) {
	s, sessions := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, sessions.SetItem(ctx, "b", orderKey, "not json"))
	assert.Equal(t, SelectProduct{}, s.Order(ctx, "b"))

	require.NoError(t, sessions.SetItem(ctx, "b", measurementKey, `{"step":"teleport"}`))
	assert.Equal(t, EnterSubject{}, s.Measurement(ctx, "b"))
}

func TestStore_SeparateBrowsers(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveOrder(ctx, "a", SelectMeasurement{Product: shirt}))
	assert.Equal(t, SelectProduct{}, s.Order(ctx, "b"))
}

func TestDecodeOrderAction(t *testing.T) {
	a, err := DecodeOrderAction([]byte(`{"type":"choose_product","product":{"id":"p-1","name":"Oxford shirt"}}`))
	require.NoError(t, err)
	assert.Equal(t, ChooseProduct{Product: shirt}, a)

	a, err = DecodeOrderAction([]byte(`{"type":"set_details","quantity":3}`))
	require.NoError(t, err)
	assert.Equal(t, SetOrderDetails{Quantity: 3}, a)

	_, err = DecodeOrderAction([]byte(`{"type":"submit"}`))
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = DecodeOrderAction([]byte(`{"type":"set_details","quantity":"many"}`))
	assert.Error(t, err)
}

func TestDecodeMeasurementAction(t *testing.T) {
	a, err := DecodeMeasurementAction([]byte(`{"type":"set_body","values":{"chest":90}}`))
	require.NoError(t, err)
	assert.Equal(t, SetBody{Values: map[string]float64{"chest": 90}}, a)

	a, err = DecodeMeasurementAction([]byte(`{"type":"back"}`))
	require.NoError(t, err)
	assert.Equal(t, MeasurementBack{}, a)

	typ, err := ActionType([]byte(`{"type":"submit"}`))
	require.NoError(t, err)
	assert.Equal(t, ActionSubmit, typ)
}
