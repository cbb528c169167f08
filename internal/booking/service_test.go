package booking_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-booking/internal/availability"
	"ms-booking/internal/booking"
	bookingsdb "ms-booking/internal/bookings/db"
	"ms-booking/internal/database/dbtest"
	eventsdb "ms-booking/internal/events/db"
	"ms-booking/internal/kafka"
	"ms-booking/internal/locks"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

// Mock implementations
type MockEventStore struct {
	mock.Mock
}

func (m *MockEventStore) CreateEvent(ctx context.Context, event *models.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventStore) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockEventStore) GetEventWithBookings(ctx context.Context, id string) (*models.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockEventStore) ListEvents(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]models.Event), args.Error(1)
}

type MockBookingStore struct {
	mock.Mock
}

func (m *MockBookingStore) GetBookingByID(ctx context.Context, id string) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockBookingStore) ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *MockBookingStore) ListBookingsByEvent(ctx context.Context, eventID string) ([]models.Booking, error) {
	args := m.Called(ctx, eventID)
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *MockBookingStore) DeleteBooking(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockBookingStore) SumTickets(ctx context.Context, eventID string) (int, error) {
	args := m.Called(ctx, eventID)
	return args.Int(0), args.Error(1)
}

type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) TryCreateBooking(ctx context.Context, b *models.Booking) (availability.Result, error) {
	args := m.Called(ctx, b)
	return args.Get(0).(availability.Result), args.Error(1)
}

func (m *MockTxManager) UpdateBooking(ctx context.Context, id string, patch models.BookingPatch) (*models.Booking, availability.Result, error) {
	args := m.Called(ctx, id, patch)
	b, _ := args.Get(0).(*models.Booking)
	return b, args.Get(1).(availability.Result), args.Error(2)
}

func (m *MockTxManager) UpdateEvent(ctx context.Context, id string, patch models.EventPatch) (*models.Event, error) {
	args := m.Called(ctx, id, patch)
	e, _ := args.Get(0).(*models.Event)
	return e, args.Error(1)
}

func (m *MockTxManager) DeleteEvent(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishEventChange(ctx context.Context, action models.ChangeAction, event *models.Event) error {
	args := m.Called(ctx, action, event)
	return args.Error(0)
}

func (m *MockPublisher) PublishBookingChange(ctx context.Context, action models.ChangeAction, b *models.Booking) error {
	args := m.Called(ctx, action, b)
	return args.Error(0)
}

type mocks struct {
	events   *MockEventStore
	bookings *MockBookingStore
	tx       *MockTxManager
	kafka    *MockPublisher
}

func newMockedService() (*booking.Service, mocks) {
	m := mocks{
		events:   new(MockEventStore),
		bookings: new(MockBookingStore),
		tx:       new(MockTxManager),
		kafka:    new(MockPublisher),
	}
	return booking.NewService(m.events, m.bookings, m.tx, m.kafka, logger.Discard()), m
}

func TestCreateEvent_AssignsIDAndPublishes(t *testing.T) {
	svc, m := newMockedService()
	ctx := context.Background()

	m.events.On("CreateEvent", ctx, mock.AnythingOfType("*models.Event")).Return(nil)
	m.kafka.On("PublishEventChange", mock.Anything, models.ActionCreated, mock.AnythingOfType("*models.Event")).Return(nil)

	event, err := svc.CreateEvent(ctx, models.Event{ID: "client-supplied", Name: "Meetup", Capacity: 10})
	require.NoError(t, err)
	_, err = uuid.Parse(event.ID)
	assert.NoError(t, err, "server generates the id")
	assert.NotEqual(t, "client-supplied", event.ID)

	m.events.AssertExpectations(t)
	m.kafka.AssertExpectations(t)
}

func TestCreateEvent_ValidationErrorSkipsPublish(t *testing.T) {
	svc, m := newMockedService()
	ctx := context.Background()

	m.events.On("CreateEvent", ctx, mock.Anything).Return(models.NewValidationError("name", "is required"))

	_, err := svc.CreateEvent(ctx, models.Event{})
	assert.ErrorIs(t, err, models.ErrValidation)
	m.kafka.AssertNotCalled(t, "PublishEventChange", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetEvent_IncludeBookings(t *testing.T) {
	svc, m := newMockedService()
	ctx := context.Background()

	plain := &models.Event{ID: "e1"}
	withBookings := &models.Event{ID: "e1", Bookings: []models.Booking{{ID: "b1"}}}
	m.events.On("GetEventByID", ctx, "e1").Return(plain, nil)
	m.events.On("GetEventWithBookings", ctx, "e1").Return(withBookings, nil)

	got, err := svc.GetEvent(ctx, "e1", false)
	require.NoError(t, err)
	assert.Same(t, plain, got)

	got, err = svc.GetEvent(ctx, "e1", true)
	require.NoError(t, err)
	assert.Len(t, got.Bookings, 1)
}

func TestCheckAvailability(t *testing.T) {
	svc, m := newMockedService()
	ctx := context.Background()

	m.events.On("GetEventByID", ctx, "e1").Return(&models.Event{ID: "e1", Capacity: 10}, nil)
	m.bookings.On("SumTickets", ctx, "e1").Return(8, nil)

	res, err := svc.CheckAvailability(ctx, "e1", 3)
	require.NoError(t, err)
	assert.False(t, res.Available)
	assert.Equal(t, 2, res.Remaining)

	res, err = svc.CheckAvailability(ctx, "e1", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Requested, "defaults to one ticket")
	assert.True(t, res.Available)

	m.events.On("GetEventByID", ctx, "missing").Return(nil, models.ErrEventNotFound)
	_, err = svc.CheckAvailability(ctx, "missing", 1)
	assert.ErrorIs(t, err, models.ErrEventNotFound)
}

func TestCreateBooking_CapacityRefusalIsReturned(t *testing.T) {
	svc, m := newMockedService()
	ctx := context.Background()

	res := availability.Check(10, 8, 3)
	m.tx.On("TryCreateBooking", ctx, mock.AnythingOfType("*models.Booking")).
		Return(res, &models.CapacityError{Availability: res})

	_, got, err := svc.CreateBooking(ctx, models.Booking{EventID: "e1", UserEmail: "a@example.com", NumTickets: 3})
	assert.ErrorIs(t, err, models.ErrCapacityExceeded)
	assert.Equal(t, 2, got.Remaining)
	m.kafka.AssertNotCalled(t, "PublishBookingChange", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateBooking_PublishFailureIsNotReturned(t *testing.T) {
	svc, m := newMockedService()
	ctx := context.Background()

	m.tx.On("TryCreateBooking", ctx, mock.AnythingOfType("*models.Booking")).Return(availability.Check(10, 0, 2), nil)
	m.kafka.On("PublishBookingChange", mock.Anything, models.ActionCreated, mock.Anything).Return(errors.New("broker down"))

	b, res, err := svc.CreateBooking(ctx, models.Booking{EventID: "e1", UserEmail: "a@example.com", NumTickets: 2})
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, 8, res.After())
	m.kafka.AssertExpectations(t)
}

func TestListBookingsForEvent_UnknownEvent(t *testing.T) {
	svc, m := newMockedService()
	ctx := context.Background()

	m.events.On("GetEventByID", ctx, "missing").Return(nil, models.ErrEventNotFound)

	_, err := svc.ListBookingsForEvent(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrEventNotFound)
	m.bookings.AssertNotCalled(t, "ListBookingsByEvent", mock.Anything, mock.Anything)
}

func TestDeleteBooking(t *testing.T) {
	svc, m := newMockedService()
	ctx := context.Background()

	existing := &models.Booking{ID: "b1", EventID: "e1", NumTickets: 2}
	m.bookings.On("GetBookingByID", ctx, "b1").Return(existing, nil)
	m.bookings.On("DeleteBooking", ctx, "b1").Return(nil)
	m.kafka.On("PublishBookingChange", mock.Anything, models.ActionDeleted, existing).Return(nil)

	require.NoError(t, svc.DeleteBooking(ctx, "b1"))

	m.bookings.On("GetBookingByID", ctx, "gone").Return(nil, models.ErrBookingNotFound)
	assert.ErrorIs(t, svc.DeleteBooking(ctx, "gone"), models.ErrBookingNotFound)

	m.bookings.AssertExpectations(t)
	m.kafka.AssertExpectations(t)
}

func TestDeleteEvent_PublishesDeletion(t *testing.T) {
	svc, m := newMockedService()
	ctx := context.Background()

	m.tx.On("DeleteEvent", ctx, "e1").Return(nil)
	m.kafka.On("PublishEventChange", mock.Anything, models.ActionDeleted, mock.MatchedBy(func(e *models.Event) bool {
		return e.ID == "e1"
	})).Return(nil)

	require.NoError(t, svc.DeleteEvent(ctx, "e1"))
	m.kafka.AssertExpectations(t)
}

// newSQLiteService wires the real stores and transaction manager.
func newSQLiteService(t *testing.T) *booking.Service {
	bunDB := dbtest.NewSQLite(t)
	tx := &bookingsdb.TxManager{Bun: bunDB, Locker: locks.NewKeyedMutex()}
	return booking.NewService(
		&eventsdb.DB{Bun: bunDB},
		&bookingsdb.DB{Bun: bunDB},
		tx,
		kafka.NoopPublisher{},
		logger.Discard(),
	)
}

func TestService_EndToEndOnSQLite(t *testing.T) {
	svc := newSQLiteService(t)
	ctx := context.Background()

	event, err := svc.CreateEvent(ctx, models.Event{
		Name:     "Workshop",
		Date:     time.Now().Add(48 * time.Hour),
		Capacity: 10,
	})
	require.NoError(t, err)

	first, res, err := svc.CreateBooking(ctx, models.Booking{EventID: event.ID, UserEmail: "a@example.com", NumTickets: 8})
	require.NoError(t, err)
	assert.Equal(t, 2, res.After())

	_, res, err = svc.CreateBooking(ctx, models.Booking{EventID: event.ID, UserEmail: "b@example.com", NumTickets: 3})
	assert.ErrorIs(t, err, models.ErrCapacityExceeded)
	assert.Equal(t, 2, res.Remaining)

	_, _, err = svc.CreateBooking(ctx, models.Booking{EventID: event.ID, UserEmail: "b@example.com", NumTickets: 2})
	require.NoError(t, err)

	avail, err := svc.CheckAvailability(ctx, event.ID, 1)
	require.NoError(t, err)
	assert.False(t, avail.Available)
	assert.Equal(t, 0, avail.Remaining)

	require.NoError(t, svc.DeleteBooking(ctx, first.ID))
	avail, err = svc.CheckAvailability(ctx, event.ID, 8)
	require.NoError(t, err)
	assert.True(t, avail.Available)

	forEvent, err := svc.ListBookingsForEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Len(t, forEvent, 1)

	require.NoError(t, svc.DeleteEvent(ctx, event.ID))
	_, err = svc.GetEvent(ctx, event.ID, false)
	assert.ErrorIs(t, err, models.ErrEventNotFound)
	_, err = svc.ListBookingsForEvent(ctx, event.ID)
	assert.ErrorIs(t, err, models.ErrEventNotFound)
}
