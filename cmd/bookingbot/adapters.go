package main

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/example/facility-booking/internal/application"
	"github.com/example/facility-booking/internal/persistence"
)

// mapStoreError translates persistence sentinels into the ones the core
// understands.
func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return errors.Join(application.ErrNotFound, err)
	case errors.Is(err, persistence.ErrDuplicate):
		return errors.Join(application.ErrDuplicateUser, err)
	default:
		return err
	}
}

type registryStoreAdapter struct {
	repo persistence.RegistryStore
	now  func() time.Time
}

func newRegistryStoreAdapter(repo persistence.RegistryStore, now func() time.Time) *registryStoreAdapter {
	return &registryStoreAdapter{repo: repo, now: now}
}

func (a *registryStoreAdapter) LoadRegistry(ctx context.Context) (application.RegistrySnapshot, error) {
	stored, err := a.repo.LoadRegistry(ctx)
	if err != nil {
		return application.RegistrySnapshot{}, mapStoreError(err)
	}
	snapshot := application.RegistrySnapshot{
		Users:     make([]application.User, 0, len(stored.Users)),
		Requests:  make([]application.RegistrationRequest, 0, len(stored.Requests)),
		AllowList: make([]string, 0, len(stored.AllowList)),
	}
	for _, user := range stored.Users {
		snapshot.Users = append(snapshot.Users, toApplicationUser(user))
	}
	for _, request := range stored.Requests {
		snapshot.Requests = append(snapshot.Requests, toApplicationRegistration(request))
	}
	for _, entry := range stored.AllowList {
		snapshot.AllowList = append(snapshot.AllowList, entry.Digest)
	}
	return snapshot, nil
}

func (a *registryStoreAdapter) SaveUser(ctx context.Context, user application.User) error {
	return mapStoreError(a.repo.SaveUser(ctx, toPersistenceUser(user)))
}

func (a *registryStoreAdapter) DeleteUser(ctx context.Context, id string) error {
	return mapStoreError(a.repo.DeleteUser(ctx, id))
}

func (a *registryStoreAdapter) SaveRegistrationRequest(ctx context.Context, request application.RegistrationRequest) error {
	return mapStoreError(a.repo.SaveRegistrationRequest(ctx, toPersistenceRegistration(request)))
}

func (a *registryStoreAdapter) DeleteRegistrationRequest(ctx context.Context, userID string) error {
	return mapStoreError(a.repo.DeleteRegistrationRequest(ctx, userID))
}

func (a *registryStoreAdapter) AddAllowListDigest(ctx context.Context, digest string) error {
	err := a.repo.AddAllowListEntry(ctx, persistence.AllowListEntry{Digest: digest, CreatedAt: a.now()})
	if errors.Is(err, persistence.ErrDuplicate) {
		return nil
	}
	return mapStoreError(err)
}

func (a *registryStoreAdapter) ApproveRegistration(ctx context.Context, user application.User, digest string) error {
	entry := persistence.AllowListEntry{Digest: digest, CreatedAt: a.now()}
	return mapStoreError(a.repo.ApproveRegistration(ctx, toPersistenceUser(user), entry))
}

type queueStoreAdapter struct {
	repo persistence.QueueStore
}

func newQueueStoreAdapter(repo persistence.QueueStore) *queueStoreAdapter {
	return &queueStoreAdapter{repo: repo}
}

func (a *queueStoreAdapter) LoadPendingBookings(ctx context.Context) ([]application.BookingRequest, error) {
	stored, err := a.repo.LoadPendingBookings(ctx)
	if err != nil {
		return nil, mapStoreError(err)
	}
	requests := make([]application.BookingRequest, 0, len(stored))
	for _, request := range stored {
		requests = append(requests, application.BookingRequest{
			ID:            request.ID,
			RequesterID:   request.RequesterID,
			DisplayName:   request.DisplayName,
			Unit:          request.Unit,
			FacilityIndex: request.FacilityIndex,
			Start:         request.Start.In(application.OrganizationZone),
			End:           request.End.In(application.OrganizationZone),
			CreatedAt:     request.CreatedAt.In(application.OrganizationZone),
		})
	}
	return requests, nil
}

func (a *queueStoreAdapter) InsertPendingBooking(ctx context.Context, request application.BookingRequest) error {
	return mapStoreError(a.repo.InsertPendingBooking(ctx, persistence.BookingRequest{
		ID:            request.ID,
		RequesterID:   request.RequesterID,
		DisplayName:   request.DisplayName,
		Unit:          request.Unit,
		FacilityIndex: request.FacilityIndex,
		Start:         request.Start,
		End:           request.End,
		CreatedAt:     request.CreatedAt,
	}))
}

func (a *queueStoreAdapter) DeletePendingBooking(ctx context.Context, id string) error {
	return mapStoreError(a.repo.DeletePendingBooking(ctx, id))
}

// eventCalendar serves the calendar port from the events table.
type eventCalendar struct {
	repo  persistence.EventStore
	newID func() string
	now   func() time.Time
}

func newEventCalendar(repo persistence.EventStore, now func() time.Time) *eventCalendar {
	return &eventCalendar{repo: repo, newID: uuid.NewString, now: now}
}

func (c *eventCalendar) ListEvents(ctx context.Context, facilityIndex int, start, end time.Time) ([]application.Event, error) {
	stored, err := c.repo.ListEvents(ctx, persistence.EventFilter{
		FacilityIndex: facilityIndex,
		StartsBefore:  end,
		EndsAfter:     start,
	})
	if err != nil {
		return nil, mapStoreError(err)
	}
	events := make([]application.Event, 0, len(stored))
	for _, event := range stored {
		events = append(events, application.Event{
			ID:            event.ID,
			FacilityIndex: event.FacilityIndex,
			Summary:       event.Summary,
			Start:         event.Start.In(application.OrganizationZone),
			End:           event.End.In(application.OrganizationZone),
		})
	}
	return events, nil
}

func (c *eventCalendar) InsertEvent(ctx context.Context, facilityIndex int, summary string, start, end time.Time) (string, error) {
	id := c.newID()
	err := c.repo.InsertEvent(ctx, persistence.Event{
		ID:            id,
		FacilityIndex: facilityIndex,
		Summary:       summary,
		Start:         start,
		End:           end,
		CreatedAt:     c.now(),
	})
	if err != nil {
		return "", mapStoreError(err)
	}
	return id, nil
}

func (c *eventCalendar) DeleteEvent(ctx context.Context, facilityIndex int, eventID string) error {
	return mapStoreError(c.repo.DeleteEvent(ctx, facilityIndex, eventID))
}

func toApplicationUser(user persistence.User) application.User {
	return application.User{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Unit:        user.Unit,
		IsAdmin:     user.IsAdmin,
		CreatedAt:   user.CreatedAt.In(application.OrganizationZone),
	}
}

func toPersistenceUser(user application.User) persistence.User {
	return persistence.User{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Unit:        user.Unit,
		IsAdmin:     user.IsAdmin,
		CreatedAt:   user.CreatedAt,
	}
}

func toApplicationRegistration(request persistence.RegistrationRequest) application.RegistrationRequest {
	return application.RegistrationRequest{
		UserID:      request.UserID,
		Key:         application.AuthKey{Identity: request.Identity, Numeric: request.Numeric},
		DisplayName: request.DisplayName,
		Unit:        request.Unit,
		CreatedAt:   request.CreatedAt.In(application.OrganizationZone),
	}
}

func toPersistenceRegistration(request application.RegistrationRequest) persistence.RegistrationRequest {
	return persistence.RegistrationRequest{
		UserID:      request.UserID,
		Identity:    request.Key.Identity,
		Numeric:     request.Key.Numeric,
		DisplayName: request.DisplayName,
		Unit:        request.Unit,
		CreatedAt:   request.CreatedAt,
	}
}
