package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-desk-scheduling/internal/calendar"
	"github.com/hackgods/clinic-desk-scheduling/internal/config"
	redisclient "github.com/hackgods/clinic-desk-scheduling/internal/redis"
)

const testDate = "2025-03-10"

type fixture struct {
	repo      *MemoryRepository
	svc       *Service
	patient   Patient
	physician Physician
	room      Room
	procedure Procedure
	staff     Caller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithRepo(t, nil)
}

// newFixtureWithRepo seeds a memory repository and builds the service on top
// of wrap(repo) when wrap is given.
func newFixtureWithRepo(t *testing.T, wrap func(*MemoryRepository) Repository) *fixture {
	t.Helper()

	repo := NewMemoryRepository()
	f := &fixture{
		repo:      repo,
		patient:   Patient{ID: uuid.New(), Name: "Ana Souza"},
		physician: Physician{ID: uuid.New(), Name: "Dr. Lima"},
		room:      Room{ID: uuid.New(), Name: "Room 1"},
		procedure: Procedure{ID: uuid.New(), Name: "General consultation"},
		staff:     Caller{ID: uuid.New(), Role: RoleStaff},
	}
	repo.AddPatient(f.patient)
	repo.AddPhysician(f.physician)
	repo.AddRoom(f.room)
	repo.AddProcedure(f.procedure)

	var r Repository = repo
	if wrap != nil {
		r = wrap(repo)
	}
	f.svc = NewService(r, redisclient.NewLocalLocker(), config.Config{SlotStepMinutes: 30}, zap.NewNop())
	return f
}

func (f *fixture) patientCaller() Caller {
	return Caller{ID: f.patient.ID, Role: RolePatient}
}

func (f *fixture) book(t *testing.T, at string) *Appointment {
	t.Helper()
	appt, err := f.svc.BookAppointment(context.Background(), f.staff, f.bookInput(at))
	require.NoError(t, err)
	return appt
}

func (f *fixture) bookInput(at string) BookInput {
	return BookInput{
		PatientID:   f.patient.ID,
		PhysicianID: f.physician.ID,
		ProcedureID: f.procedure.ID,
		RoomID:      f.room.ID,
		Date:        testDate,
		Time:        at,
	}
}

func (f *fixture) addRoom(name string) Room {
	r := Room{ID: uuid.New(), Name: name}
	f.repo.AddRoom(r)
	return r
}

func (f *fixture) addPhysician(name string) Physician {
	p := Physician{ID: uuid.New(), Name: name}
	f.repo.AddPhysician(p)
	return p
}

func (f *fixture) eventTypes() []string {
	var out []string
	for _, ev := range f.repo.Events() {
		out = append(out, ev.EventType)
	}
	return out
}

func mustTime(t *testing.T, s string) calendar.TimeOfDay {
	t.Helper()
	tod, err := calendar.ParseTimeOfDay(s)
	require.NoError(t, err)
	return tod
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := calendar.ParseDate(s)
	require.NoError(t, err)
	return d
}

// stubRepo overrides selected repository calls; everything else goes to the
// embedded memory repository.
type stubRepo struct {
	*MemoryRepository
	roomSlotTaken     func(ctx context.Context, roomID uuid.UUID, date time.Time, at calendar.TimeOfDay) (bool, error)
	findOccupiedTimes func(ctx context.Context, date time.Time, roomID, physicianID uuid.UUID, exclude *uuid.UUID) ([]calendar.TimeOfDay, error)
	insertEvent       func(ctx context.Context, ev EventLog) error
}

func (s *stubRepo) RoomSlotTaken(ctx context.Context, roomID uuid.UUID, date time.Time, at calendar.TimeOfDay) (bool, error) {
	if s.roomSlotTaken != nil {
		return s.roomSlotTaken(ctx, roomID, date, at)
	}
	return s.MemoryRepository.RoomSlotTaken(ctx, roomID, date, at)
}

func (s *stubRepo) FindOccupiedTimes(ctx context.Context, date time.Time, roomID, physicianID uuid.UUID, exclude *uuid.UUID) ([]calendar.TimeOfDay, error) {
	if s.findOccupiedTimes != nil {
		return s.findOccupiedTimes(ctx, date, roomID, physicianID, exclude)
	}
	return s.MemoryRepository.FindOccupiedTimes(ctx, date, roomID, physicianID, exclude)
}

func (s *stubRepo) InsertEvent(ctx context.Context, ev EventLog) error {
	if s.insertEvent != nil {
		return s.insertEvent(ctx, ev)
	}
	return s.MemoryRepository.InsertEvent(ctx, ev)
}

// blindRepo never reports a room conflict and never sees occupied times, the
// way a concurrent writer looks between check and insert.
func blindRepo(m *MemoryRepository) Repository {
	return &stubRepo{
		MemoryRepository: m,
		roomSlotTaken: func(context.Context, uuid.UUID, time.Time, calendar.TimeOfDay) (bool, error) {
			return false, nil
		},
		findOccupiedTimes: func(context.Context, time.Time, uuid.UUID, uuid.UUID, *uuid.UUID) ([]calendar.TimeOfDay, error) {
			return nil, nil
		},
	}
}
