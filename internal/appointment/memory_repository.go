package appointment

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-desk-scheduling/internal/calendar"
)

// MemoryRepository is a process-local Repository. It enforces the same
// room-slot uniqueness as the Postgres schema and is used for local runs
// and tests.
type MemoryRepository struct {
	mu           sync.RWMutex
	patients     map[uuid.UUID]Patient
	physicians   map[uuid.UUID]Physician
	rooms        map[uuid.UUID]Room
	procedures   map[uuid.UUID]Procedure
	appointments map[uuid.UUID]Appointment
	rawStatus    map[uuid.UUID]string
	requests     map[uuid.UUID]RescheduleRequest
	events       []EventLog
	now          func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients:     make(map[uuid.UUID]Patient),
		physicians:   make(map[uuid.UUID]Physician),
		rooms:        make(map[uuid.UUID]Room),
		procedures:   make(map[uuid.UUID]Procedure),
		appointments: make(map[uuid.UUID]Appointment),
		rawStatus:    make(map[uuid.UUID]string),
		requests:     make(map[uuid.UUID]RescheduleRequest),
		now:          time.Now,
	}
}

// Setup helpers

func (m *MemoryRepository) AddPatient(p Patient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients[p.ID] = p
}

func (m *MemoryRepository) AddPhysician(p Physician) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.physicians[p.ID] = p
}

func (m *MemoryRepository) AddRoom(r Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[r.ID] = r
}

func (m *MemoryRepository) AddProcedure(p Procedure) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.procedures[p.ID] = p
}

// SetRawStatus stores a status label verbatim, bypassing validation, the
// way rows written by older releases look.
func (m *MemoryRepository) SetRawStatus(id uuid.UUID, raw string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return
	}
	a.Status = statusFromDB(raw)
	m.appointments[id] = a
	m.rawStatus[id] = raw
}

func (m *MemoryRepository) Events() []EventLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]EventLog, len(m.events))
	copy(out, m.events)
	return out
}

// Reference lookups

func (m *MemoryRepository) GetPatient(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (m *MemoryRepository) GetPhysician(_ context.Context, id uuid.UUID) (*Physician, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.physicians[id]
	if !ok {
		return nil, ErrPhysicianNotFound
	}
	return &p, nil
}

func (m *MemoryRepository) GetRoom(_ context.Context, id uuid.UUID) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return &r, nil
}

func (m *MemoryRepository) GetProcedure(_ context.Context, id uuid.UUID) (*Procedure, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.procedures[id]
	if !ok {
		return nil, ErrProcedureNotFound
	}
	return &p, nil
}

// Occupancy

func (m *MemoryRepository) FindOccupiedTimes(_ context.Context, date time.Time, roomID, physicianID uuid.UUID, exclude *uuid.UUID) ([]calendar.TimeOfDay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	date = calendar.DateOf(date)
	seen := make(map[calendar.TimeOfDay]struct{})
	for _, a := range m.appointments {
		if !m.occupiesLocked(a) || !a.Date.Equal(date) {
			continue
		}
		if a.RoomID != roomID && a.PhysicianID != physicianID {
			continue
		}
		if exclude != nil && a.ID == *exclude {
			continue
		}
		seen[a.Time] = struct{}{}
	}

	out := make([]calendar.TimeOfDay, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *MemoryRepository) RoomSlotTaken(_ context.Context, roomID uuid.UUID, date time.Time, at calendar.TimeOfDay) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.roomSlotTakenLocked(roomID, calendar.DateOf(date), at, uuid.Nil), nil
}

func (m *MemoryRepository) roomSlotTakenLocked(roomID uuid.UUID, date time.Time, at calendar.TimeOfDay, ignore uuid.UUID) bool {
	for _, a := range m.appointments {
		if a.ID == ignore || !m.occupiesLocked(a) {
			continue
		}
		if a.RoomID == roomID && a.Date.Equal(date) && a.Time == at {
			return true
		}
	}
	return false
}

// occupiesLocked mirrors the storage rule: only the exact label
// "cancelled" frees a slot, so unnormalized legacy rows still hold theirs.
func (m *MemoryRepository) occupiesLocked(a Appointment) bool {
	if raw, ok := m.rawStatus[a.ID]; ok {
		return raw != string(StatusCancelled)
	}
	return a.Status.Occupies()
}

// Appointments

func (m *MemoryRepository) InsertAppointment(_ context.Context, in NewAppointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	date := calendar.DateOf(in.Date)
	if m.roomSlotTakenLocked(in.RoomID, date, in.Time, uuid.Nil) {
		return nil, ErrStorageConflict
	}

	now := m.now()
	a := Appointment{
		ID:          uuid.New(),
		PatientID:   in.PatientID,
		PhysicianID: in.PhysicianID,
		ProcedureID: in.ProcedureID,
		RoomID:      in.RoomID,
		Date:        date,
		Time:        in.Time,
		Status:      StatusScheduled,
		Payer:       in.Payer,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.appointments[a.ID] = a
	return &a, nil
}

func (m *MemoryRepository) GetAppointment(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (m *MemoryRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status Status) (*Appointment, error) {
	return m.UpdateAppointment(ctx, id, AppointmentPatch{Status: &status})
}

func (m *MemoryRepository) UpdateAppointmentSchedule(ctx context.Context, id uuid.UUID, date time.Time, at calendar.TimeOfDay) (*Appointment, error) {
	return m.UpdateAppointment(ctx, id, AppointmentPatch{Date: &date, Time: &at})
}

func (m *MemoryRepository) UpdateAppointment(_ context.Context, id uuid.UUID, patch AppointmentPatch) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, err := m.applyPatchLocked(id, patch)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (m *MemoryRepository) applyPatchLocked(id uuid.UUID, patch AppointmentPatch) (Appointment, error) {
	a, ok := m.appointments[id]
	if !ok {
		return Appointment{}, ErrAppointmentNotFound
	}

	next := a
	if patch.Status != nil {
		next.Status = *patch.Status
	}
	if patch.Date != nil {
		next.Date = calendar.DateOf(*patch.Date)
	}
	if patch.Time != nil {
		next.Time = *patch.Time
	}

	occupies := m.occupiesLocked(a)
	if patch.Status != nil {
		occupies = next.Status.Occupies()
	}
	if occupies && m.roomSlotTakenLocked(next.RoomID, next.Date, next.Time, id) {
		return Appointment{}, ErrStorageConflict
	}

	next.UpdatedAt = m.now()
	m.appointments[id] = next
	if patch.Status != nil {
		delete(m.rawStatus, id)
	}
	return next, nil
}

func (m *MemoryRepository) ListAppointments(_ context.Context, filter AppointmentFilter) ([]Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Appointment
	for _, a := range m.appointments {
		if filter.Date != nil && !a.Date.Equal(calendar.DateOf(*filter.Date)) {
			continue
		}
		if filter.PhysicianID != nil && a.PhysicianID != *filter.PhysicianID {
			continue
		}
		if filter.RoomID != nil && a.RoomID != *filter.RoomID {
			continue
		}
		if filter.Status != nil && a.Status != *filter.Status {
			continue
		}
		if filter.Payer != "" {
			if a.Payer == nil || !strings.Contains(strings.ToLower(*a.Payer), strings.ToLower(filter.Payer)) {
				continue
			}
		}
		out = append(out, a)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].ID.String() < out[j].ID.String()
	})

	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemoryRepository) ListPatientAppointments(_ context.Context, patientID uuid.UUID) ([]Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Appointment
	for _, a := range m.appointments {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		if out[i].Time != out[j].Time {
			return out[i].Time > out[j].Time
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (m *MemoryRepository) CountAppointmentsByStatus(_ context.Context, date time.Time) (map[Status]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	date = calendar.DateOf(date)
	counts := make(map[Status]int, len(Statuses))
	for _, a := range m.appointments {
		if a.Date.Equal(date) {
			counts[a.Status]++
		}
	}
	return counts, nil
}

func (m *MemoryRepository) ListNonCanonicalStatuses(_ context.Context, limit int) ([]StatusNormalization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []StatusNormalization
	for id, raw := range m.rawStatus {
		if Status(raw).Valid() {
			continue
		}
		out = append(out, StatusNormalization{AppointmentID: id, Raw: raw})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppointmentID.String() < out[j].AppointmentID.String() })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Reschedule requests

func (m *MemoryRepository) InsertReschedule(_ context.Context, in NewRescheduleRequest) (*RescheduleRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.appointments[in.AppointmentID]; !ok {
		return nil, ErrAppointmentNotFound
	}

	r := RescheduleRequest{
		ID:            uuid.New(),
		AppointmentID: in.AppointmentID,
		ProposedDate:  calendar.DateOf(in.ProposedDate),
		ProposedTime:  in.ProposedTime,
		Reason:        in.Reason,
		Status:        RequestPending,
		CreatedAt:     m.now(),
	}
	m.requests[r.ID] = r
	return &r, nil
}

func (m *MemoryRepository) GetReschedule(_ context.Context, id uuid.UUID) (*RescheduleRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return &r, nil
}

func (m *MemoryRepository) ListPendingReschedules(_ context.Context) ([]PendingReschedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []PendingReschedule
	for _, r := range m.requests {
		if r.Status != RequestPending {
			continue
		}
		out = append(out, PendingReschedule{RescheduleRequest: r, Appointment: m.appointments[r.AppointmentID]})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (m *MemoryRepository) ListPatientReschedules(_ context.Context, patientID uuid.UUID) ([]RescheduleRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []RescheduleRequest
	for _, r := range m.requests {
		if m.appointments[r.AppointmentID].PatientID == patientID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (m *MemoryRepository) DenyReschedule(_ context.Context, id uuid.UUID) (*RescheduleRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.pendingLocked(id)
	if err != nil {
		return nil, err
	}
	now := m.now()
	r.Status = RequestDenied
	r.DecidedAt = &now
	m.requests[id] = r
	return &r, nil
}

func (m *MemoryRepository) AcceptReschedule(_ context.Context, id uuid.UUID) (*RescheduleRequest, *Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.pendingLocked(id)
	if err != nil {
		return nil, nil, err
	}

	date, at := r.ProposedDate, r.ProposedTime
	appt, err := m.applyPatchLocked(r.AppointmentID, AppointmentPatch{Date: &date, Time: &at})
	if err != nil {
		return nil, nil, err
	}

	now := m.now()
	r.Status = RequestAccepted
	r.DecidedAt = &now
	m.requests[id] = r
	return &r, &appt, nil
}

func (m *MemoryRepository) pendingLocked(id uuid.UUID) (RescheduleRequest, error) {
	r, ok := m.requests[id]
	if !ok {
		return RescheduleRequest{}, ErrRequestNotFound
	}
	if r.Status != RequestPending {
		return RescheduleRequest{}, ErrAlreadyDecided
	}
	return r, nil
}

func (m *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ID = int64(len(m.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = m.now()
	}
	m.events = append(m.events, ev)
	return nil
}
