package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-desk-scheduling/internal/calendar"
)

const (
	pgUniqueViolation = "23505"

	activeRoomSlotIndex = "appointments_room_slot_active"

	appointmentColumns = `id, patient_id, physician_id, procedure_id, room_id, scheduled_date, scheduled_time, status, payer, created_at, updated_at`
	rescheduleColumns  = `id, appointment_id, proposed_date, proposed_time, reason, status, created_at, decided_at`
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func pgTime(t calendar.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * int64(time.Minute/time.Microsecond), Valid: true}
}

func fromPgTime(t pgtype.Time) calendar.TimeOfDay {
	return calendar.TimeOfDay(t.Microseconds / int64(time.Minute/time.Microsecond))
}

// statusFromDB resolves legacy labels on read; values that cannot be
// resolved are surfaced as-is so the normalizer can report them.
func statusFromDB(raw string) Status {
	if s, err := ParseStatus(raw); err == nil {
		return s
	}
	return Status(raw)
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		if pgErr.ConstraintName == "" || pgErr.ConstraintName == activeRoomSlotIndex {
			return ErrStorageConflict
		}
	}
	return err
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var at pgtype.Time
	var status string
	var payer *string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.PhysicianID,
		&a.ProcedureID,
		&a.RoomID,
		&a.Date,
		&at,
		&status,
		&payer,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, mapWriteError(err)
	}

	a.Date = calendar.DateOf(a.Date)
	a.Time = fromPgTime(at)
	a.Status = statusFromDB(status)
	a.Payer = payer
	return &a, nil
}

func scanReschedule(row pgx.Row) (*RescheduleRequest, error) {
	var r RescheduleRequest
	var at pgtype.Time
	var decidedAt *time.Time

	err := row.Scan(
		&r.ID,
		&r.AppointmentID,
		&r.ProposedDate,
		&at,
		&r.Reason,
		&r.Status,
		&r.CreatedAt,
		&decidedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	r.ProposedDate = calendar.DateOf(r.ProposedDate)
	r.ProposedTime = fromPgTime(at)
	r.DecidedAt = decidedAt
	return &r, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Reference lookups

func (r *PgRepository) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var p Patient
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at
		FROM patients
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PgRepository) GetPhysician(ctx context.Context, id uuid.UUID) (*Physician, error) {
	var p Physician
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at
		FROM physicians
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Specialty, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPhysicianNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PgRepository) GetRoom(ctx context.Context, id uuid.UUID) (*Room, error) {
	var rm Room
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, capacity
		FROM rooms
		WHERE id = $1
	`, id).Scan(&rm.ID, &rm.Name, &rm.Capacity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rm, nil
}

func (r *PgRepository) GetProcedure(ctx context.Context, id uuid.UUID) (*Procedure, error) {
	var p Procedure
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, description
		FROM procedures
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProcedureNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Occupancy

func (r *PgRepository) FindOccupiedTimes(ctx context.Context, date time.Time, roomID, physicianID uuid.UUID, exclude *uuid.UUID) ([]calendar.TimeOfDay, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT scheduled_time
		FROM appointments
		WHERE scheduled_date = $1
		  AND (room_id = $2 OR physician_id = $3)
		  AND status <> 'cancelled'
		  AND ($4::uuid IS NULL OR id <> $4)
		ORDER BY scheduled_time
	`, date, roomID, physicianID, exclude)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []calendar.TimeOfDay
	for rows.Next() {
		var at pgtype.Time
		if err := rows.Scan(&at); err != nil {
			return nil, err
		}
		result = append(result, fromPgTime(at))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) RoomSlotTaken(ctx context.Context, roomID uuid.UUID, date time.Time, at calendar.TimeOfDay) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE room_id = $1
			  AND scheduled_date = $2
			  AND scheduled_time = $3
			  AND status <> 'cancelled'
		)
	`, roomID, date, pgTime(at)).Scan(&taken)
	if err != nil {
		return false, err
	}
	return taken, nil
}

// Appointments

func (r *PgRepository) InsertAppointment(ctx context.Context, in NewAppointment) (*Appointment, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, physician_id, procedure_id, room_id, scheduled_date, scheduled_time, status, payer, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'scheduled', $8, now(), now())
		RETURNING `+appointmentColumns,
		id, in.PatientID, in.PhysicianID, in.ProcedureID, in.RoomID, in.Date, pgTime(in.Time), in.Payer)

	return scanAppointment(row)
}

func (r *PgRepository) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns, id, status)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentSchedule(ctx context.Context, id uuid.UUID, date time.Time, at calendar.TimeOfDay) (*Appointment, error) {
	return updateSchedule(ctx, r.pool, id, date, at)
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, id uuid.UUID, patch AppointmentPatch) (*Appointment, error) {
	var status *string
	if patch.Status != nil {
		s := string(*patch.Status)
		status = &s
	}
	var at *pgtype.Time
	if patch.Time != nil {
		t := pgTime(*patch.Time)
		at = &t
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = COALESCE($2, status),
		    scheduled_date = COALESCE($3, scheduled_date),
		    scheduled_time = COALESCE($4, scheduled_time),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns, id, status, patch.Date, at)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, filter AppointmentFilter) ([]Appointment, error) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Date != nil {
		add("scheduled_date = $%d", *filter.Date)
	}
	if filter.PhysicianID != nil {
		add("physician_id = $%d", *filter.PhysicianID)
	}
	if filter.RoomID != nil {
		add("room_id = $%d", *filter.RoomID)
	}
	if filter.Status != nil {
		add("lower(btrim(status)) = ANY($%d)", filter.Status.Labels())
	}
	if filter.Payer != "" {
		add("COALESCE(payer, '') ILIKE $%d", "%"+filter.Payer+"%")
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY scheduled_date, scheduled_time LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListPatientAppointments(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY scheduled_date DESC, scheduled_time DESC, id
	`, patientID)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) CountAppointmentsByStatus(ctx context.Context, date time.Time) (map[Status]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, count(*)
		FROM appointments
		WHERE scheduled_date = $1
		GROUP BY status
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Status]int, len(Statuses))
	for rows.Next() {
		var raw string
		var n int
		if err := rows.Scan(&raw, &n); err != nil {
			return nil, err
		}
		counts[statusFromDB(raw)] += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *PgRepository) ListNonCanonicalStatuses(ctx context.Context, limit int) ([]StatusNormalization, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, status
		FROM appointments
		WHERE status NOT IN ('scheduled', 'in_service', 'completed', 'cancelled')
		ORDER BY id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []StatusNormalization
	for rows.Next() {
		var n StatusNormalization
		if err := rows.Scan(&n.AppointmentID, &n.Raw); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Reschedule requests

func (r *PgRepository) InsertReschedule(ctx context.Context, in NewRescheduleRequest) (*RescheduleRequest, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO reschedule_requests (id, appointment_id, proposed_date, proposed_time, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', now())
		RETURNING `+rescheduleColumns,
		id, in.AppointmentID, in.ProposedDate, pgTime(in.ProposedTime), in.Reason)

	return scanReschedule(row)
}

func (r *PgRepository) GetReschedule(ctx context.Context, id uuid.UUID) (*RescheduleRequest, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+rescheduleColumns+`
		FROM reschedule_requests
		WHERE id = $1
	`, id)
	return scanReschedule(row)
}

func (r *PgRepository) ListPendingReschedules(ctx context.Context) ([]PendingReschedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT j.id, j.appointment_id, j.proposed_date, j.proposed_time, j.reason, j.status, j.created_at, j.decided_at,
		       a.id, a.patient_id, a.physician_id, a.procedure_id, a.room_id, a.scheduled_date, a.scheduled_time,
		       a.status, a.payer, a.created_at, a.updated_at
		FROM reschedule_requests j
		JOIN appointments a ON a.id = j.appointment_id
		WHERE j.status = 'pending'
		ORDER BY j.created_at ASC, j.id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []PendingReschedule
	for rows.Next() {
		var p PendingReschedule
		var proposed, current pgtype.Time
		var status string

		err := rows.Scan(
			&p.ID, &p.AppointmentID, &p.ProposedDate, &proposed, &p.Reason, &p.Status, &p.CreatedAt, &p.DecidedAt,
			&p.Appointment.ID, &p.Appointment.PatientID, &p.Appointment.PhysicianID, &p.Appointment.ProcedureID,
			&p.Appointment.RoomID, &p.Appointment.Date, &current, &status, &p.Appointment.Payer,
			&p.Appointment.CreatedAt, &p.Appointment.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		p.ProposedDate = calendar.DateOf(p.ProposedDate)
		p.ProposedTime = fromPgTime(proposed)
		p.Appointment.Date = calendar.DateOf(p.Appointment.Date)
		p.Appointment.Time = fromPgTime(current)
		p.Appointment.Status = statusFromDB(status)
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) ListPatientReschedules(ctx context.Context, patientID uuid.UUID) ([]RescheduleRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT j.id, j.appointment_id, j.proposed_date, j.proposed_time, j.reason, j.status, j.created_at, j.decided_at
		FROM reschedule_requests j
		JOIN appointments a ON a.id = j.appointment_id
		WHERE a.patient_id = $1
		ORDER BY j.created_at DESC, j.id
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []RescheduleRequest
	for rows.Next() {
		req, err := scanReschedule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) DenyReschedule(ctx context.Context, id uuid.UUID) (*RescheduleRequest, error) {
	var out *RescheduleRequest
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		req, err := decidePending(ctx, tx, id, RequestDenied)
		if err != nil {
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PgRepository) AcceptReschedule(ctx context.Context, id uuid.UUID) (*RescheduleRequest, *Appointment, error) {
	var req *RescheduleRequest
	var appt *Appointment

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		decided, err := decidePending(ctx, tx, id, RequestAccepted)
		if err != nil {
			return err
		}

		moved, err := updateSchedule(ctx, tx, decided.AppointmentID, decided.ProposedDate, decided.ProposedTime)
		if err != nil {
			return err
		}

		req, appt = decided, moved
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return req, appt, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// decidePending flips a pending request to outcome. A request that exists
// but is no longer pending yields ErrAlreadyDecided.
func decidePending(ctx context.Context, q querier, id uuid.UUID, outcome RequestStatus) (*RescheduleRequest, error) {
	row := q.QueryRow(ctx, `
		UPDATE reschedule_requests
		SET status = $2,
		    decided_at = now()
		WHERE id = $1
		  AND status = 'pending'
		RETURNING `+rescheduleColumns, id, outcome)

	req, err := scanReschedule(row)
	if !errors.Is(err, ErrRequestNotFound) {
		return req, err
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reschedule_requests WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyDecided
	}
	return nil, ErrRequestNotFound
}

func updateSchedule(ctx context.Context, q querier, id uuid.UUID, date time.Time, at calendar.TimeOfDay) (*Appointment, error) {
	row := q.QueryRow(ctx, `
		UPDATE appointments
		SET scheduled_date = $2,
		    scheduled_time = $3,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns, id, date, pgTime(at))
	return scanAppointment(row)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
