package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-desk-scheduling/internal/appointment"
	"github.com/hackgods/clinic-desk-scheduling/internal/config"
	redisclient "github.com/hackgods/clinic-desk-scheduling/internal/redis"
)

type testServer struct {
	handler   http.Handler
	repo      *appointment.MemoryRepository
	patient   appointment.Patient
	physician appointment.Physician
	room      appointment.Room
	procedure appointment.Procedure
	staffID   uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	repo := appointment.NewMemoryRepository()
	ts := &testServer{
		repo:      repo,
		patient:   appointment.Patient{ID: uuid.New(), Name: "Ana Souza"},
		physician: appointment.Physician{ID: uuid.New(), Name: "Dr. Lima"},
		room:      appointment.Room{ID: uuid.New(), Name: "Room 1"},
		procedure: appointment.Procedure{ID: uuid.New(), Name: "Insurance consultation"},
		staffID:   uuid.New(),
	}
	repo.AddPatient(ts.patient)
	repo.AddPhysician(ts.physician)
	repo.AddRoom(ts.room)
	repo.AddProcedure(ts.procedure)

	svc := appointment.NewService(repo, redisclient.NewLocalLocker(), config.Config{SlotStepMinutes: 30}, zap.NewNop())
	ts.handler = NewRouter(RouterConfig{Service: svc, Log: zap.NewNop(), Env: "test"})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, role appointment.Role, callerID uuid.UUID, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set(HeaderCallerID, callerID.String())
		req.Header.Set(HeaderCallerRole, string(role))
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) asStaff(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	return ts.do(t, method, path, appointment.RoleStaff, ts.staffID, body)
}

func (ts *testServer) asPatient(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	return ts.do(t, method, path, appointment.RolePatient, ts.patient.ID, body)
}

func (ts *testServer) bookBody(at string) CreateAppointmentRequest {
	return CreateAppointmentRequest{
		PatientID:   ts.patient.ID.String(),
		PhysicianID: ts.physician.ID.String(),
		ProcedureID: ts.procedure.ID.String(),
		RoomID:      ts.room.ID.String(),
		Date:        "2025-03-10",
		Time:        at,
		Payer:       "Unimed",
	}
}

func (ts *testServer) book(t *testing.T, at string) AppointmentResponse {
	t.Helper()
	rec := ts.asStaff(t, http.MethodPost, "/appointments", ts.bookBody(at))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health/live", "", uuid.Nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))

	rec = ts.do(t, http.MethodGet, "/health/ready", "", uuid.Nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decode[ReadinessResponse](t, rec)
	assert.Equal(t, "ok", ready.Status)
	assert.Equal(t, "disabled", ready.Dependencies["postgres"])
}

func TestCallerRequired(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/appointments", "", uuid.Nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/appointments", "admin", uuid.New(), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateAppointment(t *testing.T) {
	ts := newTestServer(t)

	appt := ts.book(t, "09:00")
	assert.Equal(t, "2025-03-10", appt.Date)
	assert.Equal(t, "09:00", appt.Time)
	assert.Equal(t, "scheduled", appt.Status)
	require.NotNil(t, appt.Payer)
	assert.Equal(t, "Unimed", *appt.Payer)

	rec := ts.asStaff(t, http.MethodPost, "/appointments", ts.bookBody("09:00"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_unavailable", decode[ErrorResponse](t, rec).Error)
}

func TestCreateAppointment_BadRequests(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.asStaff(t, http.MethodPost, "/appointments", map[string]any{"patient_id": 12})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request_body", decode[ErrorResponse](t, rec).Error)

	body := ts.bookBody("09:00")
	body.RoomID = "room-1"
	rec = ts.asStaff(t, http.MethodPost, "/appointments", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "room_id must be a valid UUID", decode[ErrorResponse](t, rec).Details)

	body = ts.bookBody("")
	rec = ts.asStaff(t, http.MethodPost, "/appointments", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "time is required", decode[ErrorResponse](t, rec).Details)

	rec = ts.asStaff(t, http.MethodPost, "/appointments", ts.bookBody("18:00"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body = ts.bookBody("09:00")
	body.PatientID = uuid.NewString()
	rec = ts.asStaff(t, http.MethodPost, "/appointments", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.asPatient(t, http.MethodPost, "/appointments", ts.bookBody("09:00"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAvailabilityEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.book(t, "09:00")

	path := "/availability?date=2025-03-10&physician_id=" + ts.physician.ID.String() + "&room_id=" + ts.room.ID.String()
	rec := ts.asStaff(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[AvailabilityResponse](t, rec)
	assert.Len(t, resp.Slots, 18)
	assert.NotContains(t, resp.Slots, "09:00")

	rec = ts.asStaff(t, http.MethodGet, "/availability?date=2025-03-10&physician_id=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.asPatient(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAvailabilityEndpoint_ExcludeAppointment(t *testing.T) {
	ts := newTestServer(t)
	appt := ts.book(t, "09:00")

	path := "/availability?date=2025-03-10&physician_id=" + ts.physician.ID.String() +
		"&room_id=" + ts.room.ID.String() + "&exclude_appointment_id=" + appt.ID.String()
	rec := ts.asStaff(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[AvailabilityResponse](t, rec)
	assert.Len(t, resp.Slots, 19)
	assert.Contains(t, resp.Slots, "09:00")

	rec = ts.asStaff(t, http.MethodGet, path[:len(path)-len(appt.ID.String())]+"nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAndUpdateAppointment(t *testing.T) {
	ts := newTestServer(t)
	appt := ts.book(t, "09:00")
	path := "/appointments/" + appt.ID.String()

	rec := ts.asPatient(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, path, appointment.RolePatient, uuid.New(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.asStaff(t, http.MethodPatch, path, UpdateAppointmentRequest{Status: "em atendimento"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "in_service", decode[AppointmentResponse](t, rec).Status)

	rec = ts.asStaff(t, http.MethodPatch, path, UpdateAppointmentRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.asStaff(t, http.MethodGet, "/appointments/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAppointmentsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.book(t, "10:00")
	ts.book(t, "09:00")

	rec := ts.asStaff(t, http.MethodGet, "/appointments?date=10/03/2025&status=agendado", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]AppointmentResponse](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "09:00", list[0].Time)

	rec = ts.asStaff(t, http.MethodGet, "/appointments?limit=ten", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.asStaff(t, http.MethodGet, "/appointments?status=no-show", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRescheduleFlow(t *testing.T) {
	ts := newTestServer(t)
	appt := ts.book(t, "09:00")

	rec := ts.asPatient(t, http.MethodGet, "/appointments/"+appt.ID.String()+"/availability?date=2025-03-10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[AvailabilityResponse](t, rec).Slots, 18)

	rec = ts.asPatient(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/reschedule-requests",
		CreateRescheduleRequest{Date: "2025-03-10", Time: "14:00", Reason: "conflict at work"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[RescheduleResponse](t, rec)
	assert.Equal(t, "pending", created.Status)

	rec = ts.asStaff(t, http.MethodGet, "/reschedule-requests", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decode[[]PendingRescheduleResponse](t, rec)
	require.Len(t, pending, 1)
	assert.Equal(t, appt.ID, pending[0].Appointment.ID)

	decisionPath := "/reschedule-requests/" + created.ID.String() + "/decision"
	rec = ts.asPatient(t, http.MethodPost, decisionPath, DecisionRequest{Decision: "accept"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.asStaff(t, http.MethodPost, decisionPath, DecisionRequest{Decision: "accept"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decided := decode[DecisionResponse](t, rec)
	assert.Equal(t, "accepted", decided.Request.Status)
	require.NotNil(t, decided.Appointment)
	assert.Equal(t, "14:00", decided.Appointment.Time)

	rec = ts.asStaff(t, http.MethodPost, decisionPath, DecisionRequest{Decision: "deny"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_decided", decode[ErrorResponse](t, rec).Error)
}

func TestSummaryEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.book(t, "09:00")

	rec := ts.asStaff(t, http.MethodGet, "/summary?date=2025-03-10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[SummaryResponse](t, rec)
	assert.Equal(t, 1, summary.Counts["scheduled"])
	assert.Equal(t, 0, summary.Counts["cancelled"])
	assert.Equal(t, 0, summary.PendingReschedules)

	rec = ts.asStaff(t, http.MethodGet, "/summary", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOwnListingsEndpoints(t *testing.T) {
	ts := newTestServer(t)
	first := ts.book(t, "09:00")
	second := ts.book(t, "15:00")

	rec := ts.asPatient(t, http.MethodPost, "/appointments/"+first.ID.String()+"/reschedule-requests",
		CreateRescheduleRequest{Date: "2025-03-10", Time: "14:00"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[RescheduleResponse](t, rec)

	rec = ts.asStaff(t, http.MethodPost, "/reschedule-requests/"+created.ID.String()+"/decision", DecisionRequest{Decision: "deny"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.asPatient(t, http.MethodGet, "/me/appointments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	appts := decode[[]AppointmentResponse](t, rec)
	require.Len(t, appts, 2)
	assert.Equal(t, second.ID, appts[0].ID)
	assert.Equal(t, first.ID, appts[1].ID)

	rec = ts.asPatient(t, http.MethodGet, "/me/reschedule-requests", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	reqs := decode[[]RescheduleResponse](t, rec)
	require.Len(t, reqs, 1)
	assert.Equal(t, created.ID, reqs[0].ID)
	assert.Equal(t, "denied", reqs[0].Status)
	assert.NotNil(t, reqs[0].DecidedAt)

	rec = ts.do(t, http.MethodGet, "/me/appointments", appointment.RolePatient, uuid.New(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]AppointmentResponse](t, rec))

	rec = ts.asStaff(t, http.MethodGet, "/me/reschedule-requests", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
