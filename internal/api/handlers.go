package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-desk-scheduling/internal/appointment"
	"github.com/hackgods/clinic-desk-scheduling/internal/calendar"
)

func urlUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+param, param+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func queryUUID(w http.ResponseWriter, r *http.Request, name string) (*uuid.UUID, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return nil, false
	}
	return &id, true
}

func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be an integer")
		return 0, false
	}
	return n, true
}

func availabilityHandler(svc *appointment.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		physicianID, ok := queryUUID(w, r, "physician_id")
		if !ok {
			return
		}
		roomID, ok := queryUUID(w, r, "room_id")
		if !ok {
			return
		}
		step, ok := queryInt(w, r, "step")
		if !ok {
			return
		}
		exclude, ok := queryUUID(w, r, "exclude_appointment_id")
		if !ok {
			return
		}

		q := appointment.AvailabilityQuery{
			Date:                 r.URL.Query().Get("date"),
			StepMinutes:          step,
			ExcludeAppointmentID: exclude,
		}
		if physicianID != nil {
			q.PhysicianID = *physicianID
		}
		if roomID != nil {
			q.RoomID = *roomID
		}

		slots, err := svc.AvailableSlots(r.Context(), callerFrom(r.Context()), q)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toAvailabilityResponse(q.Date, slots))
	}
}

func createAppointmentHandler(svc *appointment.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		appt, err := svc.BookAppointment(r.Context(), callerFrom(r.Context()), appointment.BookInput{
			PatientID:   uuid.MustParse(req.PatientID),
			PhysicianID: uuid.MustParse(req.PhysicianID),
			ProcedureID: uuid.MustParse(req.ProcedureID),
			RoomID:      uuid.MustParse(req.RoomID),
			Date:        req.Date,
			Time:        req.Time,
			Payer:       req.Payer,
		})
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *appointment.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		var filter appointment.AppointmentFilter

		if raw := query.Get("date"); raw != "" {
			d, err := calendar.ParseDate(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
				return
			}
			filter.Date = &d
		}

		var ok bool
		if filter.PhysicianID, ok = queryUUID(w, r, "physician_id"); !ok {
			return
		}
		if filter.RoomID, ok = queryUUID(w, r, "room_id"); !ok {
			return
		}
		if raw := strings.TrimSpace(query.Get("status")); raw != "" {
			st, err := appointment.ParseStatus(raw)
			if err != nil {
				writeServiceError(w, r, log, err)
				return
			}
			filter.Status = &st
		}
		filter.Payer = strings.TrimSpace(query.Get("payer"))
		if filter.Limit, ok = queryInt(w, r, "limit"); !ok {
			return
		}
		if filter.Offset, ok = queryInt(w, r, "offset"); !ok {
			return
		}

		appts, err := svc.ListAppointments(r.Context(), callerFrom(r.Context()), filter)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc *appointment.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlUUID(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), callerFrom(r.Context()), id)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func updateAppointmentHandler(svc *appointment.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlUUID(w, r, "id")
		if !ok {
			return
		}
		var req UpdateAppointmentRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		appt, err := svc.UpdateAppointment(r.Context(), callerFrom(r.Context()), id, appointment.UpdateAppointmentInput{
			Status: req.Status,
			Date:   req.Date,
			Time:   req.Time,
		})
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func patientAvailabilityHandler(svc *appointment.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlUUID(w, r, "id")
		if !ok {
			return
		}
		date := r.URL.Query().Get("date")

		slots, err := svc.PatientAvailability(r.Context(), callerFrom(r.Context()), id, date)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toAvailabilityResponse(date, slots))
	}
}

func submitRescheduleHandler(svc *appointment.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlUUID(w, r, "id")
		if !ok {
			return
		}
		var req CreateRescheduleRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		created, err := svc.SubmitReschedule(r.Context(), callerFrom(r.Context()), id, appointment.SubmitRescheduleInput{
			Date:   req.Date,
			Time:   req.Time,
			Reason: req.Reason,
		})
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, toRescheduleResponse(created))
	}
}

func listPendingReschedulesHandler(svc *appointment.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pending, err := svc.ListPendingReschedules(r.Context(), callerFrom(r.Context()))
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		resp := make([]PendingRescheduleResponse, 0, len(pending))
		for i := range pending {
			p := &pending[i]
			resp = append(resp, PendingRescheduleResponse{
				RescheduleResponse: toRescheduleResponse(&p.RescheduleRequest),
				Appointment:        toAppointmentResponse(&p.Appointment),
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func decideRescheduleHandler(svc *appointment.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlUUID(w, r, "id")
		if !ok {
			return
		}
		var req DecisionRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		result, err := svc.DecideReschedule(r.Context(), callerFrom(r.Context()), id, appointment.Decision(req.Decision))
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		resp := DecisionResponse{Request: toRescheduleResponse(result.Request)}
		if result.Appointment != nil {
			appt := toAppointmentResponse(result.Appointment)
			resp.Appointment = &appt
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func ownAppointmentsHandler(svc *appointment.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appts, err := svc.ListOwnAppointments(r.Context(), callerFrom(r.Context()))
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func ownReschedulesHandler(svc *appointment.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqs, err := svc.ListOwnReschedules(r.Context(), callerFrom(r.Context()))
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		resp := make([]RescheduleResponse, 0, len(reqs))
		for i := range reqs {
			resp = append(resp, toRescheduleResponse(&reqs[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func summaryHandler(svc *appointment.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := svc.DaySummary(r.Context(), callerFrom(r.Context()), r.URL.Query().Get("date"))
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		counts := make(map[string]int, len(summary.Counts))
		for st, n := range summary.Counts {
			counts[string(st)] = n
		}
		writeJSON(w, http.StatusOK, SummaryResponse{
			Date:               calendar.FormatDate(summary.Date),
			Counts:             counts,
			PendingReschedules: summary.PendingReschedules,
		})
	}
}
