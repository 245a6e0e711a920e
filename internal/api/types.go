package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-desk-scheduling/internal/appointment"
	"github.com/hackgods/clinic-desk-scheduling/internal/calendar"
)

type CreateAppointmentRequest struct {
	PatientID   string `json:"patient_id" validate:"required,uuid"`
	PhysicianID string `json:"physician_id" validate:"required,uuid"`
	ProcedureID string `json:"procedure_id" validate:"required,uuid"`
	RoomID      string `json:"room_id" validate:"required,uuid"`
	Date        string `json:"date" validate:"required"`
	Time        string `json:"time" validate:"required"`
	Payer       string `json:"payer" validate:"omitempty,max=120"`
}

type UpdateAppointmentRequest struct {
	Status string `json:"status" validate:"omitempty,max=40"`
	Date   string `json:"date"`
	Time   string `json:"time"`
}

type CreateRescheduleRequest struct {
	Date   string `json:"date" validate:"required"`
	Time   string `json:"time" validate:"required"`
	Reason string `json:"reason"`
}

type DecisionRequest struct {
	Decision string `json:"decision" validate:"required"`
}

type AppointmentResponse struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patient_id"`
	PhysicianID uuid.UUID `json:"physician_id"`
	ProcedureID uuid.UUID `json:"procedure_id"`
	RoomID      uuid.UUID `json:"room_id"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Status      string    `json:"status"`
	Payer       *string   `json:"payer,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:          a.ID,
		PatientID:   a.PatientID,
		PhysicianID: a.PhysicianID,
		ProcedureID: a.ProcedureID,
		RoomID:      a.RoomID,
		Date:        calendar.FormatDate(a.Date),
		Time:        a.Time.String(),
		Status:      string(a.Status),
		Payer:       a.Payer,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

type RescheduleResponse struct {
	ID            uuid.UUID  `json:"id"`
	AppointmentID uuid.UUID  `json:"appointment_id"`
	ProposedDate  string     `json:"proposed_date"`
	ProposedTime  string     `json:"proposed_time"`
	Reason        string     `json:"reason,omitempty"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	DecidedAt     *time.Time `json:"decided_at,omitempty"`
}

func toRescheduleResponse(r *appointment.RescheduleRequest) RescheduleResponse {
	return RescheduleResponse{
		ID:            r.ID,
		AppointmentID: r.AppointmentID,
		ProposedDate:  calendar.FormatDate(r.ProposedDate),
		ProposedTime:  r.ProposedTime.String(),
		Reason:        r.Reason,
		Status:        string(r.Status),
		CreatedAt:     r.CreatedAt,
		DecidedAt:     r.DecidedAt,
	}
}

type PendingRescheduleResponse struct {
	RescheduleResponse
	Appointment AppointmentResponse `json:"appointment"`
}

type DecisionResponse struct {
	Request     RescheduleResponse   `json:"request"`
	Appointment *AppointmentResponse `json:"appointment,omitempty"`
}

type AvailabilityResponse struct {
	Date  string   `json:"date"`
	Slots []string `json:"slots"`
}

func toAvailabilityResponse(date string, slots []calendar.Slot) AvailabilityResponse {
	resp := AvailabilityResponse{Date: date, Slots: make([]string, 0, len(slots))}
	for _, s := range slots {
		resp.Date = calendar.FormatDate(s.Date)
		resp.Slots = append(resp.Slots, s.Time.String())
	}
	return resp
}

type SummaryResponse struct {
	Date               string         `json:"date"`
	Counts             map[string]int `json:"counts"`
	PendingReschedules int            `json:"pending_reschedules"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
