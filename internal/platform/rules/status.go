// Package rules holds the cross-entity consistency checks: foreign key
// resolution, status lifecycles, the bill amount invariant and the delete
// cascade policy. Services call into it inside their write transaction.
package rules

import "github.com/medicorex/hms/internal/platform/apperr"

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

type BillStatus string

const (
	BillPending BillStatus = "pending"
	BillPartial BillStatus = "partial"
	BillPaid    BillStatus = "paid"
)

// DoctorStatus has no lifecycle; any status may follow any other. Only
// Active doctors accept new appointments.
type DoctorStatus string

const (
	DoctorActive   DoctorStatus = "Active"
	DoctorOnLeave  DoctorStatus = "On Leave"
	DoctorInactive DoctorStatus = "Inactive"
)

func (s DoctorStatus) Valid() bool {
	return s == DoctorActive || s == DoctorOnLeave || s == DoctorInactive
}

var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentPending:   {AppointmentConfirmed, AppointmentCancelled},
	AppointmentConfirmed: {AppointmentCompleted, AppointmentCancelled},
	AppointmentCompleted: nil,
	AppointmentCancelled: nil,
}

var billTransitions = map[BillStatus][]BillStatus{
	BillPending: {BillPartial, BillPaid},
	BillPartial: {BillPaid},
	BillPaid:    nil,
}

func (s AppointmentStatus) Valid() bool {
	_, ok := appointmentTransitions[s]
	return ok
}

// Terminal reports whether no transition leaves s.
func (s AppointmentStatus) Terminal() bool {
	return s.Valid() && len(appointmentTransitions[s]) == 0
}

// Active reports whether s still occupies the doctor's slot.
func (s AppointmentStatus) Active() bool {
	return s == AppointmentPending || s == AppointmentConfirmed
}

func (s BillStatus) Valid() bool {
	_, ok := billTransitions[s]
	return ok
}

func (s BillStatus) Terminal() bool {
	return s.Valid() && len(billTransitions[s]) == 0
}

// NextAppointmentStatuses lists the statuses reachable from s in one step.
func NextAppointmentStatuses(s AppointmentStatus) []AppointmentStatus {
	return append([]AppointmentStatus(nil), appointmentTransitions[s]...)
}

func NextBillStatuses(s BillStatus) []BillStatus {
	return append([]BillStatus(nil), billTransitions[s]...)
}

// CheckAppointmentTransition validates from -> to for appointment id.
// Staying in the same status is allowed and is a no-op.
func CheckAppointmentTransition(id string, from, to AppointmentStatus) error {
	if !to.Valid() {
		return apperr.Validation("appointment", "status", "unknown status %q", to)
	}
	if from == to {
		return nil
	}
	for _, next := range appointmentTransitions[from] {
		if next == to {
			return nil
		}
	}
	return apperr.IllegalTransition("appointment", id, string(from), string(to))
}

// CheckBillTransition validates from -> to for bill id.
func CheckBillTransition(id string, from, to BillStatus) error {
	if !to.Valid() {
		return apperr.Validation("bill", "status", "unknown status %q", to)
	}
	if from == to {
		return nil
	}
	for _, next := range billTransitions[from] {
		if next == to {
			return nil
		}
	}
	return apperr.IllegalTransition("bill", id, string(from), string(to))
}
