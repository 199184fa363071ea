package appointment

import (
	"fmt"

	"github.com/jwalitptl/hms-api/internal/model"
	"github.com/jwalitptl/hms-api/pkg/errors"
)

type transition struct {
	from model.AppointmentStatus
	to   model.AppointmentStatus
}

// rule binds a transition to the role that may perform it and an
// optional ownership check against the appointment.
type rule struct {
	role  model.Role
	owned func(apt *model.Appointment, actor model.Actor) bool
}

func assignedDoctor(apt *model.Appointment, actor model.Actor) bool {
	return actor.ID == apt.DoctorID
}

func owningPatient(apt *model.Appointment, actor model.Actor) bool {
	return actor.ID == apt.PatientID
}

// transitions is the complete workflow table. Anything absent here is
// an invalid transition, which also makes every terminal status final.
var transitions = map[transition]rule{
	{model.AppointmentStatusBooked, model.AppointmentStatusCancelled}:        {role: model.RolePatient, owned: owningPatient},
	{model.AppointmentStatusBooked, model.AppointmentStatusArrived}:          {role: model.RoleReceptionist},
	{model.AppointmentStatusArrived, model.AppointmentStatusInConsultation}:  {role: model.RoleDoctor, owned: assignedDoctor},
	{model.AppointmentStatusArrived, model.AppointmentStatusAbsent}:          {role: model.RoleReceptionist},
	{model.AppointmentStatusInConsultation, model.AppointmentStatusPharmacy}: {role: model.RoleDoctor, owned: assignedDoctor},
	{model.AppointmentStatusPharmacy, model.AppointmentStatusCompleted}:      {role: model.RolePharmacist},
}

// Authorize checks whether actor may move the appointment to the
// requested status. It never mutates the appointment; committing the
// transition is the caller's job, guarded by the current status.
func Authorize(apt *model.Appointment, to model.AppointmentStatus, actor model.Actor) error {
	r, ok := transitions[transition{from: apt.Status, to: to}]
	if !ok {
		return errors.InvalidTransition(string(apt.Status), string(to))
	}

	if actor.Role != r.role {
		return errors.Unauthorized(fmt.Sprintf("role %s may not move an appointment from %s to %s", actor.Role, apt.Status, to))
	}

	if r.owned != nil && !r.owned(apt, actor) {
		return errors.Unauthorized("appointment belongs to a different user")
	}

	return nil
}
