package middleware

import (
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/hms-api/internal/model"
)

// RegisterValidators installs domain validators on gin's binding engine.
// Field names in validation errors come from the json tag so API clients
// see the names they sent.
func RegisterValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	if err := v.RegisterValidation("appointmentstatus", validAppointmentStatus); err != nil {
		panic(err)
	}

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})
}

func validAppointmentStatus(fl validator.FieldLevel) bool {
	switch model.AppointmentStatus(fl.Field().String()) {
	case model.AppointmentStatusBooked,
		model.AppointmentStatusArrived,
		model.AppointmentStatusInConsultation,
		model.AppointmentStatusPharmacy,
		model.AppointmentStatusLab,
		model.AppointmentStatusCompleted,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusAbsent:
		return true
	}
	return false
}
