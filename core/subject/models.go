package subject

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/samkazadi/mahudhurio/core"
)

// Subject is one taught course, identified by its short code.
type Subject struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	TeacherID string    `json:"teacher_id,omitempty"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// NewSubject contains information needed to create a Subject.
type NewSubject struct {
	Code      string `json:"code" validate:"required,alphanum_"`
	Name      string `json:"name" validate:"required"`
	TeacherID string `json:"teacher_id" validate:"omitempty,uuid4"`
}

func (ns *NewSubject) Validate(validate *validator.Validate, svc ServiceInterface) error {
	ns.Code = core.CleanString(ns.Code, true /* lower */)
	ns.Name = core.CleanString(ns.Name)
	ns.TeacherID = core.CleanString(ns.TeacherID, true /* lower */)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return svc.CheckUniqueness(ns.Code)
}

// UpdateSubject defines what may be modified on an existing Subject.
type UpdateSubject struct {
	Name      string `json:"name"`
	TeacherID string `json:"teacher_id" validate:"omitempty,uuid4"`
}

func (us *UpdateSubject) Validate(validate *validator.Validate, orig Subject) error {
	if name := core.CleanString(us.Name); name != "" {
		us.Name = name
	} else {
		us.Name = orig.Name
	}
	if tid := core.CleanString(us.TeacherID, true /* lower */); tid != "" {
		us.TeacherID = tid
	} else {
		us.TeacherID = orig.TeacherID
	}
	return validate.Struct(us)
}
