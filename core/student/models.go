package student

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/samkazadi/mahudhurio/core"
)

// Student is a directory profile linking a user account to an enrolment.
type Student struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	RegNo      string    `json:"reg_no"`
	Name       string    `json:"name"`
	ClassGroup string    `json:"class_group"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"` // UTC
}

// NewStudent contains information needed to enrol a student.
type NewStudent struct {
	UserID     string `json:"user_id" validate:"required,uuid4"`
	RegNo      string `json:"reg_no" validate:"required,alphanum_"`
	Name       string `json:"name" validate:"required"`
	ClassGroup string `json:"class_group" validate:"required"`
}

func (ns *NewStudent) Validate(validate *validator.Validate, svc ServiceInterface) error {
	ns.UserID = core.CleanString(ns.UserID, true /* lower */)
	ns.RegNo = core.CleanString(ns.RegNo, true /* lower */)
	ns.Name = core.CleanString(ns.Name)
	ns.ClassGroup = core.CleanString(ns.ClassGroup)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return svc.CheckUniqueness(ns.RegNo, ns.UserID)
}

// UpdateStudent defines what may be modified on an existing Student.
type UpdateStudent struct {
	Name       string `json:"name"`
	ClassGroup string `json:"class_group"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate, orig Student) error {
	if name := core.CleanString(us.Name); name != "" {
		us.Name = name
	} else {
		us.Name = orig.Name
	}
	if grp := core.CleanString(us.ClassGroup); grp != "" {
		us.ClassGroup = grp
	} else {
		us.ClassGroup = orig.ClassGroup
	}
	return validate.Struct(us)
}

// QueryFilter narrows student queries; fields are ANDed.
type QueryFilter struct {
	Search     string `query:"search"`
	ClassGroup string `query:"class_group"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.ClassGroup == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.ClassGroup = core.CleanString(qf.ClassGroup)
}
