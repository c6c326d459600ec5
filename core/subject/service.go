package subject

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/samkazadi/mahudhurio/core"
)

var (
	// errors
	ErrNotFound   = errors.New("subject not found")
	ErrCodeExists = errors.New("a subject with this code already exists")
)

type (
	Repository interface {
		CheckSubjectUniqueness(code string, excluded ...Subject) error
		CreateSubject(sub Subject) (Subject, error)
		QueryAllSubjects() ([]Subject, error)
		GetSubjectByID(id string) (Subject, error)
		GetSubjectByCode(code string) (Subject, error)
		UpdateSubject(sub Subject) (Subject, error)
		DeleteSubjectsByID(ids ...string) error
	}

	ServiceInterface interface {
		CheckUniqueness(code string, excluded ...Subject) error
		Create(ns NewSubject) (Subject, error)
		QueryAll() ([]Subject, error)
		GetByID(id string) (Subject, error)
		GetByCode(code string) (Subject, error)
		Update(id string, us UpdateSubject) (Subject, error)
		Delete(ids ...string) error
	}

	service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository) *service {
	return &service{repo: repo}
}

func (svc *service) CheckUniqueness(code string, excluded ...Subject) error {
	if err := svc.repo.CheckSubjectUniqueness(code, excluded...); err != nil {
		if errors.Cause(err) == ErrCodeExists {
			return core.NewValidationError(err, core.FieldError{Field: "code", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(ns NewSubject) (Subject, error) {
	now := time.Now().UTC()
	sub := Subject{
		ID:        uuid.New().String(),
		Code:      ns.Code,
		Name:      ns.Name,
		TeacherID: ns.TeacherID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateSubject(sub)
}

func (svc *service) QueryAll() ([]Subject, error) {
	return svc.repo.QueryAllSubjects()
}

func (svc *service) GetByID(id string) (Subject, error) {
	return svc.repo.GetSubjectByID(id)
}

func (svc *service) GetByCode(code string) (Subject, error) {
	return svc.repo.GetSubjectByCode(core.CleanString(code, true /* lower */))
}

func (svc *service) Update(id string, us UpdateSubject) (Subject, error) {
	sub := Subject{
		ID:        id,
		Name:      us.Name,
		TeacherID: us.TeacherID,
		UpdatedAt: time.Now().UTC(),
	}
	return svc.repo.UpdateSubject(sub)
}

func (svc *service) Delete(ids ...string) error {
	return svc.repo.DeleteSubjectsByID(ids...)
}
