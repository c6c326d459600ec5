package student

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/samkazadi/mahudhurio/core"
)

var (
	// errors
	ErrNotFound     = errors.New("student not found")
	ErrRegNoExists  = errors.New("a student with this registration number already exists")
	ErrUserEnrolled = errors.New("this user is already enrolled as a student")
)

type (
	Repository interface {
		CheckStudentUniqueness(regNo, userID string, excluded ...Student) error
		CreateStudent(stu Student) (Student, error)
		QueryAllStudents() ([]Student, error)
		GetStudentByID(id string) (Student, error)
		GetStudentByUserID(userID string) (Student, error)
		GetStudentByRegNo(regNo string) (Student, error)
		// FilterStudents applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Student.Name or Student.RegNo.
		FilterStudents(filter QueryFilter) ([]Student, error)
		UpdateStudent(stu Student) (Student, error)
		DeleteStudentsByID(ids ...string) error
	}

	ServiceInterface interface {
		CheckUniqueness(regNo, userID string, excluded ...Student) error
		Create(ns NewStudent) (Student, error)
		QueryAll() ([]Student, error)
		GetByID(id string) (Student, error)
		GetByUserID(userID string) (Student, error)
		GetByRegNo(regNo string) (Student, error)
		Filter(filter QueryFilter) ([]Student, error)
		Update(id string, us UpdateStudent) (Student, error)
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

func (svc *service) CheckUniqueness(regNo, userID string, excluded ...Student) error {
	if err := svc.repo.CheckStudentUniqueness(regNo, userID, excluded...); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrRegNoExists:
			field = "reg_no"
		case ErrUserEnrolled:
			field = "user_id"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *service) Create(ns NewStudent) (Student, error) {
	now := time.Now().UTC()
	stu := Student{
		ID:         uuid.New().String(),
		UserID:     ns.UserID,
		RegNo:      ns.RegNo,
		Name:       ns.Name,
		ClassGroup: ns.ClassGroup,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return svc.repo.CreateStudent(stu)
}

func (svc *service) QueryAll() ([]Student, error) {
	return svc.repo.QueryAllStudents()
}

func (svc *service) GetByID(id string) (Student, error) {
	return svc.repo.GetStudentByID(id)
}

func (svc *service) GetByUserID(userID string) (Student, error) {
	return svc.repo.GetStudentByUserID(userID)
}

func (svc *service) GetByRegNo(regNo string) (Student, error) {
	return svc.repo.GetStudentByRegNo(core.CleanString(regNo, true /* lower */))
}

func (svc *service) Filter(filter QueryFilter) ([]Student, error) {
	return svc.repo.FilterStudents(filter)
}

func (svc *service) Update(id string, us UpdateStudent) (Student, error) {
	stu := Student{
		ID:         id,
		Name:       us.Name,
		ClassGroup: us.ClassGroup,
		UpdatedAt:  time.Now().UTC(),
	}
	return svc.repo.UpdateStudent(stu)
}

func (svc *service) Delete(ids ...string) error {
	return svc.repo.DeleteStudentsByID(ids...)
}
