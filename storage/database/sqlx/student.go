package sqlxrepos

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/samkazadi/mahudhurio/core/student"
)

type studentRow struct {
	ID         string      `db:"id"`
	UserID     string      `db:"user_id"`
	RegNo      string      `db:"reg_no"`
	Name       string      `db:"name"`
	ClassGroup null.String `db:"class_group"`
	CreatedAt  null.Time   `db:"created_at"`
	UpdatedAt  null.Time   `db:"updated_at"`
}

func packStudent(stu student.Student) studentRow {
	return studentRow{
		ID:         stu.ID,
		UserID:     stu.UserID,
		RegNo:      stu.RegNo,
		Name:       stu.Name,
		ClassGroup: null.StringFrom(stu.ClassGroup),
		CreatedAt:  null.NewTime(stu.CreatedAt.UTC(), !stu.CreatedAt.IsZero()),
		UpdatedAt:  null.NewTime(stu.UpdatedAt.UTC(), !stu.UpdatedAt.IsZero()),
	}
}

func unpackStudent(row studentRow) student.Student {
	return student.Student{
		ID:         row.ID,
		UserID:     row.UserID,
		RegNo:      row.RegNo,
		Name:       row.Name,
		ClassGroup: row.ClassGroup.String,
		CreatedAt:  row.CreatedAt.Time,
		UpdatedAt:  row.UpdatedAt.Time,
	}
}

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) *studentRepository {
	return &studentRepository{db: db}
}

func trapStudentNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return student.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo studentRepository) CheckStudentUniqueness(regNo, userID string, excluded ...student.Student) error {
	q := `SELECT reg_no, user_id FROM students WHERE reg_no = $1 OR user_id = $2`
	args := []interface{}{regNo, userID}
	if len(excluded) > 0 {
		ids := make([]string, 0, len(excluded))
		for _, s := range excluded {
			ids = append(ids, s.ID)
		}
		var err error
		q, args, err = sqlx.In(q+` AND id NOT IN (?)`, regNo, userID, ids)
		if err != nil {
			return errors.Wrap(err, "building uniqueness query")
		}
		q = repo.db.Rebind(q)
	}

	var rows []studentRow
	if err := repo.db.Select(&rows, q, args...); err != nil {
		return errors.Wrap(err, "checking student uniqueness")
	}
	for _, row := range rows {
		if row.RegNo == regNo {
			return student.ErrRegNoExists
		}
	}
	if len(rows) > 0 {
		return student.ErrUserEnrolled
	}
	return nil
}

func (repo studentRepository) CreateStudent(stu student.Student) (student.Student, error) {
	if stu.ID == "" {
		stu.ID = uuid.New().String()
	}
	row := packStudent(stu)
	q := `INSERT INTO students (id, user_id, reg_no, name, class_group, created_at, updated_at)
	      VALUES (:id, :user_id, :reg_no, :name, :class_group, :created_at, :updated_at)`
	if _, err := repo.db.NamedExec(q, row); err != nil {
		if isUniqueViolation(err, "students_reg_no_key") {
			return student.Student{}, student.ErrRegNoExists
		}
		if isUniqueViolation(err, "students_user_id_key") {
			return student.Student{}, student.ErrUserEnrolled
		}
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return unpackStudent(row), nil
}

func (repo studentRepository) QueryAllStudents() ([]student.Student, error) {
	var rows []studentRow
	if err := repo.db.Select(&rows, `SELECT * FROM students ORDER BY reg_no`); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	return unpackStudents(rows), nil
}

func unpackStudents(rows []studentRow) []student.Student {
	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, unpackStudent(row))
	}
	return students
}

func (repo studentRepository) GetStudentByID(id string) (student.Student, error) {
	if _, err := uuid.Parse(id); err != nil {
		return student.Student{}, student.ErrNotFound
	}
	var row studentRow
	if err := repo.db.Get(&row, `SELECT * FROM students WHERE id = $1`, id); err != nil {
		return student.Student{}, trapStudentNoRowsErr(err, "finding student by ID")
	}
	return unpackStudent(row), nil
}

func (repo studentRepository) GetStudentByUserID(userID string) (student.Student, error) {
	var row studentRow
	if err := repo.db.Get(&row, `SELECT * FROM students WHERE user_id = $1`, userID); err != nil {
		return student.Student{}, trapStudentNoRowsErr(err, "finding student by user ID")
	}
	return unpackStudent(row), nil
}

func (repo studentRepository) GetStudentByRegNo(regNo string) (student.Student, error) {
	var row studentRow
	if err := repo.db.Get(&row, `SELECT * FROM students WHERE reg_no = $1`, regNo); err != nil {
		return student.Student{}, trapStudentNoRowsErr(err, "finding student by reg no")
	}
	return unpackStudent(row), nil
}

func (repo studentRepository) FilterStudents(filter student.QueryFilter) ([]student.Student, error) {
	q := `SELECT * FROM students WHERE 1=1`
	var args []interface{}
	next := func() string { return "$" + itoa(len(args)) }

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		p := next()
		q += ` AND (name ILIKE ` + p + ` OR reg_no ILIKE ` + p + `)`
	}
	if filter.ClassGroup != "" {
		args = append(args, filter.ClassGroup)
		q += ` AND class_group = ` + next()
	}
	q += ` ORDER BY reg_no`

	var rows []studentRow
	if err := repo.db.Select(&rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering students")
	}
	return unpackStudents(rows), nil
}

func (repo studentRepository) UpdateStudent(stu student.Student) (student.Student, error) {
	orig, err := repo.GetStudentByID(stu.ID)
	if err != nil {
		return student.Student{}, err
	}

	row := packStudent(stu)
	if row.RegNo == "" {
		row.RegNo = orig.RegNo
	}
	if row.Name == "" {
		row.Name = orig.Name
	}
	if !row.ClassGroup.Valid || row.ClassGroup.String == "" {
		row.ClassGroup = null.StringFrom(orig.ClassGroup)
	}
	row.UserID = orig.UserID
	row.CreatedAt = null.NewTime(orig.CreatedAt, !orig.CreatedAt.IsZero())
	row.UpdatedAt = null.TimeFrom(time.Now().UTC())

	q := `UPDATE students SET reg_no = :reg_no, name = :name, class_group = :class_group, updated_at = :updated_at
	      WHERE id = :id`
	if _, err = repo.db.NamedExec(q, row); err != nil {
		if isUniqueViolation(err, "students_reg_no_key") {
			return student.Student{}, student.ErrRegNoExists
		}
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	return unpackStudent(row), nil
}

func (repo studentRepository) DeleteStudentsByID(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM students WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.Exec(repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting students")
	}
	return nil
}
