package sqlxrepos

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/samkazadi/mahudhurio/core/subject"
)

type subjectRow struct {
	ID        string      `db:"id"`
	Code      string      `db:"code"`
	Name      string      `db:"name"`
	TeacherID null.String `db:"teacher_id"`
	CreatedAt null.Time   `db:"created_at"`
	UpdatedAt null.Time   `db:"updated_at"`
}

func packSubject(sub subject.Subject) subjectRow {
	return subjectRow{
		ID:        sub.ID,
		Code:      sub.Code,
		Name:      sub.Name,
		TeacherID: null.NewString(sub.TeacherID, sub.TeacherID != ""),
		CreatedAt: null.NewTime(sub.CreatedAt.UTC(), !sub.CreatedAt.IsZero()),
		UpdatedAt: null.NewTime(sub.UpdatedAt.UTC(), !sub.UpdatedAt.IsZero()),
	}
}

func unpackSubject(row subjectRow) subject.Subject {
	return subject.Subject{
		ID:        row.ID,
		Code:      row.Code,
		Name:      row.Name,
		TeacherID: row.TeacherID.String,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
}

type subjectRepository struct {
	db *sqlx.DB
}

var _ subject.Repository = (*subjectRepository)(nil) // interface compliance check

func NewSubjectRepository(db *sqlx.DB) *subjectRepository {
	return &subjectRepository{db: db}
}

func trapSubjectNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return subject.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo subjectRepository) CheckSubjectUniqueness(code string, excluded ...subject.Subject) error {
	q := `SELECT code FROM subjects WHERE code = $1`
	args := []interface{}{code}
	if len(excluded) > 0 {
		ids := make([]string, 0, len(excluded))
		for _, s := range excluded {
			ids = append(ids, s.ID)
		}
		var err error
		q, args, err = sqlx.In(q+` AND id NOT IN (?)`, code, ids)
		if err != nil {
			return errors.Wrap(err, "building uniqueness query")
		}
		q = repo.db.Rebind(q)
	}

	var rows []subjectRow
	if err := repo.db.Select(&rows, q, args...); err != nil {
		return errors.Wrap(err, "checking subject uniqueness")
	}
	if len(rows) > 0 {
		return subject.ErrCodeExists
	}
	return nil
}

func (repo subjectRepository) CreateSubject(sub subject.Subject) (subject.Subject, error) {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	row := packSubject(sub)
	q := `INSERT INTO subjects (id, code, name, teacher_id, created_at, updated_at)
	      VALUES (:id, :code, :name, :teacher_id, :created_at, :updated_at)`
	if _, err := repo.db.NamedExec(q, row); err != nil {
		if isUniqueViolation(err, "subjects_code_key") {
			return subject.Subject{}, subject.ErrCodeExists
		}
		return subject.Subject{}, errors.Wrap(err, "inserting subject")
	}
	return unpackSubject(row), nil
}

func (repo subjectRepository) QueryAllSubjects() ([]subject.Subject, error) {
	var rows []subjectRow
	if err := repo.db.Select(&rows, `SELECT * FROM subjects ORDER BY code`); err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	subjects := make([]subject.Subject, 0, len(rows))
	for _, row := range rows {
		subjects = append(subjects, unpackSubject(row))
	}
	return subjects, nil
}

func (repo subjectRepository) GetSubjectByID(id string) (subject.Subject, error) {
	if _, err := uuid.Parse(id); err != nil {
		return subject.Subject{}, subject.ErrNotFound
	}
	var row subjectRow
	if err := repo.db.Get(&row, `SELECT * FROM subjects WHERE id = $1`, id); err != nil {
		return subject.Subject{}, trapSubjectNoRowsErr(err, "finding subject by ID")
	}
	return unpackSubject(row), nil
}

func (repo subjectRepository) GetSubjectByCode(code string) (subject.Subject, error) {
	var row subjectRow
	if err := repo.db.Get(&row, `SELECT * FROM subjects WHERE code = $1`, code); err != nil {
		return subject.Subject{}, trapSubjectNoRowsErr(err, "finding subject by code")
	}
	return unpackSubject(row), nil
}

func (repo subjectRepository) UpdateSubject(sub subject.Subject) (subject.Subject, error) {
	orig, err := repo.GetSubjectByID(sub.ID)
	if err != nil {
		return subject.Subject{}, err
	}

	row := packSubject(sub)
	if row.Code == "" {
		row.Code = orig.Code
	}
	if row.Name == "" {
		row.Name = orig.Name
	}
	if !row.TeacherID.Valid {
		row.TeacherID = null.NewString(orig.TeacherID, orig.TeacherID != "")
	}
	row.CreatedAt = null.NewTime(orig.CreatedAt, !orig.CreatedAt.IsZero())
	row.UpdatedAt = null.TimeFrom(time.Now().UTC())

	q := `UPDATE subjects SET code = :code, name = :name, teacher_id = :teacher_id, updated_at = :updated_at
	      WHERE id = :id`
	if _, err = repo.db.NamedExec(q, row); err != nil {
		if isUniqueViolation(err, "subjects_code_key") {
			return subject.Subject{}, subject.ErrCodeExists
		}
		return subject.Subject{}, errors.Wrap(err, "updating subject")
	}
	return unpackSubject(row), nil
}

func (repo subjectRepository) DeleteSubjectsByID(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM subjects WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.Exec(repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting subjects")
	}
	return nil
}
