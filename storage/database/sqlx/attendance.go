package sqlxrepos

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/samkazadi/mahudhurio/core/attendance"
)

type recordRow struct {
	ID          string       `db:"id"`
	StudentID   string       `db:"student_id"`
	SubjectCode string       `db:"subject_code"`
	ClassName   null.String  `db:"class_name"`
	SessionID   null.String  `db:"session_id"`
	Status      string       `db:"status"`
	MarkedVia   string       `db:"marked_via"`
	Lat         null.Float64 `db:"lat"`
	Lng         null.Float64 `db:"lng"`
	CreatedAt   null.Time    `db:"created_at"`
	UpdatedAt   null.Time    `db:"updated_at"`
}

func packRecord(rec attendance.Record) recordRow {
	row := recordRow{
		ID:          rec.ID,
		StudentID:   rec.StudentID,
		SubjectCode: rec.SubjectCode,
		ClassName:   null.StringFrom(rec.ClassName),
		SessionID:   null.StringFrom(rec.SessionID),
		Status:      rec.Status,
		MarkedVia:   rec.MarkedVia,
		CreatedAt:   null.NewTime(rec.CreatedAt.UTC(), !rec.CreatedAt.IsZero()),
	}
	if rec.Location != nil {
		row.Lat = null.Float64From(rec.Location.Lat)
		row.Lng = null.Float64From(rec.Location.Lng)
	}
	return row
}

func unpackRecord(row recordRow) attendance.Record {
	rec := attendance.Record{
		ID:          row.ID,
		StudentID:   row.StudentID,
		SubjectCode: row.SubjectCode,
		ClassName:   row.ClassName.String,
		SessionID:   row.SessionID.String,
		Status:      row.Status,
		MarkedVia:   row.MarkedVia,
		CreatedAt:   row.CreatedAt.Time,
	}
	if row.Lat.Valid && row.Lng.Valid {
		rec.Location = &attendance.Coordinate{Lat: row.Lat.Float64, Lng: row.Lng.Float64}
	}
	return rec
}

type recordRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*recordRepository)(nil) // interface compliance check

func NewRecordRepository(db *sqlx.DB) *recordRepository {
	return &recordRepository{db: db}
}

func (repo recordRepository) CreateRecord(rec attendance.Record) (attendance.Record, error) {
	row := packRecord(rec)
	q := `INSERT INTO attendance_records (id, student_id, subject_code, class_name, session_id, status, marked_via, lat, lng, created_at)
	      VALUES (:id, :student_id, :subject_code, :class_name, :session_id, :status, :marked_via, :lat, :lng, :created_at)`
	if _, err := repo.db.NamedExec(q, row); err != nil {
		if isUniqueViolation(err, "attendance_records_session_student_idx") {
			return attendance.Record{}, attendance.ErrDuplicateRecord
		}
		return attendance.Record{}, errors.Wrap(err, "inserting attendance record")
	}
	return unpackRecord(row), nil
}

func (repo recordRepository) GetRecordByID(id string) (attendance.Record, error) {
	var row recordRow
	if err := repo.db.Get(&row, `SELECT * FROM attendance_records WHERE id = $1`, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return attendance.Record{}, attendance.ErrRecordNotFound
		}
		return attendance.Record{}, errors.Wrap(err, "finding attendance record")
	}
	return unpackRecord(row), nil
}

func (repo recordRepository) FilterRecords(filter attendance.RecordFilter) ([]attendance.Record, error) {
	q := `SELECT * FROM attendance_records WHERE 1=1`
	var args []interface{}
	next := func() string { return "$" + itoa(len(args)) }

	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		q += ` AND student_id = ` + next()
	}
	if filter.SubjectCode != "" {
		args = append(args, filter.SubjectCode)
		q += ` AND subject_code = ` + next()
	}
	if filter.SessionID != "" {
		args = append(args, filter.SessionID)
		q += ` AND session_id = ` + next()
	}
	if filter.MarkedVia != "" {
		args = append(args, filter.MarkedVia)
		q += ` AND marked_via = ` + next()
	}
	if !filter.CreatedFrom.IsZero() {
		args = append(args, filter.CreatedFrom.UTC())
		q += ` AND created_at >= ` + next()
	}
	if !filter.CreatedTo.IsZero() {
		args = append(args, filter.CreatedTo.UTC())
		q += ` AND created_at <= ` + next()
	}
	q += ` ORDER BY created_at DESC`

	var rows []recordRow
	if err := repo.db.Select(&rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering attendance records")
	}
	records := make([]attendance.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, unpackRecord(row))
	}
	return records, nil
}

func (repo recordRepository) UpdateRecord(rec attendance.Record) (attendance.Record, error) {
	orig, err := repo.GetRecordByID(rec.ID)
	if err != nil {
		return attendance.Record{}, err
	}
	if rec.Status == "" {
		rec.Status = orig.Status
	}

	row := packRecord(rec)
	res, err := repo.db.NamedExec(`UPDATE attendance_records SET status = :status, updated_at = NOW() WHERE id = :id`, row)
	if err != nil {
		return attendance.Record{}, errors.Wrap(err, "updating attendance record")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return attendance.Record{}, attendance.ErrRecordNotFound
	}
	return repo.GetRecordByID(rec.ID)
}

func (repo recordRepository) DeleteRecordsByID(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM attendance_records WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.Exec(repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting attendance records")
	}
	return nil
}
