package inmemdb

import (
	"sort"

	"github.com/google/uuid"

	"github.com/samkazadi/mahudhurio/core/attendance"
)

type recordRepository struct {
	db *recordTable
}

var _ attendance.Repository = (*recordRepository)(nil) // interface compliance check

func NewRecordRepository(db *DB) *recordRepository {
	return &recordRepository{db: db.record}
}

func (repo *recordRepository) query() []attendance.Record {
	records := make([]attendance.Record, 0, len(repo.db.table))
	for _, r := range repo.db.table {
		records = append(records, *r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CreatedAt.After(records[j].CreatedAt) })
	return records
}

func (repo *recordRepository) CreateRecord(rec attendance.Record) (attendance.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// mirror the unique session+student index
	if rec.SessionID != "" {
		for _, r := range repo.db.table {
			if r.SessionID == rec.SessionID && r.StudentID == rec.StudentID {
				return attendance.Record{}, attendance.ErrDuplicateRecord
			}
		}
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	repo.db.table[rec.ID] = &rec
	return rec, nil
}

func (repo *recordRepository) GetRecordByID(id string) (attendance.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rec, ok := repo.db.table[id]; ok {
		return *rec, nil
	}
	return attendance.Record{}, attendance.ErrRecordNotFound
}

func (repo *recordRepository) FilterRecords(filter attendance.RecordFilter) ([]attendance.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var records []attendance.Record
	for _, rec := range repo.query() {
		if filter.StudentID != "" && rec.StudentID != filter.StudentID {
			continue
		}
		if filter.SubjectCode != "" && rec.SubjectCode != filter.SubjectCode {
			continue
		}
		if filter.SessionID != "" && rec.SessionID != filter.SessionID {
			continue
		}
		if filter.MarkedVia != "" && rec.MarkedVia != filter.MarkedVia {
			continue
		}
		if !filter.CreatedFrom.IsZero() && rec.CreatedAt.Before(filter.CreatedFrom.UTC()) {
			continue
		}
		if !filter.CreatedTo.IsZero() && rec.CreatedAt.After(filter.CreatedTo.UTC()) {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (repo *recordRepository) UpdateRecord(rec attendance.Record) (attendance.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[rec.ID]
	if !ok {
		return attendance.Record{}, attendance.ErrRecordNotFound
	}
	if rec.Status != "" {
		orig.Status = rec.Status
	}

	repo.db.table[rec.ID] = orig
	return *orig, nil
}

func (repo *recordRepository) DeleteRecordsByID(ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
