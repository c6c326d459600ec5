package inmemdb

import (
	"sort"

	"github.com/google/uuid"

	"github.com/samkazadi/mahudhurio/core/subject"
)

type subjectRepository struct {
	db *subjectTable
}

var _ subject.Repository = (*subjectRepository)(nil) // interface compliance check

func NewSubjectRepository(db *DB) *subjectRepository {
	return &subjectRepository{db: db.subject}
}

func (repo *subjectRepository) query() []subject.Subject {
	subjects := make([]subject.Subject, 0, len(repo.db.table))
	for _, s := range repo.db.table {
		subjects = append(subjects, *s)
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].Code < subjects[j].Code })
	return subjects
}

func (repo *subjectRepository) CheckSubjectUniqueness(code string, excluded ...subject.Subject) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	exclSet := make(map[string]struct{}, len(excluded))
	for _, s := range excluded {
		exclSet[s.ID] = struct{}{}
	}

	for _, sub := range repo.query() {
		if _, skip := exclSet[sub.ID]; skip {
			continue
		}
		if sub.Code == code {
			return subject.ErrCodeExists
		}
	}
	return nil
}

func (repo *subjectRepository) CreateSubject(sub subject.Subject) (subject.Subject, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	repo.db.table[sub.ID] = &sub
	return sub, nil
}

func (repo *subjectRepository) QueryAllSubjects() ([]subject.Subject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(), nil
}

func (repo *subjectRepository) GetSubjectByID(id string) (subject.Subject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sub, ok := repo.db.table[id]; ok {
		return *sub, nil
	}
	return subject.Subject{}, subject.ErrNotFound
}

func (repo *subjectRepository) GetSubjectByCode(code string) (subject.Subject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, sub := range repo.query() {
		if sub.Code == code {
			return sub, nil
		}
	}
	return subject.Subject{}, subject.ErrNotFound
}

func (repo *subjectRepository) UpdateSubject(sub subject.Subject) (subject.Subject, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[sub.ID]
	if !ok {
		return subject.Subject{}, subject.ErrNotFound
	}
	if sub.Code != "" {
		orig.Code = sub.Code
	}
	if sub.Name != "" {
		orig.Name = sub.Name
	}
	if sub.TeacherID != "" {
		orig.TeacherID = sub.TeacherID
	}
	orig.UpdatedAt = sub.UpdatedAt

	repo.db.table[sub.ID] = orig
	return *orig, nil
}

func (repo *subjectRepository) DeleteSubjectsByID(ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
