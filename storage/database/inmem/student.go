package inmemdb

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/samkazadi/mahudhurio/core/student"
)

type studentRepository struct {
	db *studentTable
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db.student}
}

func (repo *studentRepository) query() []student.Student {
	students := make([]student.Student, 0, len(repo.db.table))
	for _, s := range repo.db.table {
		students = append(students, *s)
	}
	sort.Slice(students, func(i, j int) bool { return students[i].RegNo < students[j].RegNo })
	return students
}

func (repo *studentRepository) CheckStudentUniqueness(regNo, userID string, excluded ...student.Student) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	exclSet := make(map[string]struct{}, len(excluded))
	for _, s := range excluded {
		exclSet[s.ID] = struct{}{}
	}

	for _, stu := range repo.query() {
		if _, skip := exclSet[stu.ID]; skip {
			continue
		}
		if stu.RegNo == regNo {
			return student.ErrRegNoExists
		}
		if stu.UserID == userID {
			return student.ErrUserEnrolled
		}
	}
	return nil
}

func (repo *studentRepository) CreateStudent(stu student.Student) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if stu.ID == "" {
		stu.ID = uuid.New().String()
	}
	repo.db.table[stu.ID] = &stu
	return stu, nil
}

func (repo *studentRepository) QueryAllStudents() ([]student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(), nil
}

func (repo *studentRepository) GetStudentByID(id string) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if stu, ok := repo.db.table[id]; ok {
		return *stu, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) GetStudentByUserID(userID string) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, stu := range repo.query() {
		if stu.UserID == userID {
			return stu, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) GetStudentByRegNo(regNo string) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, stu := range repo.query() {
		if stu.RegNo == regNo {
			return stu, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) FilterStudents(filter student.QueryFilter) ([]student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	students := repo.query()

	if filter.Search != "" {
		var filtered []student.Student
		search := strings.ToLower(filter.Search)
		for _, s := range students {
			if strings.Contains(strings.ToLower(s.Name), search) ||
				strings.Contains(strings.ToLower(s.RegNo), search) {
				filtered = append(filtered, s)
			}
		}
		students = filtered
	}
	if students != nil && filter.ClassGroup != "" {
		var filtered []student.Student
		for _, s := range students {
			if s.ClassGroup == filter.ClassGroup {
				filtered = append(filtered, s)
			}
		}
		students = filtered
	}

	return students, nil
}

func (repo *studentRepository) UpdateStudent(stu student.Student) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[stu.ID]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	if stu.RegNo != "" {
		orig.RegNo = stu.RegNo
	}
	if stu.Name != "" {
		orig.Name = stu.Name
	}
	if stu.ClassGroup != "" {
		orig.ClassGroup = stu.ClassGroup
	}
	orig.UpdatedAt = stu.UpdatedAt

	repo.db.table[stu.ID] = orig
	return *orig, nil
}

func (repo *studentRepository) DeleteStudentsByID(ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
