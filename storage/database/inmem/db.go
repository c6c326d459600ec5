// Package inmemdb implements the core repositories on in-memory maps.
// It backs tests and local development without a running database.
package inmemdb

import (
	"sync"

	"github.com/samkazadi/mahudhurio/core/attendance"
	"github.com/samkazadi/mahudhurio/core/student"
	"github.com/samkazadi/mahudhurio/core/subject"
	"github.com/samkazadi/mahudhurio/core/user"
)

type (
	DB struct {
		user    *userTable
		student *studentTable
		subject *subjectTable
		record  *recordTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	studentTable struct {
		sync.RWMutex
		table map[string]*student.Student
	}

	subjectTable struct {
		sync.RWMutex
		table map[string]*subject.Subject
	}

	recordTable struct {
		sync.RWMutex
		table map[string]*attendance.Record
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:    &userTable{table: make(map[string]*user.User)},
		student: &studentTable{table: make(map[string]*student.Student)},
		subject: &subjectTable{table: make(map[string]*subject.Subject)},
		record:  &recordTable{table: make(map[string]*attendance.Record)},
	}
	return db, nil
}
