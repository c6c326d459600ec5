package attendance

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/samkazadi/mahudhurio/core"
	"github.com/samkazadi/mahudhurio/core/student"
	"github.com/samkazadi/mahudhurio/core/user"
)

var (
	classLocation = Coordinate{Lat: -4.3217, Lng: 15.3125}
	farAway       = Coordinate{Lat: -4.3262, Lng: 15.3125} // ~500m north
)

// mocks

type studentRepoMock struct {
	students map[string]student.Student // keyed by user ID
}

var _ student.Repository = (*studentRepoMock)(nil)

func (m *studentRepoMock) CheckStudentUniqueness(string, string, ...student.Student) error {
	return nil
}
func (m *studentRepoMock) CreateStudent(stu student.Student) (student.Student, error) {
	m.students[stu.UserID] = stu
	return stu, nil
}
func (m *studentRepoMock) QueryAllStudents() ([]student.Student, error) { return nil, nil }
func (m *studentRepoMock) GetStudentByID(id string) (student.Student, error) {
	for _, stu := range m.students {
		if stu.ID == id {
			return stu, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}
func (m *studentRepoMock) GetStudentByUserID(userID string) (student.Student, error) {
	if stu, ok := m.students[userID]; ok {
		return stu, nil
	}
	return student.Student{}, student.ErrNotFound
}
func (m *studentRepoMock) GetStudentByRegNo(string) (student.Student, error) {
	return student.Student{}, student.ErrNotFound
}
func (m *studentRepoMock) FilterStudents(student.QueryFilter) ([]student.Student, error) {
	return nil, nil
}
func (m *studentRepoMock) UpdateStudent(stu student.Student) (student.Student, error) {
	return stu, nil
}
func (m *studentRepoMock) DeleteStudentsByID(...string) error { return nil }

type recordRepoMock struct {
	mu      sync.Mutex
	records []Record
	failErr error // forced CreateRecord failure
}

var _ Repository = (*recordRepoMock)(nil)

func (m *recordRepoMock) CreateRecord(rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return Record{}, m.failErr
	}
	for _, r := range m.records {
		if r.SessionID != "" && r.SessionID == rec.SessionID && r.StudentID == rec.StudentID {
			return Record{}, ErrDuplicateRecord
		}
	}
	m.records = append(m.records, rec)
	return rec, nil
}
func (m *recordRepoMock) GetRecordByID(id string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return Record{}, ErrRecordNotFound
}
func (m *recordRepoMock) FilterRecords(RecordFilter) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...), nil
}
func (m *recordRepoMock) UpdateRecord(rec Record) (Record, error) { return rec, nil }
func (m *recordRepoMock) DeleteRecordsByID(...string) error       { return nil }

func (m *recordRepoMock) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type rendererMock struct{}

func (rendererMock) Render(payload string, size int) ([]byte, error) {
	return []byte("png:" + payload), nil
}

type loggerMock struct{}

func (loggerMock) Enable(bool)                  {}
func (loggerMock) Debug(string, ...interface{}) {}
func (loggerMock) Info(string, ...interface{})  {}
func (loggerMock) Warn(string, ...interface{})  {}
func (loggerMock) Error(string, ...interface{}) {}
func (loggerMock) Fatal(string, ...interface{}) {}

func activePtr() *bool { b := true; return &b }

func setup(t *testing.T) (*service, *SessionStore, *recordRepoMock, *studentRepoMock) {
	t.Helper()
	store := NewSessionStore()
	t.Cleanup(store.Stop)

	recRepo := &recordRepoMock{}
	stuRepo := &studentRepoMock{students: make(map[string]student.Student)}
	conf := &core.Config{
		Attendance: core.AttendanceConfig{DefaultSessionDuration: time.Minute},
	}
	svc := NewService(store, recRepo, stuRepo, rendererMock{}, loggerMock{}, conf)
	return svc, store, recRepo, stuRepo
}

func enrolStudent(t *testing.T, repo *studentRepoMock, userID, regNo, name string) student.Student {
	t.Helper()
	stu, err := repo.CreateStudent(student.Student{
		ID:     "stu-" + regNo,
		UserID: userID,
		RegNo:  regNo,
		Name:   name,
	})
	if err != nil {
		t.Fatalf("enrolStudent() failed: %v", err)
	}
	return stu
}

func teacher() user.User {
	return user.User{ID: "teacher-1", Name: "Mr. Kalala", Roles: []string{user.RoleTeacher}, IsActive: activePtr()}
}

func studentUser(id string) user.User {
	return user.User{ID: id, Roles: []string{user.RoleStudent}, IsActive: activePtr()}
}

func generate(t *testing.T, svc *service, duration int) GeneratedSession {
	t.Helper()
	loc := classLocation
	gen, err := svc.GenerateSession(NewSession{
		SubjectCode:   "phy101",
		ClassName:     "S5 MathPhys",
		ClassLocation: &loc,
		Duration:      duration,
	}, teacher())
	if err != nil {
		t.Fatalf("GenerateSession() failed: %v", err)
	}
	return gen
}

// tests

func TestService_GenerateSession(t *testing.T) {
	svc, store, _, _ := setup(t)

	gen := generate(t, svc, 0) // duration defaults to 60s

	if gen.Duration != 60 {
		t.Errorf("Duration = %d, want 60", gen.Duration)
	}
	if gen.SessionID == "" {
		t.Error("SessionID is empty")
	}

	var payload ScanPayload
	if err := json.Unmarshal([]byte(gen.EncodedPayload), &payload); err != nil {
		t.Fatalf("payload not valid JSON: %v", err)
	}
	assert.Equal(t, gen.SessionID, payload.SessionID)
	assert.Equal(t, "phy101", payload.SubjectCode)
	assert.Equal(t, classLocation, payload.ClassLocation)
	assert.Equal(t, "teacher-1", payload.OwnerID)

	sess, err := store.Get(gen.SessionID)
	if err != nil {
		t.Fatalf("session not registered: %v", err)
	}
	if !sess.ExpiresAt.Equal(gen.ExpiresAt) {
		t.Errorf("ExpiresAt mismatch: store %v, response %v", sess.ExpiresAt, gen.ExpiresAt)
	}
}

func TestService_GenerateSession_missingLocation(t *testing.T) {
	svc, store, _, _ := setup(t)

	_, err := svc.GenerateSession(NewSession{
		SubjectCode: "phy101",
		ClassName:   "S5 MathPhys",
	}, teacher())

	if _, ok := errors.Cause(err).(*core.ValidationError); !ok {
		t.Fatalf("GenerateSession() error = %v, want ValidationError", err)
	}
	if store.Len() != 0 {
		t.Errorf("store has %d sessions, want 0", store.Len())
	}
}

func TestService_ProcessScan(t *testing.T) {
	svc, _, recRepo, stuRepo := setup(t)
	enrolStudent(t, stuRepo, "user-1", "reg001", "Amani K")
	gen := generate(t, svc, 60)

	loc := classLocation
	res, err := svc.ProcessScan(ScanRequest{Payload: gen.EncodedPayload, Location: &loc}, studentUser("user-1"))
	if err != nil {
		t.Fatalf("ProcessScan() error = %v", err)
	}
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, "Amani K", res.StudentName)
	assert.Equal(t, "phy101", res.SubjectCode)
	if res.Timestamp.IsZero() {
		t.Error("Timestamp is zero")
	}

	if recRepo.len() != 1 {
		t.Fatalf("records = %d, want 1", recRepo.len())
	}
	rec := recRepo.records[0]
	assert.Equal(t, MarkedViaQR, rec.MarkedVia)
	assert.Equal(t, StatusPresent, rec.Status)
	assert.Equal(t, gen.SessionID, rec.SessionID)
	assert.Equal(t, "stu-reg001", rec.StudentID)
}

func TestService_ProcessScan_rejections(t *testing.T) {
	svc, store, recRepo, stuRepo := setup(t)
	enrolStudent(t, stuRepo, "user-1", "reg001", "Amani K")
	gen := generate(t, svc, 60)
	loc := classLocation

	// a well-formed payload whose session was never registered; its embedded
	// expiry is far in the future and must be ignored
	ghost, _ := json.Marshal(ScanPayload{
		SessionID:     "11111111-2222-3333-4444-555555555555",
		SubjectCode:   "phy101",
		ClassLocation: classLocation,
		ExpiresAt:     time.Now().Add(24 * time.Hour),
	})

	tests := []struct {
		name    string
		sc      ScanRequest
		scanner user.User
		wantErr error
	}{
		{name: "missing payload", sc: ScanRequest{Location: &loc}, scanner: studentUser("user-1")},
		{name: "missing location", sc: ScanRequest{Payload: gen.EncodedPayload}, scanner: studentUser("user-1")},
		{name: "garbage payload", sc: ScanRequest{Payload: "!!not-json!!", Location: &loc}, scanner: studentUser("user-1"), wantErr: ErrMalformedPayload},
		{name: "empty session id", sc: ScanRequest{Payload: "{}", Location: &loc}, scanner: studentUser("user-1"), wantErr: ErrMalformedPayload},
		{name: "unknown session trumps embedded expiry", sc: ScanRequest{Payload: string(ghost), Location: &loc}, scanner: studentUser("user-1"), wantErr: ErrSessionExpired},
		{name: "out of range", sc: ScanRequest{Payload: gen.EncodedPayload, Location: &farAway}, scanner: studentUser("user-1"), wantErr: ErrOutOfRange},
		{name: "no student profile", sc: ScanRequest{Payload: gen.EncodedPayload, Location: &loc}, scanner: studentUser("stranger"), wantErr: ErrStudentUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ProcessScan(tt.sc, tt.scanner)
			if tt.wantErr != nil {
				if errors.Cause(err) != tt.wantErr {
					t.Errorf("ProcessScan() error = %v, want %v", err, tt.wantErr)
				}
			} else if _, ok := errors.Cause(err).(*core.ValidationError); !ok {
				t.Errorf("ProcessScan() error = %v, want ValidationError", err)
			}
		})
	}

	// no record was written, no present-set mutation survived
	if recRepo.len() != 0 {
		t.Errorf("records = %d, want 0", recRepo.len())
	}
	present, err := store.Present(gen.SessionID)
	if err != nil {
		t.Fatalf("Present() error = %v", err)
	}
	if len(present) != 0 {
		t.Errorf("present = %v, want empty", present)
	}
}

func TestService_ProcessScan_alreadyMarked(t *testing.T) {
	svc, _, recRepo, stuRepo := setup(t)
	enrolStudent(t, stuRepo, "user-1", "reg001", "Amani K")
	gen := generate(t, svc, 60)
	loc := classLocation
	sc := ScanRequest{Payload: gen.EncodedPayload, Location: &loc}

	if _, err := svc.ProcessScan(sc, studentUser("user-1")); err != nil {
		t.Fatalf("first ProcessScan() error = %v", err)
	}
	if _, err := svc.ProcessScan(sc, studentUser("user-1")); errors.Cause(err) != ErrAlreadyMarked {
		t.Errorf("second ProcessScan() error = %v, want %v", err, ErrAlreadyMarked)
	}
	if recRepo.len() != 1 {
		t.Errorf("records = %d, want 1", recRepo.len())
	}
}

func TestService_ProcessScan_concurrentDuplicates(t *testing.T) {
	svc, _, recRepo, stuRepo := setup(t)
	enrolStudent(t, stuRepo, "user-1", "reg001", "Amani K")
	gen := generate(t, svc, 60)
	loc := classLocation
	sc := ScanRequest{Payload: gen.EncodedPayload, Location: &loc}

	const n = 20
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ProcessScan(sc, studentUser("user-1"))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, dups int
	for err := range results {
		switch errors.Cause(err) {
		case nil:
			successes++
		case ErrAlreadyMarked:
			dups++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("successes = %d, want exactly 1", successes)
	}
	if dups != n-1 {
		t.Errorf("duplicates = %d, want %d", dups, n-1)
	}
	if recRepo.len() != 1 {
		t.Errorf("records = %d, want 1", recRepo.len())
	}
}

func TestService_ProcessScan_commitFailureRollsBack(t *testing.T) {
	svc, store, recRepo, stuRepo := setup(t)
	enrolStudent(t, stuRepo, "user-1", "reg001", "Amani K")
	gen := generate(t, svc, 60)
	loc := classLocation
	sc := ScanRequest{Payload: gen.EncodedPayload, Location: &loc}

	recRepo.failErr = errors.New("connection reset")
	if _, err := svc.ProcessScan(sc, studentUser("user-1")); err == nil {
		t.Fatal("ProcessScan() succeeded, want commit error")
	}

	// the present set was compensated: the student can retry
	present, err := store.Present(gen.SessionID)
	if err != nil {
		t.Fatalf("Present() error = %v", err)
	}
	if len(present) != 0 {
		t.Errorf("present = %v, want empty after rollback", present)
	}

	recRepo.failErr = nil
	if _, err = svc.ProcessScan(sc, studentUser("user-1")); err != nil {
		t.Errorf("retry ProcessScan() error = %v", err)
	}
}

func TestService_ProcessScan_expiredSession(t *testing.T) {
	svc, _, _, stuRepo := setup(t)
	enrolStudent(t, stuRepo, "user-1", "reg001", "Amani K")
	gen := generate(t, svc, 60)
	loc := classLocation

	nowFunc = func() time.Time { return time.Now().Add(2 * time.Minute) }
	defer func() { nowFunc = time.Now }()

	_, err := svc.ProcessScan(ScanRequest{Payload: gen.EncodedPayload, Location: &loc}, studentUser("user-1"))
	if errors.Cause(err) != ErrSessionExpired {
		t.Errorf("ProcessScan() error = %v, want %v", err, ErrSessionExpired)
	}
}

func TestService_SessionStats(t *testing.T) {
	svc, _, _, stuRepo := setup(t)
	enrolStudent(t, stuRepo, "user-1", "reg001", "Amani K")
	enrolStudent(t, stuRepo, "user-2", "reg002", "Bisa N")
	gen := generate(t, svc, 60)
	loc := classLocation

	stats, err := svc.SessionStats(gen.SessionID, teacher())
	if err != nil {
		t.Fatalf("SessionStats() error = %v", err)
	}
	assert.Equal(t, 0, stats.TotalPresent)
	assert.False(t, stats.IsExpired)
	if stats.TimeRemaining <= 0 || stats.TimeRemaining > 60 {
		t.Errorf("TimeRemaining = %d, want in (0,60]", stats.TimeRemaining)
	}

	for _, uid := range []string{"user-1", "user-2"} {
		if _, err = svc.ProcessScan(ScanRequest{Payload: gen.EncodedPayload, Location: &loc}, studentUser(uid)); err != nil {
			t.Fatalf("ProcessScan(%s) error = %v", uid, err)
		}
	}

	stats, err = svc.SessionStats(gen.SessionID, teacher())
	if err != nil {
		t.Fatalf("SessionStats() error = %v", err)
	}
	assert.Equal(t, 2, stats.TotalPresent)
	names := []string{stats.PresentStudents[0].Name, stats.PresentStudents[1].Name}
	assert.ElementsMatch(t, []string{"Amani K", "Bisa N"}, names)

	// not the owner
	other := user.User{ID: "teacher-2", Roles: []string{user.RoleTeacher}}
	if _, err = svc.SessionStats(gen.SessionID, other); errors.Cause(err) != ErrNotSessionOwner {
		t.Errorf("SessionStats() as non-owner error = %v, want %v", err, ErrNotSessionOwner)
	}

	// expired
	nowFunc = func() time.Time { return time.Now().Add(2 * time.Minute) }
	defer func() { nowFunc = time.Now }()
	if _, err = svc.SessionStats(gen.SessionID, teacher()); errors.Cause(err) != ErrSessionNotFound {
		t.Errorf("SessionStats() after expiry error = %v, want %v", err, ErrSessionNotFound)
	}
}

func TestService_SessionStats_unresolvedProfile(t *testing.T) {
	svc, _, _, stuRepo := setup(t)
	enrolStudent(t, stuRepo, "user-1", "reg001", "Amani K")
	enrolStudent(t, stuRepo, "user-2", "reg002", "Bisa N")
	gen := generate(t, svc, 60)
	loc := classLocation

	for _, uid := range []string{"user-1", "user-2"} {
		if _, err := svc.ProcessScan(ScanRequest{Payload: gen.EncodedPayload, Location: &loc}, studentUser(uid)); err != nil {
			t.Fatalf("ProcessScan(%s) error = %v", uid, err)
		}
	}

	// profile deleted after check-in; occupancy still counts the scan
	delete(stuRepo.students, "user-2")

	stats, err := svc.SessionStats(gen.SessionID, teacher())
	if err != nil {
		t.Fatalf("SessionStats() error = %v", err)
	}
	assert.Equal(t, 2, stats.TotalPresent)
	if assert.Len(t, stats.PresentStudents, 1) {
		assert.Equal(t, "Amani K", stats.PresentStudents[0].Name)
	}
}

func TestService_CloseSession(t *testing.T) {
	svc, store, _, _ := setup(t)
	gen := generate(t, svc, 60)

	other := user.User{ID: "teacher-2", Roles: []string{user.RoleTeacher}}
	if err := svc.CloseSession(gen.SessionID, other); errors.Cause(err) != ErrNotSessionOwner {
		t.Errorf("CloseSession() as non-owner error = %v, want %v", err, ErrNotSessionOwner)
	}

	if err := svc.CloseSession(gen.SessionID, teacher()); err != nil {
		t.Fatalf("CloseSession() error = %v", err)
	}
	if _, err := store.Get(gen.SessionID); err != ErrSessionNotFound {
		t.Errorf("Get() after close error = %v, want %v", err, ErrSessionNotFound)
	}
	// closing again: session is simply gone
	if err := svc.CloseSession(gen.SessionID, teacher()); errors.Cause(err) != ErrSessionNotFound {
		t.Errorf("CloseSession() twice error = %v, want %v", err, ErrSessionNotFound)
	}
}

func TestService_SessionQR(t *testing.T) {
	svc, _, _, _ := setup(t)
	gen := generate(t, svc, 60)

	img, err := svc.SessionQR(gen.SessionID, teacher(), 256)
	if err != nil {
		t.Fatalf("SessionQR() error = %v", err)
	}
	assert.Equal(t, "png:"+gen.EncodedPayload, string(img))
}
