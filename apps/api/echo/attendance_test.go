package echoapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samkazadi/mahudhurio/core/attendance"
	"github.com/samkazadi/mahudhurio/core/user"
)

var (
	testClassLocation = attendance.Coordinate{Lat: -4.3217, Lng: 15.3125}
	testFarLocation   = attendance.Coordinate{Lat: -4.3262, Lng: 15.3125} // ~500m away
)

func openSession(t *testing.T, deps testDeps, token string) attendance.GeneratedSession {
	t.Helper()
	body := marshallObj(t, attendance.NewSession{
		SubjectCode:   "phy101",
		ClassName:     "S5 MathPhys",
		ClassLocation: &testClassLocation,
	})
	req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/sessions", token, body)
	deps.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var gen attendance.GeneratedSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gen))
	return gen
}

func scanBody(t *testing.T, payload string, loc attendance.Coordinate) []byte {
	t.Helper()
	return marshallObj(t, attendance.ScanRequest{Payload: payload, Location: &loc})
}

func TestAttendanceAPI_sessionLifecycle(t *testing.T) {
	deps := initTestServer(t)

	teacherUsr := createTestUser(t, deps.usrRepo, "Mr. Kalala", "kalala", "kalala@test.cd", "", user.TeacherRoles)
	otherTeacher := createTestUser(t, deps.usrRepo, "Mr. Ilunga", "ilunga", "ilunga@test.cd", "", user.TeacherRoles)
	studentUsr := createTestUser(t, deps.usrRepo, "Amani K", "amani1", "amani@test.cd", "", user.StudentRoles)
	enrolTestStudent(t, deps.stuRepo, studentUsr, "reg001")

	teacherTkn := getToken(t, teacherUsr)
	otherTkn := getToken(t, otherTeacher)
	studentTkn := getToken(t, studentUsr)

	gen := openSession(t, deps, teacherTkn)
	assert.Equal(t, 60, gen.Duration)
	assert.NotEmpty(t, gen.SessionID)
	assert.NotEmpty(t, gen.EncodedPayload)

	statsPath := "/v1/attendance/sessions/" + gen.SessionID

	t.Run("students cannot open sessions", func(t *testing.T) {
		body := marshallObj(t, attendance.NewSession{
			SubjectCode:   "phy101",
			ClassName:     "S5 MathPhys",
			ClassLocation: &testClassLocation,
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/sessions", studentTkn, body)
		deps.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("qr render", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, statsPath+"/qr?size=128", teacherTkn)
		deps.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		// PNG magic number
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
	})

	t.Run("stats owner only", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, statsPath, otherTkn)
		deps.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("initial stats", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, statsPath, teacherTkn)
		deps.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var stats attendance.SessionStats
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
		assert.Equal(t, 0, stats.TotalPresent)
		assert.False(t, stats.IsExpired)
		assert.Greater(t, stats.TimeRemaining, 0)
	})

	t.Run("scan marks student present", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/scan", studentTkn, scanBody(t, gen.EncodedPayload, testClassLocation))
		deps.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res attendance.ScanResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, "success", res.Status)
		assert.Equal(t, "Amani K", res.StudentName)
	})

	t.Run("duplicate scan conflicts", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/scan", studentTkn, scanBody(t, gen.EncodedPayload, testClassLocation))
		deps.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("stats after scan", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, statsPath, teacherTkn)
		deps.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var stats attendance.SessionStats
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
		assert.Equal(t, 1, stats.TotalPresent)
		require.Len(t, stats.PresentStudents, 1)
		assert.Equal(t, "reg001", stats.PresentStudents[0].RegNo)
	})

	t.Run("record persisted", func(t *testing.T) {
		records, err := deps.recRepo.FilterRecords(attendance.RecordFilter{SessionID: gen.SessionID})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, attendance.MarkedViaQR, records[0].MarkedVia)
		assert.Equal(t, attendance.StatusPresent, records[0].Status)
	})

	t.Run("close owner only", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, statsPath, otherTkn)
		deps.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("close session", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, statsPath, teacherTkn)
		deps.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		// session is gone
		req, rec = newAuthRequest(http.MethodGet, statsPath, teacherTkn)
		deps.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusGone, rec.Code)
	})
}

func TestAttendanceAPI_scanRejections(t *testing.T) {
	deps := initTestServer(t)

	teacherUsr := createTestUser(t, deps.usrRepo, "Mr. Kalala", "kalala", "kalala@test.cd", "", user.TeacherRoles)
	studentUsr := createTestUser(t, deps.usrRepo, "Amani K", "amani1", "amani@test.cd", "", user.StudentRoles)
	strayUsr := createTestUser(t, deps.usrRepo, "No Profile", "stray1", "stray@test.cd", "", user.StudentRoles)
	enrolTestStudent(t, deps.stuRepo, studentUsr, "reg001")

	studentTkn := getToken(t, studentUsr)

	gen := openSession(t, deps, getToken(t, teacherUsr))

	tests := []httpTest{
		{
			name:     "unauthenticated",
			body:     scanBody(t, gen.EncodedPayload, testClassLocation),
			wantCode: http.StatusUnauthorized,
			wantData: marshallObj(t, errMissingToken),
		},
		{
			name:     "teachers cannot scan",
			body:     scanBody(t, gen.EncodedPayload, testClassLocation),
			token:    getToken(t, teacherUsr),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "malformed payload",
			body:     scanBody(t, "!!not-a-payload!!", testClassLocation),
			token:    studentTkn,
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{Error: attendance.ErrMalformedPayload.Error()}),
		},
		{
			name:     "unknown session",
			body:     scanBody(t, `{"session_id":"11111111-2222-3333-4444-555555555555"}`, testClassLocation),
			token:    studentTkn,
			wantCode: http.StatusGone,
			wantData: marshallObj(t, httpErr{Error: attendance.ErrSessionExpired.Error()}),
		},
		{
			name:     "out of range",
			body:     scanBody(t, gen.EncodedPayload, testFarLocation),
			token:    studentTkn,
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: attendance.ErrOutOfRange.Error()}),
		},
		{
			name:     "no student profile",
			body:     scanBody(t, gen.EncodedPayload, testClassLocation),
			token:    getToken(t, strayUsr),
			wantCode: http.StatusNotFound,
			wantData: marshallObj(t, httpErr{Error: attendance.ErrStudentUnknown.Error()}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/scan", tt.token, tt.body)
			deps.server.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantData != nil {
				assert.JSONEq(t, string(tt.wantData), rec.Body.String())
			}
		})
	}

	// none of the rejected scans left a record behind
	records, err := deps.recRepo.FilterRecords(attendance.RecordFilter{SessionID: gen.SessionID})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAttendanceAPI_manualRecords(t *testing.T) {
	deps := initTestServer(t)

	adminUsr := createTestUser(t, deps.usrRepo, "Admin", "mkubwa", "admin@test.cd", "", user.AdminRoles)
	studentUsr := createTestUser(t, deps.usrRepo, "Amani K", "amani1", "amani@test.cd", "", user.StudentRoles)
	stu := enrolTestStudent(t, deps.stuRepo, studentUsr, "reg001")

	adminTkn := getToken(t, adminUsr)

	// create
	body := marshallObj(t, attendance.NewRecord{
		StudentID:   stu.ID,
		SubjectCode: "phy101",
		ClassName:   "S5 MathPhys",
		Status:      attendance.StatusLate,
	})
	req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/records", adminTkn, body)
	deps.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created attendance.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, attendance.MarkedViaManual, created.MarkedVia)
	assert.Equal(t, attendance.StatusLate, created.Status)

	// invalid status rejected
	body = marshallObj(t, attendance.NewRecord{
		StudentID:   stu.ID,
		SubjectCode: "phy101",
		ClassName:   "S5 MathPhys",
		Status:      "asleep",
	})
	req, rec = newAuthRequest(http.MethodPost, "/v1/attendance/records", adminTkn, body)
	deps.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// retrieve
	req, rec = newAuthRequest(http.MethodGet, "/v1/attendance/records/"+created.ID, adminTkn)
	deps.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// correct status
	body = marshallObj(t, attendance.UpdateRecord{Status: attendance.StatusPresent})
	req, rec = newAuthRequest(http.MethodPut, "/v1/attendance/records/"+created.ID, adminTkn, body)
	deps.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated attendance.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, attendance.StatusPresent, updated.Status)

	// filter by subject
	req, rec = newAuthRequest(http.MethodGet, "/v1/attendance/records?subject_code=phy101", adminTkn)
	deps.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var records []attendance.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	assert.Len(t, records, 1)

	// destroy
	req, rec = newAuthRequest(http.MethodDelete, fmt.Sprintf("/v1/attendance/records?id=%s", created.ID), adminTkn)
	deps.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req, rec = newAuthRequest(http.MethodGet, "/v1/attendance/records/"+created.ID, adminTkn)
	deps.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
