package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/samkazadi/mahudhurio/core"
	"github.com/samkazadi/mahudhurio/core/attendance"
	"github.com/samkazadi/mahudhurio/core/student"
	"github.com/samkazadi/mahudhurio/core/subject"
	"github.com/samkazadi/mahudhurio/core/user"
	emailsvc "github.com/samkazadi/mahudhurio/services/email"
	qrsvc "github.com/samkazadi/mahudhurio/services/qrcode"
	inmemdb "github.com/samkazadi/mahudhurio/storage/database/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func testConfig() *core.Config {
	return &core.Config{
		TestMode:  true,
		AppName:   "Mahudhurio",
		SecretKey: "secret",
		Server: core.ServerConfig{
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Attendance:                core.AttendanceConfig{DefaultSessionDuration: time.Minute},
	}
}

type testDeps struct {
	server   *Server
	store    *attendance.SessionStore
	usrRepo  user.Repository
	stuRepo  student.Repository
	subRepo  subject.Repository
	recRepo  attendance.Repository
	validate *validator.Validate
}

func initTestServer(t *testing.T) testDeps {
	t.Helper()
	conf := testConfig()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("initTestServer() failed: %v", err)
	}
	usrRepo := inmemdb.NewUserRepository(db)
	stuRepo := inmemdb.NewStudentRepository(db)
	subRepo := inmemdb.NewSubjectRepository(db)
	recRepo := inmemdb.NewRecordRepository(db)

	logger := nopLogger{}
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewServiceMock(usrRepo, mailSvc, conf)
	stuSvc := student.NewService(stuRepo)
	subSvc := subject.NewService(subRepo)

	store := attendance.NewSessionStore()
	t.Cleanup(store.Stop)
	attSvc := attendance.NewService(store, recRepo, stuRepo, qrsvc.NewRenderer(), logger, conf)

	validate := validator.New()
	translator := newTestTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)
	user.LoadCommonPasswords(logger)

	server := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		UserSvc:        usrSvc,
		StudentSvc:     stuSvc,
		SubjectSvc:     subSvc,
		AttendanceSvc:  attSvc,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})

	return testDeps{
		server:   server,
		store:    store,
		usrRepo:  usrRepo,
		stuRepo:  stuRepo,
		subRepo:  subRepo,
		recRepo:  recRepo,
		validate: validate,
	}
}

func newTestTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func createTestUser(t *testing.T, repo user.Repository, name, uname, email, pwd string, roles []string) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	active := true
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  &active,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createTestUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(usr)
	if err != nil {
		t.Fatalf("createTestUser() failed: %v", err)
	}
	return usr
}

func enrolTestStudent(t *testing.T, repo student.Repository, usr user.User, regNo string) student.Student {
	t.Helper()
	stu, err := repo.CreateStudent(student.Student{
		UserID:    usr.ID,
		RegNo:     regNo,
		Name:      usr.Name,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("enrolTestStudent() failed: %v", err)
	}
	return stu
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}
