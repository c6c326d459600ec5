package attendance

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/samkazadi/mahudhurio/core"
	"github.com/samkazadi/mahudhurio/core/student"
	"github.com/samkazadi/mahudhurio/core/user"
)

var (
	// scan rejection errors; each maps to one specific user-facing reason
	ErrMalformedPayload = errors.New("scanned payload not readable, scan again")
	ErrSessionExpired   = errors.New("session expired or invalid, request a new code")
	ErrOutOfRange       = errors.New("you are too far from the class location")
	ErrAlreadyMarked    = errors.New("attendance already marked for this session")
	ErrStudentUnknown   = errors.New("no student profile found for this account")

	ErrNotSessionOwner = errors.New("session belongs to another teacher")
	ErrRecordNotFound  = errors.New("attendance record not found")
	ErrDuplicateRecord = errors.New("attendance record already exists for this session")
)

type (
	// Repository owns durable attendance records.
	Repository interface {
		CreateRecord(rec Record) (Record, error)
		GetRecordByID(id string) (Record, error)
		// FilterRecords applies AND operation on available RecordFilter fields.
		FilterRecords(filter RecordFilter) ([]Record, error)
		UpdateRecord(rec Record) (Record, error)
		DeleteRecordsByID(ids ...string) error
	}

	// CodeRenderer turns an encoded scan payload into a displayable image.
	CodeRenderer interface {
		Render(payload string, size int) ([]byte, error)
	}

	ServiceInterface interface {
		GenerateSession(ns NewSession, owner user.User) (GeneratedSession, error)
		SessionQR(id string, owner user.User, size int) ([]byte, error)
		SessionStats(id string, owner user.User) (SessionStats, error)
		CloseSession(id string, owner user.User) error
		ProcessScan(sc ScanRequest, scanner user.User) (ScanResult, error)

		CreateRecord(nr NewRecord) (Record, error)
		GetRecord(id string) (Record, error)
		FilterRecords(filter RecordFilter) ([]Record, error)
		UpdateRecordStatus(id string, ur UpdateRecord) (Record, error)
		DeleteRecords(ids ...string) error
	}

	service struct {
		store    *SessionStore
		repo     Repository
		students student.Repository
		renderer CodeRenderer
		logger   core.Logger
		conf     *core.Config
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(
	store *SessionStore,
	repo Repository,
	students student.Repository,
	renderer CodeRenderer,
	logger core.Logger,
	conf *core.Config,
) *service {
	return &service{
		store:    store,
		repo:     repo,
		students: students,
		renderer: renderer,
		logger:   logger,
		conf:     conf,
	}
}

// GenerateSession opens a new attendance window owned by `owner` and returns
// the encoded payload to display as a scannable code. Nothing is persisted:
// the session lives in the store until a scan lands or it expires.
func (svc *service) GenerateSession(ns NewSession, owner user.User) (GeneratedSession, error) {
	if ns.ClassLocation == nil {
		return GeneratedSession{}, core.NewValidationError(errors.New("class location is required"))
	}

	duration := time.Duration(ns.Duration) * time.Second
	if duration <= 0 {
		duration = svc.conf.Attendance.DefaultSessionDuration
	}

	now := nowFunc().UTC()
	sess := Session{
		ID:            uuid.New().String(),
		SubjectCode:   ns.SubjectCode,
		ClassName:     ns.ClassName,
		ClassLocation: *ns.ClassLocation,
		OwnerID:       owner.ID,
		CreatedAt:     now,
		ExpiresAt:     now.Add(duration),
	}
	if err := svc.store.Create(sess); err != nil {
		return GeneratedSession{}, errors.Wrap(err, "registering session")
	}
	svc.store.Schedule(sess.ID, duration)

	payload, err := encodePayload(sess)
	if err != nil {
		svc.store.Delete(sess.ID)
		return GeneratedSession{}, errors.Wrap(err, "encoding payload")
	}

	return GeneratedSession{
		SessionID:      sess.ID,
		EncodedPayload: payload,
		ExpiresAt:      sess.ExpiresAt,
		Duration:       int(duration / time.Second),
	}, nil
}

// SessionQR renders the live session's payload as a PNG image.
func (svc *service) SessionQR(id string, owner user.User, size int) ([]byte, error) {
	sess, err := svc.getOwnedSession(id, owner)
	if err != nil {
		return nil, err
	}
	payload, err := encodePayload(sess)
	if err != nil {
		return nil, errors.Wrap(err, "encoding payload")
	}
	img, err := svc.renderer.Render(payload, size)
	return img, errors.Wrap(err, "rendering code")
}

// SessionStats snapshots a live session for its owner.
func (svc *service) SessionStats(id string, owner user.User) (SessionStats, error) {
	sess, err := svc.getOwnedSession(id, owner)
	if err != nil {
		return SessionStats{}, err
	}
	ids, err := svc.store.Present(id)
	if err != nil {
		return SessionStats{}, err
	}

	present := make([]PresentStudent, 0, len(ids))
	for _, userID := range ids {
		stu, err := svc.students.GetStudentByUserID(userID)
		if err != nil {
			// present set only ever holds students that resolved at scan
			// time; a gap here means the profile was deleted since
			svc.logger.Warn("present student has no profile", userID)
			continue
		}
		present = append(present, PresentStudent{UserID: stu.UserID, RegNo: stu.RegNo, Name: stu.Name})
	}

	remaining := int(sess.ExpiresAt.Sub(nowFunc().UTC()) / time.Second)
	if remaining < 0 {
		remaining = 0
	}
	return SessionStats{
		SessionID:       sess.ID,
		SubjectCode:     sess.SubjectCode,
		ClassName:       sess.ClassName,
		ClassLocation:   sess.ClassLocation,
		TotalPresent:    len(ids),
		TimeRemaining:   remaining,
		IsExpired:       remaining <= 0,
		PresentStudents: present,
	}, nil
}

// CloseSession tears a session down before its natural expiry.
func (svc *service) CloseSession(id string, owner user.User) error {
	if _, err := svc.getOwnedSession(id, owner); err != nil {
		return err
	}
	svc.store.Delete(id)
	return nil
}

// ProcessScan turns a scanned payload + reported location into a committed
// attendance record, or a rejection with a specific reason. Checks run in
// strict order and the first failure wins:
// required fields, payload shape, live session, range, dedup, profile, commit.
//
// The store lookup is the only authority on session validity; the payload's
// embedded expiry is never consulted.
func (svc *service) ProcessScan(sc ScanRequest, scanner user.User) (ScanResult, error) {
	if sc.Payload == "" || sc.Location == nil {
		return ScanResult{}, core.NewValidationError(errors.New("payload and location are required"))
	}

	var payload ScanPayload
	if err := json.Unmarshal([]byte(sc.Payload), &payload); err != nil || payload.SessionID == "" {
		return ScanResult{}, ErrMalformedPayload
	}

	sess, err := svc.store.Get(payload.SessionID)
	if err != nil {
		return ScanResult{}, ErrSessionExpired
	}

	if !WithinRange(*sc.Location, sess.ClassLocation) {
		return ScanResult{}, ErrOutOfRange
	}

	added, err := svc.store.AddPresent(sess.ID, scanner.ID)
	if err != nil {
		// session lapsed between the lookup and the check-and-set
		return ScanResult{}, ErrSessionExpired
	}
	if !added {
		return ScanResult{}, ErrAlreadyMarked
	}

	stu, err := svc.students.GetStudentByUserID(scanner.ID)
	if err != nil {
		svc.store.RemovePresent(sess.ID, scanner.ID)
		if errors.Cause(err) == student.ErrNotFound {
			return ScanResult{}, ErrStudentUnknown
		}
		return ScanResult{}, errors.Wrap(err, "looking up student profile")
	}

	rec, err := svc.repo.CreateRecord(Record{
		ID:          uuid.New().String(),
		StudentID:   stu.ID,
		SubjectCode: sess.SubjectCode,
		ClassName:   sess.ClassName,
		SessionID:   sess.ID,
		Status:      StatusPresent,
		MarkedVia:   MarkedViaQR,
		Location:    sc.Location,
		CreatedAt:   nowFunc().UTC(),
	})
	if err != nil {
		if errors.Cause(err) == ErrDuplicateRecord {
			// DB unique index backstop; the in-memory set missed a past
			// check-in (e.g. after a restart)
			return ScanResult{}, ErrAlreadyMarked
		}
		svc.store.RemovePresent(sess.ID, scanner.ID)
		return ScanResult{}, errors.Wrap(err, "committing attendance record")
	}

	return ScanResult{
		Status:      "success",
		StudentName: stu.Name,
		SubjectCode: sess.SubjectCode,
		Timestamp:   rec.CreatedAt,
	}, nil
}

func (svc *service) CreateRecord(nr NewRecord) (Record, error) {
	stu, err := svc.students.GetStudentByID(nr.StudentID)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return Record{}, ErrStudentUnknown
		}
		return Record{}, errors.Wrap(err, "looking up student")
	}
	return svc.repo.CreateRecord(Record{
		ID:          uuid.New().String(),
		StudentID:   stu.ID,
		SubjectCode: nr.SubjectCode,
		ClassName:   nr.ClassName,
		Status:      nr.Status,
		MarkedVia:   MarkedViaManual,
		CreatedAt:   time.Now().UTC(),
	})
}

func (svc *service) GetRecord(id string) (Record, error) {
	return svc.repo.GetRecordByID(id)
}

func (svc *service) FilterRecords(filter RecordFilter) ([]Record, error) {
	return svc.repo.FilterRecords(filter)
}

func (svc *service) UpdateRecordStatus(id string, ur UpdateRecord) (Record, error) {
	rec, err := svc.repo.GetRecordByID(id)
	if err != nil {
		return Record{}, err
	}
	rec.Status = ur.Status
	return svc.repo.UpdateRecord(rec)
}

func (svc *service) DeleteRecords(ids ...string) error {
	return svc.repo.DeleteRecordsByID(ids...)
}

func (svc *service) getOwnedSession(id string, owner user.User) (Session, error) {
	sess, err := svc.store.Get(id)
	if err != nil {
		return Session{}, err
	}
	if sess.OwnerID != owner.ID && !owner.IsAdmin() {
		return Session{}, ErrNotSessionOwner
	}
	return sess, nil
}

func encodePayload(sess Session) (string, error) {
	data, err := json.Marshal(ScanPayload{
		SessionID:     sess.ID,
		SubjectCode:   sess.SubjectCode,
		ClassName:     sess.ClassName,
		ClassLocation: sess.ClassLocation,
		OwnerID:       sess.OwnerID,
		CreatedAt:     sess.CreatedAt,
		ExpiresAt:     sess.ExpiresAt,
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}
