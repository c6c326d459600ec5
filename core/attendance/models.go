package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/samkazadi/mahudhurio/core"
)

// Record statuses
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
)

// Record origins
const (
	MarkedViaQR     = "qr"
	MarkedViaManual = "manual"
)

var Statuses = []string{StatusPresent, StatusAbsent, StatusLate}

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat" validate:"lat"`
	Lng float64 `json:"lng" validate:"lng"`
}

// Session is a live, in-memory attendance window for one class meeting.
// All fields are set at creation and immutable; the present set lives in
// the SessionStore and is only reachable through it.
type Session struct {
	ID            string     `json:"id"`
	SubjectCode   string     `json:"subject_code"`
	ClassName     string     `json:"class_name"`
	ClassLocation Coordinate `json:"class_location"`
	OwnerID       string     `json:"owner_id"`
	CreatedAt     time.Time  `json:"created_at"` // UTC
	ExpiresAt     time.Time  `json:"expires_at"` // UTC
}

// ScanPayload is the wire snapshot encoded into the scannable code and
// re-submitted by the student's device. It is untrusted input: only the
// session ID matters, and only by way of the live store lookup. Every
// other field (including the embedded expiry) is display-informational.
type ScanPayload struct {
	SessionID     string     `json:"session_id"`
	SubjectCode   string     `json:"subject_code"`
	ClassName     string     `json:"class_name"`
	ClassLocation Coordinate `json:"class_location"`
	OwnerID       string     `json:"owner_id"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
}

// Record is one durable attendance entry.
type Record struct {
	ID          string      `json:"id"`
	StudentID   string      `json:"student_id"`
	SubjectCode string      `json:"subject_code"`
	ClassName   string      `json:"class_name"`
	SessionID   string      `json:"session_id,omitempty"` // empty for manual records
	Status      string      `json:"status"`
	MarkedVia   string      `json:"marked_via"`
	Location    *Coordinate `json:"location,omitempty"` // as reported by the scanning device
	CreatedAt   time.Time   `json:"created_at"`         // UTC
}

// NewSession contains information needed to open an attendance session.
type NewSession struct {
	SubjectCode   string      `json:"subject_code" validate:"required"`
	ClassName     string      `json:"class_name" validate:"required"`
	ClassLocation *Coordinate `json:"class_location" validate:"required"`
	Duration      int         `json:"duration" validate:"omitempty,gt=0"` // seconds; defaults server-side
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.SubjectCode = core.CleanString(ns.SubjectCode, true /* lower */)
	ns.ClassName = core.CleanString(ns.ClassName)
	return validate.Struct(ns)
}

// GeneratedSession is returned to the owning teacher on session creation.
type GeneratedSession struct {
	SessionID      string    `json:"session_id"`
	EncodedPayload string    `json:"encoded_payload"`
	ExpiresAt      time.Time `json:"expires_at"`
	Duration       int       `json:"duration"` // seconds
}

// ScanRequest is a student's check-in submission.
type ScanRequest struct {
	Payload  string      `json:"payload" validate:"required"`
	Location *Coordinate `json:"location" validate:"required"`
}

func (sc *ScanRequest) Validate(validate *validator.Validate) error {
	sc.Payload = core.CleanString(sc.Payload)
	return validate.Struct(sc)
}

// ScanResult confirms a committed check-in.
type ScanResult struct {
	Status      string    `json:"status"`
	StudentName string    `json:"student_name"`
	SubjectCode string    `json:"subject_code"`
	Timestamp   time.Time `json:"timestamp"`
}

// PresentStudent is a present-set entry resolved to a display profile.
type PresentStudent struct {
	UserID string `json:"user_id"`
	RegNo  string `json:"reg_no"`
	Name   string `json:"name"`
}

// SessionStats is the owner's read-only snapshot of a live session.
type SessionStats struct {
	SessionID       string           `json:"session_id"`
	SubjectCode     string           `json:"subject_code"`
	ClassName       string           `json:"class_name"`
	ClassLocation   Coordinate       `json:"class_location"`
	TotalPresent    int              `json:"total_present"`
	TimeRemaining   int              `json:"time_remaining"` // seconds
	IsExpired       bool             `json:"is_expired"`
	PresentStudents []PresentStudent `json:"present_students"`
}

// NewRecord contains information needed to create a manual attendance entry.
type NewRecord struct {
	StudentID   string `json:"student_id" validate:"required"`
	SubjectCode string `json:"subject_code" validate:"required"`
	ClassName   string `json:"class_name" validate:"required"`
	Status      string `json:"status" validate:"required,attstatus"`
}

func (nr *NewRecord) Validate(validate *validator.Validate) error {
	nr.SubjectCode = core.CleanString(nr.SubjectCode, true /* lower */)
	nr.ClassName = core.CleanString(nr.ClassName)
	nr.Status = core.CleanString(nr.Status, true /* lower */)
	return validate.Struct(nr)
}

// UpdateRecord defines what may be corrected on an existing Record.
type UpdateRecord struct {
	Status string `json:"status" validate:"required,attstatus"`
}

func (ur *UpdateRecord) Validate(validate *validator.Validate) error {
	ur.Status = core.CleanString(ur.Status, true /* lower */)
	return validate.Struct(ur)
}

// RecordFilter narrows record queries; fields are ANDed.
type RecordFilter struct {
	StudentID   string    `query:"student_id"`
	SubjectCode string    `query:"subject_code"`
	SessionID   string    `query:"session_id"`
	MarkedVia   string    `query:"marked_via"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (rf *RecordFilter) IsEmpty() bool {
	return rf.StudentID == "" && rf.SubjectCode == "" && rf.SessionID == "" &&
		rf.MarkedVia == "" && rf.CreatedFrom.IsZero() && rf.CreatedTo.IsZero()
}

func (rf *RecordFilter) Clean() {
	rf.StudentID = core.CleanString(rf.StudentID)
	rf.SubjectCode = core.CleanString(rf.SubjectCode, true /* lower */)
	rf.SessionID = core.CleanString(rf.SessionID)
	rf.MarkedVia = core.CleanString(rf.MarkedVia, true /* lower */)
}
