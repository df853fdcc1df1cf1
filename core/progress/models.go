package progress

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/hifdh/core"
)

// Metrics are the daily recitation values. Any text is accepted; empty means unset.
type Metrics struct {
	Sabak             string `json:"sabak"`
	SabakDhor         string `json:"sabak_dhor"`
	Dhor              string `json:"dhor"`
	SabakDhorMistakes string `json:"sabak_dhor_mistakes"`
	DhorMistakes      string `json:"dhor_mistakes"`
}

// Snapshot is the copy of the latest submitted values kept on the student's user record.
type Snapshot struct {
	StudentID     string    `json:"student_id"`
	Current       Metrics   `json:"current"`
	Goal          Goal      `json:"goal"`
	LastUpdatedBy string    `json:"last_updated_by,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"` // UTC
}

// LogEntry is the record of one student for one day, keyed by its date key.
type LogEntry struct {
	DateKey        string    `json:"date_key"`
	Metrics        Metrics   `json:"metrics"`
	Goal           Goal      `json:"goal"`
	GoalCompleted  bool      `json:"goal_completed"`
	UpdatedBy      string    `json:"updated_by"`
	UpdatedByEmail string    `json:"updated_by_email"`
	CreatedAt      time.Time `json:"created_at"` // UTC, time of the last write
}

// Submission is one day of progress, as typed in by a student or an admin.
type Submission struct {
	// DateKey defaults to today. Only today and yesterday are accepted.
	DateKey           string `json:"date_key" validate:"omitempty,datekey"`
	Sabak             string `json:"sabak" validate:"max=500,nocontrol"`
	SabakDhor         string `json:"sabak_dhor" validate:"max=500,nocontrol"`
	Dhor              string `json:"dhor" validate:"max=500,nocontrol"`
	SabakDhorMistakes string `json:"sabak_dhor_mistakes" validate:"max=500,nocontrol"`
	DhorMistakes      string `json:"dhor_mistakes" validate:"max=500,nocontrol"`
	WeeklyGoal        string `json:"weekly_goal" validate:"max=1000,nocontrol"`
}

// Validate checks the lengths of the fields. The metrics are stored as typed;
// only the date key and the weekly goal are trimmed.
func (s *Submission) Validate(validate *validator.Validate) error {
	s.DateKey = core.CleanString(s.DateKey)
	s.WeeklyGoal = core.CleanString(s.WeeklyGoal)
	return validate.Struct(s)
}

func (s Submission) Metrics() Metrics {
	return Metrics{
		Sabak:             s.Sabak,
		SabakDhor:         s.SabakDhor,
		Dhor:              s.Dhor,
		SabakDhorMistakes: s.SabakDhorMistakes,
		DhorMistakes:      s.DhorMistakes,
	}
}

// FormSource tells where the values of a Form come from.
type FormSource string

const (
	FromSnapshot FormSource = "snapshot"
	FromLog      FormSource = "log"
	FromNothing  FormSource = "empty"
)

// Form holds the values an edit view starts from.
type Form struct {
	StudentID  string     `json:"student_id"`
	DateKey    string     `json:"date_key"`
	Metrics    Metrics    `json:"metrics"`
	WeeklyGoal string     `json:"weekly_goal"`
	Goal       Goal       `json:"goal"`
	Source     FormSource `json:"source"`
}

// Result is what a submission wrote.
type Result struct {
	Log      LogEntry `json:"log"`
	Snapshot Snapshot `json:"snapshot"`
}

// Overview is the read-only progress page of a student.
type Overview struct {
	StudentID  string     `json:"student_id"`
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	Snapshot   Snapshot   `json:"snapshot"`
	GoalState  string     `json:"goal_state"`
	GoalStatus string     `json:"goal_status"`
	Logs       []LogEntry `json:"logs"`
}
