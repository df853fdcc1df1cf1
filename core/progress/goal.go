package progress

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/hifdh/core"
	"github.com/trezcool/hifdh/core/datekey"
)

var ErrNoGoal = errors.New("no weekly goal to complete")

// GoalState is the lifecycle state of a weekly goal.
type GoalState int

const (
	NoGoal GoalState = iota
	GoalInProgress
	GoalCompleted
)

func (s GoalState) String() string {
	switch s {
	case GoalInProgress:
		return "in_progress"
	case GoalCompleted:
		return "completed"
	default:
		return "no_goal"
	}
}

// Goal is a weekly goal and its bookkeeping.
// The zero value is NoGoal.
type Goal struct {
	Text             string `json:"weekly_goal"`
	WeekKey          string `json:"weekly_goal_week_key,omitempty"`
	StartDateKey     string `json:"weekly_goal_start_date_key,omitempty"`
	CompletedDateKey string `json:"weekly_goal_completed_date_key,omitempty"`
	DurationDays     *int   `json:"weekly_goal_duration_days,omitempty"` // set once completed
}

func (g Goal) State() GoalState {
	switch {
	case g.Text == "":
		return NoGoal
	case g.CompletedDateKey != "":
		return GoalCompleted
	default:
		return GoalInProgress
	}
}

func (g Goal) Completed() bool { return g.State() == GoalCompleted }

// Next returns the goal after a submission of text on dateKey:
// - empty text clears the goal,
// - a different text starts a new goal on dateKey,
// - the same text keeps the goal as it is.
func (g Goal) Next(text, dateKey string) (Goal, error) {
	text = core.CleanString(text)
	if text == "" {
		return Goal{}, nil
	}

	if text != g.Text {
		weekKey, err := datekey.WeekKey(dateKey)
		if err != nil {
			return Goal{}, err
		}
		return Goal{Text: text, WeekKey: weekKey, StartDateKey: dateKey}, nil
	}

	// records written before the start date was tracked
	if g.StartDateKey == "" {
		weekKey, err := datekey.WeekKey(dateKey)
		if err != nil {
			return Goal{}, err
		}
		g.StartDateKey = dateKey
		g.WeekKey = weekKey
	}
	return g, nil
}

// Complete marks the goal as completed on dateKey and computes its duration.
// Completing an already completed goal leaves it untouched.
func (g Goal) Complete(dateKey string) (Goal, error) {
	switch g.State() {
	case NoGoal:
		return g, ErrNoGoal
	case GoalCompleted:
		return g, nil
	}

	start := g.StartDateKey
	if start == "" {
		start = dateKey
		g.StartDateKey = dateKey
	}
	if g.WeekKey == "" {
		weekKey, err := datekey.WeekKey(start)
		if err != nil {
			return g, err
		}
		g.WeekKey = weekKey
	}

	days, err := datekey.DaysBetween(start, dateKey)
	if err != nil {
		return g, err
	}
	if days < 0 {
		days = 0
	}
	g.CompletedDateKey = dateKey
	g.DurationDays = &days
	return g, nil
}

// Status is the human readable state of the goal.
func (g Goal) Status() string {
	switch g.State() {
	case GoalCompleted:
		days := 0
		if g.DurationDays != nil {
			days = *g.DurationDays
		}
		unit := "days"
		if days == 1 {
			unit = "day"
		}
		return fmt.Sprintf("Completed in %d %s", days, unit)
	case GoalInProgress:
		return g.Text
	default:
		return "No goal set"
	}
}
