package progress

// Stored field names. They are shared by every store so merge writes name the same fields
// whether they land in a document or a table row.
const (
	// log entry
	FieldDateKey           = "dateKey"
	FieldSabak             = "sabak"
	FieldSabakDhor         = "sabakDhor"
	FieldDhor              = "dhor"
	FieldSabakDhorMistakes = "sabakDhorMistakes"
	FieldDhorMistakes      = "dhorMistakes"
	FieldGoalCompleted     = "weeklyGoalCompleted"
	FieldUpdatedBy         = "updatedBy"
	FieldUpdatedByEmail    = "updatedByEmail"
	FieldCreatedAt         = "createdAt"

	// snapshot (user record)
	FieldCurrentSabak             = "currentSabak"
	FieldCurrentSabakDhor         = "currentSabakDhor"
	FieldCurrentDhor              = "currentDhor"
	FieldCurrentSabakDhorMistakes = "currentSabakDhorMistakes"
	FieldCurrentDhorMistakes      = "currentDhorMistakes"
	FieldLastUpdatedBy            = "lastUpdatedBy"
	FieldUpdatedAt                = "updatedAt"

	// weekly goal, on both
	FieldGoal                 = "weeklyGoal"
	FieldGoalWeekKey          = "weeklyGoalWeekKey"
	FieldGoalStartDateKey     = "weeklyGoalStartDateKey"
	FieldGoalCompletedDateKey = "weeklyGoalCompletedDateKey"
	FieldGoalDurationDays     = "weeklyGoalDurationDays"
)

var (
	goalFields = []string{
		FieldGoal, FieldGoalWeekKey, FieldGoalStartDateKey, FieldGoalCompletedDateKey, FieldGoalDurationDays,
	}

	// LogSubmitFields are written to the log entry by a submission.
	LogSubmitFields = append([]string{
		FieldDateKey, FieldCreatedAt, FieldUpdatedBy, FieldUpdatedByEmail,
		FieldSabak, FieldSabakDhor, FieldDhor, FieldSabakDhorMistakes, FieldDhorMistakes,
		FieldGoalCompleted,
	}, goalFields...)

	// LogGoalFields are written to the log entry by a goal completion.
	LogGoalFields = append([]string{FieldUpdatedBy, FieldUpdatedByEmail, FieldGoalCompleted}, goalFields...)

	// SnapshotSubmitFields are written to the user record by a submission.
	SnapshotSubmitFields = append([]string{
		FieldCurrentSabak, FieldCurrentSabakDhor, FieldCurrentDhor,
		FieldCurrentSabakDhorMistakes, FieldCurrentDhorMistakes,
		FieldLastUpdatedBy, FieldUpdatedAt,
	}, goalFields...)

	// SnapshotGoalFields are written to the user record by a goal completion.
	SnapshotGoalFields = append([]string{FieldLastUpdatedBy, FieldUpdatedAt}, goalFields...)

	// AllLogFields and AllSnapshotFields name every stored field; they are used to copy whole records.
	AllLogFields      = LogSubmitFields
	AllSnapshotFields = SnapshotSubmitFields
)

func mergeGoalField(dst *Goal, src Goal, field string) bool {
	switch field {
	case FieldGoal:
		dst.Text = src.Text
	case FieldGoalWeekKey:
		dst.WeekKey = src.WeekKey
	case FieldGoalStartDateKey:
		dst.StartDateKey = src.StartDateKey
	case FieldGoalCompletedDateKey:
		dst.CompletedDateKey = src.CompletedDateKey
	case FieldGoalDurationDays:
		dst.DurationDays = copyInt(src.DurationDays)
	default:
		return false
	}
	return true
}

// MergeLog copies the named fields of src onto dst. Other fields of dst are left untouched.
func MergeLog(dst *LogEntry, src LogEntry, fields []string) {
	for _, f := range fields {
		if mergeGoalField(&dst.Goal, src.Goal, f) {
			continue
		}
		switch f {
		case FieldDateKey:
			dst.DateKey = src.DateKey
		case FieldSabak:
			dst.Metrics.Sabak = src.Metrics.Sabak
		case FieldSabakDhor:
			dst.Metrics.SabakDhor = src.Metrics.SabakDhor
		case FieldDhor:
			dst.Metrics.Dhor = src.Metrics.Dhor
		case FieldSabakDhorMistakes:
			dst.Metrics.SabakDhorMistakes = src.Metrics.SabakDhorMistakes
		case FieldDhorMistakes:
			dst.Metrics.DhorMistakes = src.Metrics.DhorMistakes
		case FieldGoalCompleted:
			dst.GoalCompleted = src.GoalCompleted
		case FieldUpdatedBy:
			dst.UpdatedBy = src.UpdatedBy
		case FieldUpdatedByEmail:
			dst.UpdatedByEmail = src.UpdatedByEmail
		case FieldCreatedAt:
			dst.CreatedAt = src.CreatedAt
		}
	}
}

// MergeSnapshot copies the named fields of src onto dst. Other fields of dst are left untouched.
func MergeSnapshot(dst *Snapshot, src Snapshot, fields []string) {
	for _, f := range fields {
		if mergeGoalField(&dst.Goal, src.Goal, f) {
			continue
		}
		switch f {
		case FieldCurrentSabak:
			dst.Current.Sabak = src.Current.Sabak
		case FieldCurrentSabakDhor:
			dst.Current.SabakDhor = src.Current.SabakDhor
		case FieldCurrentDhor:
			dst.Current.Dhor = src.Current.Dhor
		case FieldCurrentSabakDhorMistakes:
			dst.Current.SabakDhorMistakes = src.Current.SabakDhorMistakes
		case FieldCurrentDhorMistakes:
			dst.Current.DhorMistakes = src.Current.DhorMistakes
		case FieldLastUpdatedBy:
			dst.LastUpdatedBy = src.LastUpdatedBy
		case FieldUpdatedAt:
			dst.UpdatedAt = src.UpdatedAt
		}
	}
}

func copyInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}
