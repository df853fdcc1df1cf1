package progress

import (
	"sort"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/hifdh/core"
	"github.com/trezcool/hifdh/core/datekey"
)

var (
	dateKeyTag  = "datekey"
	dateKeyText = "date must be formatted YYYY-MM-DD"
)

// InitValidators registers the progress validation tags and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(dateKeyTag, dateKeyValidation)
	core.RegisterCustomTranslation(validate, translator, dateKeyTag, dateKeyText)
}

func dateKeyValidation(fl validator.FieldLevel) bool {
	return datekey.Valid(fl.Field().String())
}

// sortLogs orders logs by date key, latest first. Date keys sort lexically.
func sortLogs(logs []LogEntry) {
	sort.SliceStable(logs, func(i, j int) bool { return logs[i].DateKey > logs[j].DateKey })
}
