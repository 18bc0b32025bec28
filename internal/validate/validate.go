// Package validate checks decoded request bodies against their struct tags
// and turns the failures into the user facing messages the API returns.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Error carries every failed rule of one body.
type Error struct {
	Issues []string
}

func (e *Error) Error() string {
	return "Validation error: " + strings.Join(e.Issues, ", ")
}

// IsValidation reports whether err came out of Struct.
func IsValidation(err error) bool {
	var verr *Error
	return errors.As(err, &verr)
}

var safePathRe = regexp.MustCompile(`^[a-zA-Z0-9._/-]+$`)

// messages maps "<json field>.<tag>" onto the text shown to the caller.
var messages = map[string]string{
	"command.required":    "Command cannot be empty",
	"command.max":         "Command too long",
	"apiKeys.required":    "apiKeys is required",
	"openai.openai_key":   "OpenAI API key must start with 'sk-'",
	"filePath.required":   "filePath is required",
	"filePath.max":        "filePath must contain at most 500 character(s)",
	"filePath.safepath":   "filePath contains invalid characters",
	"scriptPath.required": "scriptPath is required",
	"scriptPath.max":      "scriptPath must contain at most 500 character(s)",
	"confirmed.required":  "confirmed must be a boolean",
	"query.required":      "query is required",
	"query.max":           "query too long",
}

var (
	once sync.Once
	v    *validator.Validate
)

func engine() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("openai_key", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s == "" || strings.HasPrefix(s, "sk-")
		})
		_ = v.RegisterValidation("safepath", func(fl validator.FieldLevel) bool {
			return safePathRe.MatchString(fl.Field().String())
		})
	})
	return v
}

// Struct validates s and returns *Error listing each violated rule.
func Struct(s any) error {
	err := engine().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate: %w", err)
	}

	out := &Error{}
	for _, fe := range fieldErrs {
		key := fe.Field() + "." + fe.Tag()
		if msg, ok := messages[key]; ok {
			out.Issues = append(out.Issues, msg)
			continue
		}
		out.Issues = append(out.Issues, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return out
}
