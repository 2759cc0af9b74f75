package campaigns

import (
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var hhmmPattern = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)

// NewValidator returns a validator with the campaign tags registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return hhmmPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("iana_tz", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		if name == "" {
			return false
		}
		_, err := time.LoadLocation(name)
		return err == nil
	})
	return v
}

// CreateInput is the payload for a new campaign.
type CreateInput struct {
	Name            string `json:"name" validate:"required,max=200"`
	AudioURL        string `json:"audio_url" validate:"omitempty,url"`
	DailyLimit      int    `json:"daily_limit" validate:"min=1,max=1000"`
	CallWindowStart string `json:"call_window_start" validate:"hhmm"`
	CallWindowEnd   string `json:"call_window_end" validate:"hhmm"`
	Timezone        string `json:"timezone" validate:"iana_tz"`
	ActiveDays      []int  `json:"active_days" validate:"omitempty,dive,min=0,max=6"`
	MaxAttempts     int    `json:"max_attempts" validate:"min=1,max=10"`
}

// ProspectInput is the payload for a new prospect.
type ProspectInput struct {
	FirstName   string `json:"first_name" validate:"required,max=100"`
	LastName    string `json:"last_name" validate:"max=100"`
	CompanyName string `json:"company_name" validate:"max=200"`
	ContactRole string `json:"contact_role" validate:"max=100"`
	Email       string `json:"email" validate:"omitempty,email"`
	PhoneNumber string `json:"phone_number" validate:"required,e164"`
	Notes       string `json:"notes" validate:"max=2000"`
}

func validationMessage(err validator.FieldError) string {
	field := err.Field()
	if i := strings.IndexByte(field, '['); i >= 0 {
		field = field[:i]
	}
	switch field {
	case "DailyLimit":
		if err.Tag() == "min" {
			return "Daily limit must be at least 1"
		}
		return "Daily limit cannot exceed 1000"
	case "MaxAttempts":
		if err.Tag() == "min" {
			return "Max attempts must be at least 1"
		}
		return "Max attempts cannot exceed 10"
	case "CallWindowStart", "CallWindowEnd":
		return "Invalid time format (HH:MM)"
	case "Timezone":
		return "Invalid timezone"
	case "ActiveDays":
		return "Active days must be between 0 and 6"
	case "PhoneNumber":
		if err.Tag() == "required" {
			return "Phone number is required"
		}
		return "Phone number must be in E.164 format"
	}
	switch err.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return "Invalid email"
	case "url":
		return field + " must be a valid URL"
	case "max":
		return field + " must be at most " + err.Param() + " characters"
	}
	return field + " is invalid"
}

func validationMessages(err error) string {
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, validationMessage(fe))
	}
	return strings.Join(msgs, "; ")
}
