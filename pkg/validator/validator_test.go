package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

type subscribePayload struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
	P256dh   string `json:"p256dh" validate:"required"`
	Auth     string `json:"auth" validate:"required"`
}

type quietHoursPayload struct {
	Start *string `json:"quiet_hours_start" validate:"omitempty,timeofday"`
	End   *string `json:"quiet_hours_end" validate:"omitempty,timeofday"`
}

func TestValidateStructSuccess(t *testing.T) {
	payload := subscribePayload{
		Endpoint: "https://push.example.com/send/abc",
		P256dh:   "key",
		Auth:     "secret",
	}

	if err := ValidateStruct(payload); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStructFailures(t *testing.T) {
	payload := subscribePayload{
		Endpoint: "not a url",
	}

	err := ValidateStruct(payload)
	if err == nil {
		t.Fatal("expected validation error")
	}

	vErrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	if len(vErrs) != 3 {
		t.Fatalf("expected 3 validation errors, got %d", len(vErrs))
	}

	foundEndpoint := false
	for _, v := range vErrs {
		if v.Field == "endpoint" && v.Tag == "url" {
			foundEndpoint = true
		}
	}

	if !foundEndpoint {
		t.Fatal("expected endpoint field to be present in validation errors")
	}
}

func TestTimeOfDayRule(t *testing.T) {
	valid := "22:30"
	withSeconds := "06:00:00"
	if err := ValidateStruct(quietHoursPayload{Start: &valid, End: &withSeconds}); err != nil {
		t.Fatalf("expected valid times, got %v", err)
	}

	if err := ValidateStruct(quietHoursPayload{}); err != nil {
		t.Fatalf("expected nil pointers to pass, got %v", err)
	}

	invalid := "25:99"
	if err := ValidateStruct(quietHoursPayload{Start: &invalid}); err == nil {
		t.Fatal("expected invalid time to fail")
	}
}

func TestParseTimeOfDay(t *testing.T) {
	parsed, ok := ParseTimeOfDay(" 07:15 ")
	if !ok {
		t.Fatal("expected HH:MM to parse")
	}
	if parsed.Hour() != 7 || parsed.Minute() != 15 {
		t.Fatalf("unexpected parse result %v", parsed)
	}

	if _, ok := ParseTimeOfDay("noon"); ok {
		t.Fatal("expected free text to be rejected")
	}
}

func TestRegisterValidation(t *testing.T) {
	err := RegisterValidation("vapidsubject", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "mailto:ops@example.com"
	})
	if err != nil {
		t.Fatalf("register validation: %v", err)
	}

	type custom struct {
		Value string `validate:"vapidsubject"`
	}

	if err := ValidateStruct(custom{Value: "mailto:ops@example.com"}); err != nil {
		t.Fatalf("expected validation to pass, got %v", err)
	}
	if err := ValidateStruct(custom{Value: "other"}); err == nil {
		t.Fatal("expected validation to fail for non-matching value")
	}
}
