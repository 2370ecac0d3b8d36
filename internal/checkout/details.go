package checkout

import (
	"errors"
	"reflect"
	"regexp"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

// States lists the delivery states accepted at checkout.
var States = []string{
	"Andhra Pradesh", "Arunachal Pradesh", "Assam", "Bihar", "Chhattisgarh",
	"Goa", "Gujarat", "Haryana", "Himachal Pradesh", "Jharkhand", "Karnataka",
	"Kerala", "Madhya Pradesh", "Maharashtra", "Manipur", "Meghalaya",
	"Mizoram", "Nagaland", "Odisha", "Punjab", "Rajasthan", "Sikkim",
	"Tamil Nadu", "Telangana", "Tripura", "Uttar Pradesh", "Uttarakhand",
	"West Bengal",
}

var (
	phonePattern   = regexp.MustCompile(`^\d{10}$`)
	emailPattern   = regexp.MustCompile(`\S+@\S+\.\S+`)
	pincodePattern = regexp.MustCompile(`^\d{6}$`)
)

// CustomerDetails are collected fresh for every checkout.
type CustomerDetails struct {
	FullName string `json:"fullName" validate:"required"`
	Phone    string `json:"phone" validate:"required,phone"`
	Email    string `json:"email" validate:"required,basic_email"`
	Address  string `json:"address" validate:"required"`
	City     string `json:"city" validate:"required"`
	State    string `json:"state" validate:"required,state"`
	Pincode  string `json:"pincode" validate:"required,pincode"`
}

func (d CustomerDetails) trimmed() CustomerDetails {
	return CustomerDetails{
		FullName: strings.TrimSpace(d.FullName),
		Phone:    strings.TrimSpace(d.Phone),
		Email:    strings.TrimSpace(d.Email),
		Address:  strings.TrimSpace(d.Address),
		City:     strings.TrimSpace(d.City),
		State:    strings.TrimSpace(d.State),
		Pincode:  strings.TrimSpace(d.Pincode),
	}
}

// ShippingAddress joins the address lines for notifications.
func (d CustomerDetails) ShippingAddress() string {
	return d.Address + ", " + d.City + ", " + d.State + " - " + d.Pincode
}

var fieldLabels = map[string]string{
	"fullName": "Full name",
	"phone":    "Phone number",
	"email":    "Email",
	"address":  "Address",
	"city":     "City",
	"state":    "State",
	"pincode":  "Pincode",
}

var patternMessages = map[string]string{
	"phone":       "Phone number must be 10 digits",
	"basic_email": "Email is invalid",
	"state":       "State is invalid",
	"pincode":     "Pincode must be 6 digits",
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	must(v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	}))
	must(v.RegisterValidation("basic_email", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	}))
	must(v.RegisterValidation("pincode", func(fl validator.FieldLevel) bool {
		return pincodePattern.MatchString(fl.Field().String())
	}))
	must(v.RegisterValidation("state", func(fl validator.FieldLevel) bool {
		return slices.Contains(States, fl.Field().String())
	}))
	return v
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// validateDetails returns the trimmed details and a message per invalid
// field. A blank field reports "<Label> is required"; a malformed one
// reports the pattern message.
func validateDetails(v *validator.Validate, d CustomerDetails) (CustomerDetails, map[string]string, error) {
	d = d.trimmed()
	err := v.Struct(d)
	if err == nil {
		return d, nil, nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return d, nil, err
	}
	fields := make(map[string]string, len(ves))
	for _, fe := range ves {
		if fe.Tag() == "required" {
			fields[fe.Field()] = fieldLabels[fe.Field()] + " is required"
			continue
		}
		fields[fe.Field()] = patternMessages[fe.Tag()]
	}
	return d, fields, nil
}
