package account

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is used to parse numbers given without a country code
const DefaultPhoneRegion = "US"

// bcrypt ignores anything past 72 bytes
const maxPasswordLength = 72

// requireParams returns ErrParameterRequired for the first blank value.
// pairs are field name, value.
func requireParams(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return ErrParameterRequired(pairs[i])
		}
	}
	return nil
}

// validationFailed converts ozzo errors into a rich validation error
func validationFailed(err error, message string) error {
	if err == nil {
		return nil
	}
	return goerrors.FromOzzoValidation(err, message).
		WithTextCode(TextCodeValidationFailed).
		WithCode(goerrors.CodeBadRequest)
}

func validateEmail(email string) error {
	return validation.Validate(email, validation.Required, is.EmailFormat)
}

func validatePassword(password string) error {
	return validation.Validate(password, validation.Required, validation.Length(1, maxPasswordLength))
}

func validateRoles(roles []string) error {
	return validation.Validate(roles, validation.Each(validation.By(func(value interface{}) error {
		raw, _ := value.(string)
		if _, ok := ParseRole(raw); !ok {
			return validation.NewError("validation_role_invalid", "must be one of "+strings.Join(Roles(GetAllRoles()).Strings(), ", "))
		}
		return nil
	})))
}

// NormalizePhone parses phone and returns its E.164 form. An empty input
// stays empty.
func NormalizePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", nil
	}

	num, err := phonenumbers.Parse(phone, DefaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", validationFailed(validation.Errors{
			"phone_number": validation.NewError("validation_phone_invalid", "must be a valid phone number"),
		}, "invalid phone number")
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func parseRoles(raw []string) Roles {
	roles := make(Roles, 0, len(raw))
	for _, r := range raw {
		if role, ok := ParseRole(r); ok {
			roles = append(roles, role)
		}
	}
	return roles.Normalize()
}
