package user

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var phonePattern = regexp.MustCompile(`^010-\d{4}-\d{4}$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("phone010", func(fl validator.FieldLevel) bool {
			return phonePattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
			return validRole(Role(fl.Field().String()))
		})
		_ = v.RegisterValidation("gender", func(fl validator.FieldLevel) bool {
			return validGender(Gender(fl.Field().String()))
		})
		validate = v
	})
	return validate
}

func validRole(r Role) bool {
	for _, candidate := range Roles {
		if r == candidate {
			return true
		}
	}
	return false
}

func validGender(g Gender) bool {
	for _, candidate := range Genders {
		if g == candidate {
			return true
		}
	}
	return false
}

// RegisterInput is the payload accepted when a member signs up.
type RegisterInput struct {
	Email         string `json:"email" validate:"required,email"`
	Password      string `json:"password" validate:"required,min=6,max=72"`
	Nickname      string `json:"nickname" validate:"required,max=64"`
	Role          Role   `json:"role" validate:"omitempty,role"`
	Gender        Gender `json:"gender" validate:"omitempty,gender"`
	PhoneNumber   string `json:"phoneNumber" validate:"omitempty,phone010"`
	FrontEndLevel *int   `json:"frontEndLevel" validate:"omitempty,min=0,max=10"`
	BackEndLevel  *int   `json:"backEndLevel" validate:"omitempty,min=0,max=10"`
}

// Validate checks the input against the column rules.
func (in RegisterInput) Validate() error {
	return translate(validatorInstance().Struct(in))
}

// ToUser builds an unsaved user. The password is left for the caller to hash.
func (in RegisterInput) ToUser() User {
	u := User{
		Email:         in.Email,
		Nickname:      in.Nickname,
		Role:          in.Role,
		Gender:        in.Gender,
		PhoneNumber:   in.PhoneNumber,
		FrontEndLevel: DefaultLevel,
		BackEndLevel:  DefaultLevel,
	}
	if in.FrontEndLevel != nil {
		u.FrontEndLevel = *in.FrontEndLevel
	}
	if in.BackEndLevel != nil {
		u.BackEndLevel = *in.BackEndLevel
	}
	u.ApplyDefaults()
	return u
}

// Patch is a partial update of the editable grid cells. Nil fields are left
// unchanged.
type Patch struct {
	Email         *string `json:"email,omitempty" validate:"omitempty,email"`
	Nickname      *string `json:"nickname,omitempty" validate:"omitempty,min=1,max=64"`
	Role          *Role   `json:"role,omitempty" validate:"omitempty,role"`
	Gender        *Gender `json:"gender,omitempty" validate:"omitempty,gender"`
	PhoneNumber   *string `json:"phoneNumber,omitempty" validate:"omitempty"`
	FrontEndLevel *int    `json:"frontEndLevel,omitempty" validate:"omitempty,min=0,max=10"`
	BackEndLevel  *int    `json:"backEndLevel,omitempty" validate:"omitempty,min=0,max=10"`
}

// Validate checks the fields present in the patch.
func (p Patch) Validate() error {
	if err := translate(validatorInstance().Struct(p)); err != nil {
		return err
	}
	// An empty phone number clears the column.
	if p.PhoneNumber != nil && *p.PhoneNumber != "" && !phonePattern.MatchString(*p.PhoneNumber) {
		return &ValidationError{Fields: map[string]string{ColumnPhoneNumber: phoneMessage}}
	}
	return nil
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Email == nil && p.Nickname == nil && p.Role == nil && p.Gender == nil &&
		p.PhoneNumber == nil && p.FrontEndLevel == nil && p.BackEndLevel == nil
}

// Apply writes the patch onto u.
func (p Patch) Apply(u *User) {
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Nickname != nil {
		u.Nickname = *p.Nickname
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Gender != nil {
		u.Gender = *p.Gender
	}
	if p.PhoneNumber != nil {
		u.PhoneNumber = *p.PhoneNumber
	}
	if p.FrontEndLevel != nil {
		u.FrontEndLevel = *p.FrontEndLevel
	}
	if p.BackEndLevel != nil {
		u.BackEndLevel = *p.BackEndLevel
	}
	u.ApplyDefaults()
}

const phoneMessage = "phone number must look like 010-XXXX-XXXX"

// ValidationError lists the rejected fields with a message each.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid user: " + strings.Join(parts, "; ")
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[fe.Field()] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "phone010":
		return phoneMessage
	case "role":
		return fmt.Sprintf("must be one of %v", Roles)
	case "gender":
		return fmt.Sprintf("must be one of %v", Genders)
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "is invalid"
	}
}
