package admin

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Roles accepted by the backend.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleEmployee   = "employee"
)

// User is an account as returned by the backend.
type User struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	StoreLimit int    `json:"store_limit,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// NewUser is the payload for CreateUser.
type NewUser struct {
	Name       string `json:"name" validate:"required,min=2,max=20"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password,omitempty" validate:"required,min=6"`
	Role       string `json:"role" validate:"required,oneof=super_admin admin employee"`
	StoreLimit int    `json:"store_limit" validate:"min=1,max=1000"`
}

// UserFilters narrows a Users listing. The zero value lists everyone.
type UserFilters struct {
	Role   string `json:"role,omitempty"`
	Search string `json:"search,omitempty"`
}

// Use a single instance of Validate, it caches struct info
var validate = validator.New()

// ValidationError describes the first field of a NewUser that failed
// validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks u before it is sent to CreateUser.
func (u *NewUser) Validate() error {
	return validationError(validate.Struct(u))
}

// ValidateUpdate is like Validate, but the password may be left empty to keep
// the current one.
func (u *NewUser) ValidateUpdate() error {
	if err := validate.StructExcept(u, "Password"); err != nil {
		return validationError(err)
	}
	if err := validate.Var(u.Password, "omitempty,min=6"); err != nil {
		return &ValidationError{Field: "Password", Message: messages["Password"]}
	}
	return nil
}

var messages = map[string]string{
	"Name":       "name must be 2-20 characters",
	"Email":      "email must be a valid address",
	"Password":   "password must be at least 6 characters",
	"Role":       fmt.Sprintf("role must be one of %s, %s, %s", RoleSuperAdmin, RoleAdmin, RoleEmployee),
	"StoreLimit": "store limit must be between 1 and 1000",
}

func validationError(err error) error {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errors.Wrap(err, "admin: validating user")
	}

	field := verrs[0].StructField()
	msg, ok := messages[field]
	if !ok {
		msg = verrs[0].Error()
	}
	return &ValidationError{Field: field, Message: msg}
}
