package application

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"

	"github.com/viralforge/invoicing-accounts/internal/domain"
)

type RegisterRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Validate reports every failing field at once.
func (r RegisterRequest) Validate() error {
	return validationError(validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required.Error("First name cannot be empty")),
		validation.Field(&r.LastName, validation.Required.Error("Last name cannot be empty")),
		validation.Field(&r.Email,
			validation.Required.Error("Email cannot be empty"),
			is.Email.Error("Invalid email. please enter a valid email address"),
		),
		validation.Field(&r.Password, validation.By(passwordRule)),
	))
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validationError(validation.ValidateStruct(&r,
		validation.Field(&r.Email,
			validation.Required.Error("Email cannot be empty"),
			is.Email.Error("Invalid email. please enter a valid email address"),
		),
		validation.Field(&r.Password, validation.Required.Error("Password cannot be empty")),
	))
}

type ResetPasswordRequest struct {
	Key             string `json:"key"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (r ResetPasswordRequest) Validate() error {
	return validationError(validation.ValidateStruct(&r,
		validation.Field(&r.Key, validation.Required.Error("Key cannot be empty")),
		validation.Field(&r.Password, validation.By(passwordRule)),
		validation.Field(&r.ConfirmPassword, validation.Required.Error("Confirm password cannot be empty")),
	))
}

// AccountView is the account as returned to callers, without the password hash.
type AccountView struct {
	ID          uuid.UUID `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	Title       string    `json:"title,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Enabled     bool      `json:"enabled"`
	NotLocked   bool      `json:"not_locked"`
	UsingMFA    bool      `json:"using_mfa"`
	RoleName    string    `json:"role_name"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
}

func toAccountView(a domain.Account) AccountView {
	perms := a.Permissions
	if perms == nil {
		perms = []string{}
	}
	return AccountView{
		ID:          a.AccountID,
		FirstName:   a.FirstName,
		LastName:    a.LastName,
		Email:       a.Email,
		Phone:       a.Phone,
		Title:       a.Title,
		Bio:         a.Bio,
		ImageURL:    a.ImageURL,
		Enabled:     a.Enabled,
		NotLocked:   a.NonLocked,
		UsingMFA:    a.UsingMFA,
		RoleName:    a.RoleName,
		Permissions: perms,
		CreatedAt:   a.CreatedAt,
	}
}

type RegisterResponse struct {
	Account AccountView `json:"user"`
}

// LoginResponse carries tokens, or MFARequired with no tokens while a code is pending.
type LoginResponse struct {
	Account      AccountView `json:"user"`
	MFARequired  bool        `json:"mfa_required"`
	AccessToken  string      `json:"access_token,omitempty"`
	RefreshToken string      `json:"refresh_token,omitempty"`
}

type RefreshResponse struct {
	Account      AccountView `json:"user"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
}

type VerifyAccountResponse struct {
	Account         AccountView `json:"user"`
	AlreadyVerified bool        `json:"already_verified"`
}
