package service

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/iliyamo/civic-incident-reporting/internal/apperr"
)

// SignupInput is the body of a signup request.
type SignupInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

func (in *SignupInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
}

// Validate only checks presence; the stores enforce uniqueness.
func (in SignupInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.Email, validation.Required, validation.Length(1, 255)),
		validation.Field(&in.Phone, validation.Required, validation.Length(1, 32)),
		validation.Field(&in.Password, validation.Required),
	)
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in LoginInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required),
		validation.Field(&in.Password, validation.Required),
	)
}

// IncidentInput creates an incident. Coordinates are pointers so that 0 is
// accepted while a missing value is not.
type IncidentInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

func (in IncidentInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Description, validation.Required),
		validation.Field(&in.Latitude, validation.NotNil),
		validation.Field(&in.Longitude, validation.NotNil),
	)
}

// IncidentPatch is a partial update; nil fields are left alone.
type IncidentPatch struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Status      *string  `json:"status"`
}

func (p *IncidentPatch) normalize() {
	p.Title = trimmed(p.Title)
	p.Description = trimmed(p.Description)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

func (p IncidentPatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Title, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&p.Description, validation.NilOrNotEmpty),
	)
}

type CommentInput struct {
	Text string `json:"text"`
}

func (in CommentInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Text, validation.Required),
	)
}

type RedeemInput struct {
	Points int64  `json:"points"`
	Reward string `json:"reward"`
}

func (in RedeemInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Points, validation.Required, validation.Min(int64(1))),
		validation.Field(&in.Reward, validation.Required),
	)
}

type validatable interface{ Validate() error }

// validate runs v.Validate and converts ozzo's field errors into an
// apperr.ValidationError.
func validate(v validatable) error {
	err := v.Validate()
	if err == nil {
		return nil
	}
	var fields validation.Errors
	if errors.As(err, &fields) {
		out := &apperr.ValidationError{Fields: make(map[string]string, len(fields))}
		for k, e := range fields {
			out.Fields[k] = e.Error()
		}
		return out
	}
	return err
}
