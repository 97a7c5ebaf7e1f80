// Package user mirrors users owned by the external identity service. Its
// events are raised by the inbound consumer, never by end users directly.
package user

import "time"

const AggregateType = "user"

const (
	EventRegistered     = "UserRegistered"
	EventProfileUpdated = "UserProfileUpdated"
	EventDeactivated    = "UserDeactivated"
	EventReactivated    = "UserReactivated"
	EventDeleted        = "UserDeleted"
)

const DefaultRole = "member"

type State struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	Deleted   bool      `json:"deleted"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s State) Exists() bool { return s.Version > 0 }

type ProfilePayload struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type ReasonPayload struct {
	Reason string `json:"reason,omitempty"`
}

type RegisterUser struct {
	UserID string
	Email  string
	Name   string
	Role   string
}

type UpdateUserProfile struct {
	UserID string
	Email  *string
	Name   *string
	Role   *string
}

type DeactivateUser struct {
	UserID string
	Reason string
}

type ReactivateUser struct{ UserID string }

type DeleteUser struct {
	UserID string
	Reason string
}

func (c RegisterUser) AggregateID() string      { return c.UserID }
func (c UpdateUserProfile) AggregateID() string { return c.UserID }
func (c DeactivateUser) AggregateID() string    { return c.UserID }
func (c ReactivateUser) AggregateID() string    { return c.UserID }
func (c DeleteUser) AggregateID() string        { return c.UserID }

func (RegisterUser) CommandName() string      { return "RegisterUser" }
func (UpdateUserProfile) CommandName() string { return "UpdateUserProfile" }
func (DeactivateUser) CommandName() string    { return "DeactivateUser" }
func (ReactivateUser) CommandName() string    { return "ReactivateUser" }
func (DeleteUser) CommandName() string        { return "DeleteUser" }
