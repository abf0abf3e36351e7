package models

import "time"

// ClinicRole is the clinic-level role stored on remote user records.
type ClinicRole string

// Clinic is the tenant that scopes which users and analyses a session may see.
type Clinic struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Website string `json:"website,omitempty"`
	Address string `json:"address,omitempty"`
}

// User is a clinic staff account as returned by the remote users endpoint.
type User struct {
	ID         int        `json:"id"`
	DocumentID string     `json:"documentId,omitempty"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	Phone      string     `json:"phone,omitempty"`
	Device     string     `json:"device,omitempty"`
	RoleClinic ClinicRole `json:"roleClinic"`
	Blocked    bool       `json:"blocked"`
	Confirmed  bool       `json:"confirmed"`
	Clinic     *Clinic    `json:"clinic,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Version returns the optimistic concurrency token for the record.
func (u User) Version() string {
	if u.UpdatedAt.IsZero() {
		return ""
	}
	return u.UpdatedAt.UTC().Format(time.RFC3339Nano)
}

// ClinicID returns the clinic id or 0 when no clinic is assigned.
func (u User) ClinicID() int {
	if u.Clinic == nil {
		return 0
	}
	return u.Clinic.ID
}

// CreateUserRequest is the admin form payload for new clinic users.
type CreateUserRequest struct {
	Username        string `json:"username" form:"username" validate:"required,min=3"`
	Email           string `json:"email" form:"email" validate:"required,email"`
	Password        string `json:"password" form:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword" validate:"required,eqfield=Password"`
	Phone           string `json:"phone,omitempty" form:"phone"`
	Device          string `json:"device,omitempty" form:"device"`
}

// CreateUserPayload is the body sent to the remote API.
type CreateUserPayload struct {
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	Password   string     `json:"password"`
	Phone      string     `json:"phone,omitempty"`
	Device     string     `json:"device,omitempty"`
	Blocked    bool       `json:"blocked"`
	Confirmed  bool       `json:"confirmed"`
	RoleClinic ClinicRole `json:"roleClinic"`
	Clinic     int        `json:"clinic"`
	Role       int        `json:"role"`
}

// UpdateProfileRequest carries editable profile fields.
type UpdateProfileRequest struct {
	Username   string `json:"username" form:"username" validate:"required,min=3"`
	Email      string `json:"email" form:"email" validate:"required,email"`
	Phone      string `json:"phone,omitempty" form:"phone"`
	DocumentID string `json:"documentId,omitempty" form:"documentId"`
	Device     string `json:"device,omitempty" form:"device"`
}
