package models

import "time"

// Doctor is a master-data record visited by medical representatives.
// AssignedMR, when set, scopes the doctor to one rep's personal roster;
// a nil value keeps the doctor on the shared admin roster. Many visit
// reports may reference the same doctor either way.
type Doctor struct {
	ID             string    `db:"id" json:"id"`
	FullName       string    `db:"full_name" json:"full_name"`
	Qualification  string    `db:"qualification" json:"qualification"`
	Specialization string    `db:"specialization" json:"specialization"`
	Place          string    `db:"place" json:"place"`
	Phone          string    `db:"phone" json:"phone"`
	Email          string    `db:"email" json:"email"`
	AssignedMR     *string   `db:"assigned_mr" json:"assigned_mr,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// DoctorFilter captures listing criteria for the doctor roster.
type DoctorFilter struct {
	AssignedMR     *string
	IncludeShared  bool
	Specialization string
	Search         string
	Page           int
	PageSize       int
}
