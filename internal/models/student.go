package models

import "time"

// StudentType records the student's relation to the university; it picks
// which price pair of a course applies.
type StudentType string

const (
	StudentTypeInterno StudentType = "INTERNO"
	StudentTypeExterno StudentType = "EXTERNO"
)

// Student is an enrollable person. A student account shares its id with a
// users row carrying the STUDENT role; ownership checks compare that id
// against the enrollment's estudiante_id.
type Student struct {
	ID             string      `db:"id" json:"id"`
	CI             string      `db:"ci" json:"ci"`
	NombreCompleto string      `db:"nombre_completo" json:"nombre_completo"`
	Email          string      `db:"email" json:"email"`
	Telefono       *string     `db:"telefono" json:"telefono,omitempty"`
	Tipo           StudentType `db:"tipo" json:"tipo"`
	Active         bool        `db:"active" json:"active"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

// StudentFilter captures filtering criteria for listing students.
type StudentFilter struct {
	Tipo      StudentType
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
