package model

import "time"

// Student is an enrolled student. Only the fields the cards depend on are kept.
type Student struct {
	ID        int       `json:"id"`
	NIS       string    `json:"nis"`
	Name      string    `json:"name"`
	ClassID   int       `json:"class_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EnrollStudentRequest is the payload for adding a student to a class.
type EnrollStudentRequest struct {
	NIS  string `json:"nis" binding:"required,min=4,max=20"`
	Name string `json:"name" binding:"required,min=2,max=100"`
}
