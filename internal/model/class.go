package model

import (
	"strconv"
	"time"
)

// Class represents a school class group.
type Class struct {
	ID          int       `json:"id"`
	GradeLevel  string    `json:"grade_level"`
	MajorCode   string    `json:"major_code"`
	GroupNumber int       `json:"group_number"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DisplayName returns the label shown on cards, e.g. "XII TKJ 2".
func (c *Class) DisplayName() string {
	return c.GradeLevel + " " + c.MajorCode + " " + strconv.Itoa(c.GroupNumber)
}

// ClassSummary is a class together with its enrolled-student count.
type ClassSummary struct {
	ClassID      int    `json:"class_id"`
	Name         string `json:"name"`
	StudentCount int    `json:"student_count"`
}

// CreateClassRequest is the payload for creating or updating a class.
type CreateClassRequest struct {
	GradeLevel  string `json:"grade_level" binding:"required,min=1,max=10"`
	MajorCode   string `json:"major_code" binding:"required,min=1,max=10"`
	GroupNumber int    `json:"group_number" binding:"required,min=1"`
}
