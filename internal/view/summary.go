package view

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"
	"github.com/stemsi/classcard/internal/model"
)

// ClassRecord is the data a summary card is rendered from.
// It is owned by the caller and only read during a render.
type ClassRecord struct {
	Name         string `json:"name"`
	StudentCount int    `json:"student_count"`
}

// FromSummary builds a card record from a stored class summary.
func FromSummary(s model.ClassSummary) ClassRecord {
	return ClassRecord{Name: s.Name, StudentCount: s.StudentCount}
}

// FromSummaries converts summaries in order.
func FromSummaries(summaries []model.ClassSummary) []ClassRecord {
	recs := make([]ClassRecord, 0, len(summaries))
	for _, s := range summaries {
		recs = append(recs, FromSummary(s))
	}
	return recs
}

// peopleIcon is the marker shown before the student count.
const peopleIcon = `<svg class="class-summary__icon" xmlns="http://www.w3.org/2000/svg" width="16" height="16" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" aria-hidden="true">` +
	`<path d="M16 21v-2a4 4 0 0 0-4-4H6a4 4 0 0 0-4 4v2"/><circle cx="9" cy="7" r="4"/>` +
	`<path d="M22 21v-2a4 4 0 0 0-3-3.87"/><path d="M16 3.13a4 4 0 0 1 0 7.75"/></svg>`

// StudentNoun returns "student" for exactly one student and "students" otherwise.
func StudentNoun(n int) string {
	if n == 1 {
		return "student"
	}
	return "students"
}

// StudentCountLabel formats a count with its noun, e.g. "24 students".
func StudentCountLabel(n int) string {
	return strconv.Itoa(n) + " " + StudentNoun(n)
}

// SummaryView renders the summary card for a class: the name as a heading
// and a people icon followed by the student count.
//
// Values are rendered as given. An empty name produces an empty heading and a
// negative count still renders as "<n> students".
func SummaryView(rec ClassRecord) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, summaryHTML(rec))
		return err
	})
}

func summaryHTML(rec ClassRecord) string {
	return `<div class="class-summary">` +
		`<h3 class="class-summary__name">` + templ.EscapeString(rec.Name) + `</h3>` +
		`<p class="class-summary__meta">` + peopleIcon +
		`<span class="class-summary__count">` + StudentCountLabel(rec.StudentCount) + `</span>` +
		`</p></div>`
}

// SummaryText is the single-line plain text form of a card, used by the
// terminal renderer and in log lines.
func SummaryText(rec ClassRecord) string {
	return rec.Name + " · " + StudentCountLabel(rec.StudentCount)
}
