package view

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// SummaryGrid renders one summary card per record, in the given order.
func SummaryGrid(recs []ClassRecord) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if len(recs) == 0 {
			_, err := io.WriteString(w, `<p class="class-summary-grid__empty">No classes yet.</p>`)
			return err
		}

		if _, err := io.WriteString(w, `<section class="class-summary-grid">`); err != nil {
			return err
		}
		for _, rec := range recs {
			if err := SummaryView(rec).Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</section>`)
		return err
	})
}

// Notice renders a short message served in place of a card, e.g. when the
// class does not exist.
func Notice(msg string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<p class="class-summary__notice">`+templ.EscapeString(msg)+`</p>`)
		return err
	})
}

// Page wraps body in a minimal HTML document.
func Page(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		head := `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">` +
			`<meta name="viewport" content="width=device-width, initial-scale=1">` +
			`<title>` + templ.EscapeString(title) + `</title></head><body>`
		if _, err := io.WriteString(w, head); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}
