package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/stemsi/classcard/internal/view"
	"golang.org/x/term"
)

// render-card renders one summary card without the server. Output is plain
// text on a terminal and HTML otherwise, unless -format says which.
func main() {
	name := flag.String("name", "", "Class name")
	students := flag.Int("students", 0, "Number of enrolled students")
	format := flag.String("format", "auto", "Output format: auto, html or text")
	flag.Parse()

	rec := view.ClassRecord{Name: *name, StudentCount: *students}

	if err := render(os.Stdout, rec, *format, term.IsTerminal(int(os.Stdout.Fd()))); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func render(out io.Writer, rec view.ClassRecord, format string, tty bool) error {
	if format == "auto" {
		format = "html"
		if tty {
			format = "text"
		}
	}

	switch format {
	case "text":
		_, err := fmt.Fprintln(out, view.SummaryText(rec))
		return err
	case "html":
		if err := view.SummaryView(rec).Render(context.Background(), out); err != nil {
			return err
		}
		_, err := fmt.Fprintln(out)
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
