package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"labbook/pkg/domain"
)

const timeLayout = "2006-01-02 15:04"

// inputLayouts are the accepted forms of --at, --start and start-at values,
// read in local time unless they carry a zone.
var inputLayouts = []string{time.RFC3339, "2006-01-02T15:04", timeLayout, "2006-01-02"}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, domain.ValidationError{Field: "time", Message: "missing time input"}
	}
	for _, layout := range inputLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, domain.ValidationError{Field: "time", Message: "unrecognised time " + raw}
}

// parseIndex turns a 1-based position shown in listings into a slice index.
func parseIndex(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 0, domain.ValidationError{Field: "index", Message: "position must be a positive number: " + raw}
	}
	return n - 1, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func formatHours(d time.Duration) string {
	return strconv.FormatFloat(d.Hours(), 'f', -1, 64) + "h"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func star(b bool) string {
	if b {
		return "*"
	}
	return ""
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func row(w io.Writer, cols ...string) {
	fmt.Fprintln(w, strings.Join(cols, "\t"))
}

func field(w io.Writer, name, value string) {
	fmt.Fprintf(w, "%s:\t%s\n", name, value)
}
