// Package timeparse turns free-text time expressions ("tomorrow 9am",
// "in 20 minutes", "2026-05-01 18:30") into absolute instants.
package timeparse

import (
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// explicitLayouts are tried before natural-language parsing.
var explicitLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02/01/2006 15:04",
}

var clockLayouts = []string{
	"15:04",
	"3:04pm",
	"3:04 pm",
	"3pm",
	"3 pm",
}

// Resolver resolves time expressions in a fixed location.
type Resolver struct {
	loc    *time.Location
	parser *when.Parser
}

// New creates a Resolver for loc. A nil loc means time.Local.
func New(loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &Resolver{loc: loc, parser: w}
}

// Location returns the zone used for expressions without an offset.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Resolve returns the instant described by text relative to now.
// The boolean is false when nothing in text could be understood as a time.
func (r *Resolver) Resolve(text string, now time.Time) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	now = now.In(r.loc)

	if t, err := time.Parse(time.RFC3339, text); err == nil {
		return t, true
	}
	for _, layout := range explicitLayouts {
		if t, err := time.ParseInLocation(layout, text, r.loc); err == nil {
			return t, true
		}
	}
	if t, ok := r.clockTime(text, now); ok {
		return t, true
	}

	res, err := r.parser.Parse(text, now)
	if err != nil || res == nil {
		return time.Time{}, false
	}
	return res.Time.In(r.loc), true
}

// clockTime handles a bare time of day: today if still ahead, otherwise tomorrow.
func (r *Resolver) clockTime(text string, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(text)
	for _, layout := range clockLayouts {
		c, err := time.Parse(layout, lower)
		if err != nil {
			continue
		}
		t := time.Date(now.Year(), now.Month(), now.Day(), c.Hour(), c.Minute(), 0, 0, r.loc)
		if !t.After(now) {
			t = t.AddDate(0, 0, 1)
		}
		return t, true
	}
	return time.Time{}, false
}
