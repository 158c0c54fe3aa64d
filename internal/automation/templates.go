package automation

import (
	"strings"
	"time"

	"github.com/clinova/dentalsync/internal/appointments"
)

// RenderTemplate substitutes the recognized placeholders with appointment
// fields by literal string replacement. Placeholders that cannot be resolved
// are left as-is so missing data stays visible to the recipient instead of
// being silently blanked.
//
// Recognized placeholders: {nombre}, {fecha}, {hora}, {doctor}, {tratamiento}.
func RenderTemplate(tmpl string, appt appointments.Appointment, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	local := appt.ScheduledAt.In(loc)

	replacements := []struct {
		placeholder string
		value       string
	}{
		{"{nombre}", appt.ContactName},
		{"{fecha}", local.Format("02/01/2006")},
		{"{hora}", local.Format("15:04")},
		{"{doctor}", appt.Doctor},
		{"{tratamiento}", appt.Treatment},
	}

	out := tmpl
	for _, r := range replacements {
		if r.value == "" {
			continue
		}
		out = strings.ReplaceAll(out, r.placeholder, r.value)
	}
	return out
}

// MatchesKeywords reports whether the treatment label contains any of the
// keywords, case-insensitive substring match. An empty keyword set matches
// nothing: a surgery rule without keywords is inert rather than a firehose.
func MatchesKeywords(treatment string, keywords []string) bool {
	lower := strings.ToLower(treatment)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
