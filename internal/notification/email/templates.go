package email

import (
	"fmt"
	"html"
)

type alertData struct {
	Heading     string
	AgencyName  string
	LeadSummary string
}

func subjectFor(kind string) (subject, heading string) {
	switch kind {
	case "assignments.lead.assigned":
		return "New lead assigned to you", "You have a new lead"
	case "assignments.expired":
		return "Lead assignment expired", "An assignment expired before you responded"
	default:
		return "Lead marketplace update", "Account update"
	}
}

func renderAlert(data alertData) string {
	return fmt.Sprintf(`<html><body>
<h2>%s</h2>
<p>Hi %s,</p>
<p>%s</p>
<p>Log in to the portal to respond.</p>
</body></html>`,
		html.EscapeString(data.Heading),
		html.EscapeString(data.AgencyName),
		html.EscapeString(data.LeadSummary),
	)
}
