package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/meetingapp/backend/internal/models"
)

const dateLayout = "02 Jan 2006 15:04 MST"

var bodyTemplate = template.Must(template.New("notification").Funcs(template.FuncMap{
	"date": func(t time.Time) string { return t.UTC().Format(dateLayout) },
}).Parse(`<html><body>
<p>Hello {{.Name}},</p>
{{- if eq .Kind "welcome"}}
<p>Your account has been created. You can now schedule meetings and share documents.</p>
{{- else}}
<p>{{.Lead}}</p>
<table>
<tr><td>Title</td><td>{{.Meeting.Title}}</td></tr>
{{- with .Meeting.Description}}
<tr><td>Description</td><td>{{.}}</td></tr>
{{- end}}
<tr><td>Starts</td><td>{{date .Meeting.StartDate}}</td></tr>
<tr><td>Ends</td><td>{{date .Meeting.EndDate}}</td></tr>
</table>
{{- end}}
</body></html>`))

type bodyData struct {
	Notification
	Lead string
}

// Render builds the email for n.
func Render(n Notification) (Message, error) {
	var subject, lead string
	switch n.Kind {
	case models.NotificationWelcome:
		subject = "Welcome to Meeting Manager"
	case models.NotificationMeetingCreated, models.NotificationMeetingUpdated, models.NotificationMeetingCancelled:
		if n.Meeting == nil {
			return Message{}, fmt.Errorf("%s notification without meeting", n.Kind)
		}
		verb := map[models.NotificationKind]string{
			models.NotificationMeetingCreated:   "created",
			models.NotificationMeetingUpdated:   "updated",
			models.NotificationMeetingCancelled: "cancelled",
		}[n.Kind]
		subject = fmt.Sprintf("Meeting %s: %s", verb, n.Meeting.Title)
		lead = fmt.Sprintf("Your meeting has been %s.", verb)
	default:
		return Message{}, fmt.Errorf("unknown notification kind %q", n.Kind)
	}

	var buf bytes.Buffer
	if err := bodyTemplate.Execute(&buf, bodyData{Notification: n, Lead: lead}); err != nil {
		return Message{}, fmt.Errorf("render %s email: %w", n.Kind, err)
	}
	return Message{To: n.Email, Subject: subject, HTML: buf.String()}, nil
}
