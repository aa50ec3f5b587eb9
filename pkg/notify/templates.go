package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
)

type message struct {
	subject string
	body    string
}

var messages = map[Event]message{
	EventVolunteerAssigned: {
		subject: "New pickup assigned: {{.Date}} at {{.Time}}",
		body: `<p>Hello {{.Name}},</p>
<p>You have been assigned a {{.Type}} on <strong>{{.Date}}</strong> at <strong>{{.Time}}</strong>.</p>
<ul><li>Address: {{.Address}}</li><li>Donor phone: {{.Phone}}</li></ul>
<p>Ask the donor for their verification code when you meet.</p>
<p><a href="{{.FrontendURL}}/volunteer">Open your dashboard</a></p>`,
	},
	EventPickupAssigned: {
		subject: "A volunteer is on the way for your donation",
		body: `<p>Hello {{.Name}},</p>
<p>{{.Volunteer}} will handle your {{.Type}} on <strong>{{.Date}}</strong> at <strong>{{.Time}}</strong>.</p>
<p>Volunteer phone: {{.VolunteerPhone}}</p>`,
	},
	EventCodeIssued: {
		subject: "Your pickup verification code",
		body: `<p>Hello {{.Name}},</p>
<p>Your verification code is <strong>{{.Code}}</strong>.</p>
<p>Share it with the volunteer only when they arrive for the {{.Type}} on {{.Date}} at {{.Time}}.</p>`,
	},
	EventScheduleCancelled: {
		subject: "Schedule cancelled: {{.Date}} at {{.Time}}",
		body: `<p>Hello {{.Name}},</p>
<p>The {{.Type}} on <strong>{{.Date}}</strong> at <strong>{{.Time}}</strong> was cancelled by {{.CancelledBy}}.</p>
{{if .Admin}}<p>Please assign another volunteer: <a href="{{.FrontendURL}}/admin/schedules">schedules</a></p>{{else}}<p>We will contact you to arrange a new volunteer.</p>{{end}}`,
	},
	EventDonationConfirmed: {
		subject: "Your donation has been confirmed",
		body: `<p>Hello {{.Name}},</p>
<p>Thank you! Your donation to <strong>{{.Need}}</strong> has been confirmed.</p>`,
	},
	EventDonationRejected: {
		subject: "Update on your donation",
		body: `<p>Hello {{.Name}},</p>
<p>We could not accept your donation to <strong>{{.Need}}</strong>.</p>
<p>Reason: {{.Reason}}</p>`,
	},
	EventVolunteerApproved: {
		subject: "Your volunteer application was approved",
		body: `<p>Hello {{.Name}},</p>
<p>Welcome aboard! You can now sign in with your phone number at <a href="{{.FrontendURL}}/volunteer-login">{{.FrontendURL}}/volunteer-login</a>.</p>`,
	},
	EventVolunteerRegistered: {
		subject: "New volunteer application: {{.Name}}",
		body: `<p>{{.Name}} ({{.Phone}}) applied as {{.Role}}.</p>
<p>Availability: {{.Availability}}</p>`,
	},
}

// Renderer turns notifications into a subject, an HTML body and a plain-text
// alternative derived from the HTML.
type Renderer struct {
	frontendURL string
	subjects    map[Event]*texttemplate.Template
	bodies      map[Event]*htmltemplate.Template
	converter   *md.Converter
}

func NewRenderer(frontendURL string) (*Renderer, error) {
	r := &Renderer{
		frontendURL: strings.TrimRight(frontendURL, "/"),
		subjects:    make(map[Event]*texttemplate.Template, len(messages)),
		bodies:      make(map[Event]*htmltemplate.Template, len(messages)),
		converter:   md.NewConverter("", true, nil),
	}
	r.converter.Use(plugin.GitHubFlavored())

	for ev, m := range messages {
		st, err := texttemplate.New(string(ev)).Option("missingkey=zero").Parse(m.subject)
		if err != nil {
			return nil, fmt.Errorf("parse subject %s: %w", ev, err)
		}
		bt, err := htmltemplate.New(string(ev)).Option("missingkey=zero").Parse(m.body)
		if err != nil {
			return nil, fmt.Errorf("parse body %s: %w", ev, err)
		}
		r.subjects[ev] = st
		r.bodies[ev] = bt
	}
	return r, nil
}

func (r *Renderer) data(n Notification) map[string]string {
	d := make(map[string]string, len(n.Data)+2)
	for k, v := range n.Data {
		d[k] = v
	}
	d["FrontendURL"] = r.frontendURL
	if n.Audience == AudienceAdmin {
		d["Admin"] = "yes"
		if d["Name"] == "" {
			d["Name"] = "Admin"
		}
	}
	return d
}

// Render produces the subject, HTML body and text body for n.
func (r *Renderer) Render(n Notification) (subject, html, text string, err error) {
	st, ok := r.subjects[n.Event]
	if !ok {
		return "", "", "", fmt.Errorf("no template for event %q", n.Event)
	}
	d := r.data(n)

	var buf bytes.Buffer
	if err := st.Execute(&buf, d); err != nil {
		return "", "", "", fmt.Errorf("render subject: %w", err)
	}
	subject = buf.String()

	buf.Reset()
	if err := r.bodies[n.Event].Execute(&buf, d); err != nil {
		return "", "", "", fmt.Errorf("render body: %w", err)
	}
	html = buf.String()

	text, err = r.converter.ConvertString(html)
	if err != nil {
		return "", "", "", fmt.Errorf("convert to text: %w", err)
	}
	return subject, html, text, nil
}
