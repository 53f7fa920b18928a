package outbox

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

type messageTemplate struct {
	subject string
	email   string
	sms     string
}

var templateSources = map[string]messageTemplate{
	TemplateAppointmentConfirmation: {
		subject: "Appointment request received for {{.date}} at {{.time}}",
		email: `Hello {{.patient_name}},

We received your appointment request for {{.date}} at {{.time}}.
Please confirm it here: {{.confirm_url}}
If you need to cancel: {{.cancel_url}}

Changes are possible up to 24 hours before the appointment.`,
		sms: "Appointment requested for {{.date}} {{.time}}. Confirm: {{.confirm_url}}",
	},
	TemplateAppointmentReminder24h: {
		subject: "Reminder: appointment tomorrow at {{.time}}",
		email: `Hello {{.patient_name}},

This is a reminder of your appointment on {{.date}} at {{.time}}.
If you cannot attend, please cancel: {{.cancel_url}}`,
		sms: "Reminder: appointment {{.date}} {{.time}}. Cancel: {{.cancel_url}}",
	},
	TemplateAppointmentReminder2h: {
		subject: "Your appointment starts at {{.time}}",
		email: `Hello {{.patient_name}},

Your appointment starts today at {{.time}}. See you soon.`,
		sms: "Your appointment starts today at {{.time}}.",
	},
	TemplateAppointmentModified: {
		subject: "Appointment moved to {{.date}} at {{.time}}",
		email: `Hello {{.patient_name}},

Your appointment was moved from {{.previous_date}} {{.previous_time}} to {{.date}} at {{.time}}.
{{- if .reason}}
Reason: {{.reason}}{{end}}`,
		sms: "Appointment moved to {{.date}} {{.time}}.",
	},
	TemplateAppointmentCancelled: {
		subject: "Appointment on {{.date}} cancelled",
		email: `Hello {{.patient_name}},

Your appointment on {{.date}} at {{.time}} was cancelled.
{{- if .reason}}
Reason: {{.reason}}{{end}}
{{- if .contact_phone}}
Questions? Call us at {{.contact_phone}}.{{end}}`,
		sms: "Appointment {{.date}} {{.time}} cancelled.",
	},
	TemplateWaitlistJoined: {
		subject: "You are on the waitlist for {{.preferred_date}}",
		email: `Hello {{.patient_name}},

You joined the waitlist for {{.preferred_date}} at position {{.position}}.
Estimated wait: about {{.estimated_weeks}} week(s) ({{.confidence}} confidence).`,
		sms: "Waitlist {{.preferred_date}}: position {{.position}}, about {{.estimated_weeks}} week(s).",
	},
	TemplateWaitlistSlotAvailable: {
		subject: "A slot opened on {{.slot_date}} at {{.slot_time}}",
		email: `Hello {{.patient_name}},

A slot matching your waitlist request opened on {{.slot_date}} at {{.slot_time}}.
Book it soon, slots are offered to several people in waitlist order.`,
		sms: "Slot open {{.slot_date}} {{.slot_time}}. Book soon.",
	},
}

// Rendered is a message ready for a provider.
type Rendered struct {
	Message
	Subject string
	Body    string
}

// Renderer turns a stored message and its template data into text.
type Renderer struct {
	subjects map[string]*template.Template
	emails   map[string]*template.Template
	sms      map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	r := &Renderer{
		subjects: make(map[string]*template.Template),
		emails:   make(map[string]*template.Template),
		sms:      make(map[string]*template.Template),
	}
	for name, src := range templateSources {
		var err error
		if r.subjects[name], err = parse(name+".subject", src.subject); err != nil {
			return nil, err
		}
		if r.emails[name], err = parse(name+".email", src.email); err != nil {
			return nil, err
		}
		if r.sms[name], err = parse(name+".sms", src.sms); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func parse(name, src string) (*template.Template, error) {
	t, err := template.New(name).Option("missingkey=zero").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	return t, nil
}

func (r *Renderer) Render(m Message) (Rendered, error) {
	out := Rendered{Message: m}

	var bodies map[string]*template.Template
	switch m.MessageType {
	case TypeEmail:
		bodies = r.emails
	case TypeSMS:
		bodies = r.sms
	default:
		return out, fmt.Errorf("unknown message type %q", m.MessageType)
	}

	body, ok := bodies[m.Template]
	if !ok {
		return out, fmt.Errorf("unknown template %q", m.Template)
	}

	var buf bytes.Buffer
	if err := body.Execute(&buf, m.TemplateData); err != nil {
		return out, fmt.Errorf("render %s: %w", m.Template, err)
	}
	out.Body = strings.TrimSpace(buf.String())

	if m.Subject != nil {
		out.Subject = *m.Subject
		return out, nil
	}
	buf.Reset()
	if err := r.subjects[m.Template].Execute(&buf, m.TemplateData); err != nil {
		return out, fmt.Errorf("render subject %s: %w", m.Template, err)
	}
	out.Subject = buf.String()
	return out, nil
}
