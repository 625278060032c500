package notify

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/shaiso/etlflows/internal/domain"
)

// Темы писем.
const (
	SubjectRejected  = "ETL Pipeline Validation Failed"
	SubjectCompleted = "ETL Pipeline Completed Successfully"
)

const rejectedBody = `Data Validation Failed
{{ if .Event.Repository }}
Repository: {{ .Event.Repository }}{{ end }}
Run: {{ .Event.RunID }}

Error Details:
{{ .Event.Detail }}
{{ if .RunURL }}
Link to the flow run: {{ .RunURL }}
{{ end }}`

const completedBody = `ETL Pipeline Completed
{{ if .Event.Repository }}
Repository: {{ .Event.Repository }}{{ end }}
Run: {{ .Event.RunID }}

The pipeline has successfully processed and aggregated the data.
{{ .Event.Detail }}
{{ if .Event.Location }}
Data available at: {{ .Event.Location }}{{ end }}
{{ if .RunURL }}
Flow run link: {{ .RunURL }}
{{ end }}`

var bodyTemplates = map[domain.EventKind]*template.Template{
	domain.EventRejected:  template.Must(template.New("rejected").Parse(rejectedBody)),
	domain.EventCompleted: template.Must(template.New("completed").Parse(completedBody)),
}

// Message — отрисованное письмо.
type Message struct {
	Subject string
	Body    string
}

type templateData struct {
	Event  domain.Event
	RunURL string
}

// Render строит тему и текст письма для события.
// flowUIURL — базовый адрес UI оркестратора; пусто, если ссылки не нужны.
func Render(event domain.Event, flowUIURL string) (Message, error) {
	var subject string
	switch event.Kind {
	case domain.EventRejected:
		subject = SubjectRejected
	case domain.EventCompleted:
		subject = SubjectCompleted
	default:
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownKind, event.Kind)
	}

	data := templateData{Event: event}
	if flowUIURL != "" {
		data.RunURL = flowUIURL + "/runs/" + event.RunID.String()
	}

	var buf bytes.Buffer
	if err := bodyTemplates[event.Kind].Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("render %s body: %w", event.Kind, err)
	}
	return Message{Subject: subject, Body: buf.String()}, nil
}
