package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"alarm-tracker-backend/internal/alarm"
)

// Message describes one status change to be delivered.
type Message struct {
	AlarmID              string       `json:"alarmId"`
	Description          string       `json:"description"`
	Status               alarm.Status `json:"status"`
	LastStatusChangeTime time.Time    `json:"lastStatusChangeTime"`
	Recipients           []string     `json:"to,omitempty"`
}

// MessageFor builds the message announcing a's current status.
func MessageFor(a alarm.Alarm, recipients []string) Message {
	return Message{
		AlarmID:              a.ID,
		Description:          a.Description,
		Status:               a.Status(),
		LastStatusChangeTime: a.LastStatusChangeTime,
		Recipients:           recipients,
	}
}

// EventType is "activated" or "deactivated".
func (m Message) EventType() string {
	if m.Status == alarm.StatusActive {
		return "activated"
	}
	return "deactivated"
}

// Subject returns e.g. "Alarm ALM-001 ACTIVATED".
func (m Message) Subject() string {
	id := m.AlarmID
	if id == "" {
		id = "Unknown"
	}
	if m.EventType() == "activated" {
		return fmt.Sprintf("Alarm %s ACTIVATED", id)
	}
	return fmt.Sprintf("Alarm %s DEACTIVATED", id)
}

const bodyTemplate = `<div style="font-family: Inter, Arial, sans-serif; line-height:1.6;">
  <h2>Alarm {{.ID}} {{.EventType}}</h2>
  <p><strong>Description:</strong> {{.Description}}</p>
  <p><strong>Time:</strong> {{.Time}}</p>
  <p><strong>New Status:</strong> {{.Status}}</p>
</div>
`

var body = template.Must(template.New("alarm-email").Parse(bodyTemplate))

type bodyData struct {
	ID          string
	EventType   string
	Description string
	Time        string
	Status      string
}

// HTML renders the email body.
func (m Message) HTML() (string, error) {
	description := m.Description
	if description == "" {
		description = "Alarm"
	}
	var buf bytes.Buffer
	err := body.Execute(&buf, bodyData{
		ID:          m.AlarmID,
		EventType:   m.EventType(),
		Description: description,
		Time:        m.LastStatusChangeTime.UTC().Format(time.RFC3339),
		Status:      m.Status.String(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render email body: %w", err)
	}
	return buf.String(), nil
}
