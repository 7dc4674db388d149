package transcript

import (
	"time"

	"github.com/ashureev/careermate/internal/domain"
)

// SessionEvents converts a finished conversation into transcript records:
// one per settled chat bubble followed by a completion record.
func SessionEvents(userID, sessionID string, s domain.Session, averageScore int, at time.Time) []Event {
	events := make([]Event, 0, len(s.Messages)+1)
	for _, m := range s.Messages {
		if m.IsTyping || m.Failed {
			continue
		}
		events = append(events, Event{
			Timestamp: m.Timestamp,
			UserID:    userID,
			SessionID: sessionID,
			EventType: EventMessage,
			Sender:    string(m.Role),
			MessageID: m.ID,
			Content:   m.Content,
		})
	}
	return append(events, Event{
		Timestamp:    at,
		UserID:       userID,
		SessionID:    sessionID,
		EventType:    EventComplete,
		Questions:    len(s.History),
		AverageScore: averageScore,
	})
}
