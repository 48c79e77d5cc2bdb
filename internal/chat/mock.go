package chat

import "time"

type mockTurn struct {
	role    Role
	content string
	ago     time.Duration
}

var (
	// shown to a patient: the therapist opens the conversation
	patientViewTurns = []mockTurn{
		{RoleTherapist, "Hello! I'm your therapist. How can I help you today?", time.Hour},
		{RolePatient, "Hi! I've been feeling anxious lately and would like to discuss it.", 30 * time.Minute},
		{RoleTherapist, "I understand. Let's schedule a session to talk about this. What times work for you?", 15 * time.Minute},
	}

	therapistViewTurns = []mockTurn{
		{RolePatient, "Hello! I'm your patient. I'd like to discuss some issues I've been having.", time.Hour},
		{RoleTherapist, "Hello! I'm here to help. Please tell me more about what you've been experiencing.", 30 * time.Minute},
		{RolePatient, "I've been feeling very anxious about work and having trouble sleeping.", 15 * time.Minute},
	}
)

// mockConversation returns the canned three-turn conversation used when every
// fetch tier fails.
func mockConversation(key ConversationKey, viewer Role, now time.Time) []Message {
	turns := patientViewTurns
	if viewer == RoleTherapist {
		turns = therapistViewTurns
	}
	out := make([]Message, 0, len(turns))
	for i, t := range turns {
		out = append(out, Message{
			ID:          int64(i + 1),
			Content:     t.content,
			Date:        now.Add(-t.ago).UTC(),
			SenderRole:  t.role,
			IsRead:      true,
			PatientID:   key.PatientID,
			TherapistID: key.TherapistID,
		})
	}
	return out
}
