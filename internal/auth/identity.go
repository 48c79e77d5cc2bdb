package auth

import "github.com/healme/healme-chat/internal/chat"

type Identity struct {
	ID   uint64    `json:"id"`
	Role chat.Role `json:"user_type"`
}

// Provider exposes the signed-in user, or nil when nobody is signed in.
type Provider interface {
	CurrentUser() *Identity
}

// Static is a Provider with a fixed identity.
type Static struct {
	User *Identity
}

func (s Static) CurrentUser() *Identity { return s.User }

// ConversationFor places the viewer and the peer on the right side of the
// (patient, therapist) pair.
func ConversationFor(id Identity, peerID uint64) chat.ConversationKey {
	if id.Role == chat.RoleTherapist {
		return chat.ConversationKey{PatientID: peerID, TherapistID: id.ID}
	}
	return chat.ConversationKey{PatientID: id.ID, TherapistID: peerID}
}

// ConversationOf is ConversationFor for a provider. A nil user gives an
// invalid key, which the engine reports as missing identifiers.
func ConversationOf(p Provider, peerID uint64) (chat.ConversationKey, chat.Role) {
	u := p.CurrentUser()
	if u == nil {
		return chat.ConversationKey{}, chat.RolePatient
	}
	return ConversationFor(*u, peerID), u.Role
}
