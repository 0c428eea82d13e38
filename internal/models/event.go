package models

type EventKind string

const (
	MessageAppended     EventKind = "message_appended"
	ConversationUpdated EventKind = "conversation_updated"
)

// Event is what the change feed delivers. Seq is monotonic per Key.
type Event struct {
	Kind    EventKind                `json:"kind"`
	Key     string                   `json:"key"`
	Seq     uint64                   `json:"seq"`
	Message *Message                 `json:"message,omitempty"`
	Entry   *RecentConversationEntry `json:"entry,omitempty"`
}

// ID identifies the record an event carries, for consumer-side de-duplication.
func (e Event) ID() string {
	switch {
	case e.Message != nil:
		return e.Message.ID
	case e.Entry != nil:
		return e.Entry.OwnerID + "/" + e.Entry.PeerID
	}
	return ""
}
