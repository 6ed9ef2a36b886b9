package models

// Invoice is a fundable unit tied to one channel post. Funded is the
// cumulative received amount in nanotons and only ever grows.
type Invoice struct {
	ID        string `json:"id" db:"id"`
	ChatID    int64  `json:"chat_id" db:"chat_id"`
	MessageID int64  `json:"message_id" db:"message_id"`
	Funded    int64  `json:"funded" db:"funded"`
	Body      string `json:"body,omitempty" db:"body"`
	Entities  string `json:"entities,omitempty" db:"entities"`
}
