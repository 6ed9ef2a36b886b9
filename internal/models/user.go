package models

// User holds the aggregate tip balance for one chat owner, in nanotons.
// Rows are created lazily on first credit. The id is the Telegram user id
// of the chat's owner.
type User struct {
	ID      int64 `json:"id" db:"id"`
	Balance int64 `json:"balance" db:"balance"`
}
