package models

// Account event types published to Kafka.
const (
	EventAccountRegistered     = "account.registered"
	EventAccountProfileUpdated = "account.profile_updated"
	EventAccountPasswordChange = "account.password_changed"
)

// AccountEvent is the Kafka payload describing an account lifecycle change.
// It never carries passwords or password hashes.
type AccountEvent struct {
	EventID   string `json:"eventId"`
	Type      string `json:"type"`
	AccountID int64  `json:"accountId"`
	Username  string `json:"userName"`
	Timestamp int64  `json:"timestamp"`
}
