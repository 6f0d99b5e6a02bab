package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// InvalidationMessage tells every running instance that the cached data of
// an entity is stale. An empty UserID targets all users.
type InvalidationMessage struct {
	ID        string    `json:"id"`
	Entity    string    `json:"entity"`
	UserID    string    `json:"userId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewInvalidationMessage(entity, userID string) *InvalidationMessage {
	return &InvalidationMessage{
		ID:        uuid.NewString(),
		Entity:    entity,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
}

func (m *InvalidationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// InvalidationMessageFromJSON decodes a message body. A body without an
// entity is rejected.
func InvalidationMessageFromJSON(data []byte) (*InvalidationMessage, error) {
	var msg InvalidationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Entity == "" {
		return nil, errors.New("invalidation message without entity")
	}
	return &msg, nil
}
