package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Change operations carried in ChangeMessage.Op.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// ChangeMessage announces a committed write. It carries no document data;
// receivers reload the collection from the shared store.
type ChangeMessage struct {
	AppID      string    `json:"appId"`
	Collection string    `json:"collection"`
	DocumentID string    `json:"documentId"`
	Op         string    `json:"op"`
	Origin     string    `json:"origin"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewChangeMessage(appID, collection, documentID, op, origin string) *ChangeMessage {
	return &ChangeMessage{
		AppID:      appID,
		Collection: collection,
		DocumentID: documentID,
		Op:         op,
		Origin:     origin,
		Timestamp:  time.Now().UTC(),
	}
}

func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes and checks a message body.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Collection == "" {
		return nil, fmt.Errorf("change message without collection")
	}
	switch msg.Op {
	case OpInsert, OpUpdate, OpDelete:
	default:
		return nil, fmt.Errorf("unknown change op %q", msg.Op)
	}
	return &msg, nil
}
