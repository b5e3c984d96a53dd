package storage

import (
	"encoding/json"
	"fmt"

	"github.com/papercomputeco/medibot/pkg/conversation"
)

// Marshal encodes a session into its durable JSON record.
func Marshal(s *conversation.Session) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding session %s: %w", s.ID, err)
	}
	return data, nil
}

// Unmarshal decodes a durable JSON record.
func Unmarshal(data []byte) (*conversation.Session, error) {
	s := &conversation.Session{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	if s.Turns == nil {
		s.Turns = []conversation.Turn{}
	}
	return s, nil
}
