// Package session owns the identity and local transcript of one
// conversation with the remote agent. The remote side holds the actual
// conversational state; the transcript is a local record only.
package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/m4xw311/jarvis/errors"
)

type Message struct {
	Role    string    `json:"role"` // "user" or "assistant"
	Content string    `json:"content"`
	Time    time.Time `json:"time"`
}

type Session struct {
	ID         string            `json:"id"`
	MemoryID   string            `json:"memory_id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	Transcript []Message         `json:"transcript"`
	path       string
}

// New creates a session with a freshly generated identifier. The memory id
// may be empty, in which case the remote agent gets no cross-session recall.
func New(memoryID string) (*Session, error) {
	id := uuid.NewString()
	path, err := sessionPath(id)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:         id,
		MemoryID:   memoryID,
		Attributes: map[string]string{},
		StartedAt:  time.Now(),
		Transcript: []Message{},
		path:       path,
	}, nil
}

// Load reads a previously saved session transcript from disk.
func Load(id string) (*Session, error) {
	path, err := sessionPath(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read session file %s", path)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrapf(err, "could not parse session file %s", path)
	}
	s.path = path
	return &s, nil
}

// Save writes the transcript to disk.
func (s *Session) Save() error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to serialize session")
	}
	return os.WriteFile(s.path, data, 0644)
}

// Record appends a message to the transcript.
func (s *Session) Record(role, content string) {
	s.Transcript = append(s.Transcript, Message{
		Role:    role,
		Content: content,
		Time:    time.Now(),
	})
}

func sessionPath(id string) (string, error) {
	sessionDir := filepath.Join(".jarvis", "sessions")
	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		return "", errors.Wrapf(err, "could not create session directory")
	}
	return filepath.Join(sessionDir, id+".json"), nil
}
