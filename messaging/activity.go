// Package messaging publishes a stream of operator actions to a broker so
// other systems can follow what was changed from the console.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"orchconsole/logger"
)

// Version is the activity envelope format version.
const Version = 1

// Activity message types.
const (
	TypeTaskCreated     = "task.created"
	TypeTaskDeleted     = "task.deleted"
	TypeAgentDeleted    = "agent.deleted"
	TypePluginPublished = "plugin.published"
	TypePluginUpdated   = "plugin.updated"
	TypePluginDeleted   = "plugin.deleted"
	TypeBootstrapIssued = "bootstrap_token.issued"
)

// Envelope wraps every activity message.
type Envelope struct {
	Version   int             `json:"v"`
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"ts"`
	Actor     string          `json:"actor"`
	Payload   json.RawMessage `json:"p"`
}

func NewEnvelope(msgType, actor string, payload any) (*Envelope, error) {
	p, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Version:   Version,
		Type:      msgType,
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Actor:     actor,
		Payload:   p,
	}, nil
}

func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func (e *Envelope) DecodePayload(target any) error {
	return json.Unmarshal(e.Payload, target)
}

// Decode parses an encoded envelope.
func Decode(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.Version != Version {
		return nil, fmt.Errorf("unsupported envelope version %d", e.Version)
	}
	return &e, nil
}

// Publisher is the transport the activity stream writes to. *Client
// implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Activity publishes operator actions. Failures are logged and dropped.
type Activity struct {
	pub   Publisher
	topic string
	log   *logger.Logger
}

func NewActivity(pub Publisher, topic string, log *logger.Logger) *Activity {
	if log == nil {
		log = logger.Nop()
	}
	return &Activity{pub: pub, topic: topic, log: log}
}

// Publish sends one activity message. It returns the error for callers that
// care; the engine only logs it.
func (a *Activity) Publish(ctx context.Context, msgType, actor string, payload any) error {
	if a == nil || a.pub == nil {
		return nil
	}
	env, err := NewEnvelope(msgType, actor, payload)
	if err != nil {
		return fmt.Errorf("build %s envelope: %w", msgType, err)
	}
	data, err := env.Encode()
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", msgType, err)
	}
	if err := a.pub.Publish(ctx, a.topic, data); err != nil {
		a.log.Warnf("messaging: publish %s to %s: %v", msgType, a.topic, err)
		return err
	}
	a.log.Debugf("messaging: published %s (%s)", msgType, env.ID)
	return nil
}
