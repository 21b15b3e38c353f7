package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/taskapi/taskapi/types"
)

const (
	eventTypeAttribute = "event_type"
	ownerIDAttribute   = "owner_id"
)

// TaskEvents publishes and consumes task change notifications on one channel.
type TaskEvents struct {
	mq      *MQ
	channel string
}

func NewTaskEvents(mq *MQ, channel string) (*TaskEvents, error) {
	if mq == nil {
		return nil, errors.New("mq is required")
	}
	if strings.TrimSpace(channel) == "" {
		return nil, errors.New("task events channel is required")
	}
	return &TaskEvents{mq: mq, channel: channel}, nil
}

// PublishTaskEvent encodes event as JSON and sends it with routing attributes.
func (e *TaskEvents) PublishTaskEvent(ctx context.Context, event types.TaskEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode task event: %w", err)
	}

	attrs := map[string]string{
		ContentTypeAttribute: "application/json",
		eventTypeAttribute:   string(event.Type),
		ownerIDAttribute:     strconv.Itoa(event.OwnerID),
	}
	if _, err := e.mq.Publish(ctx, e.channel, data, attrs); err != nil {
		return fmt.Errorf("publish task event: %w", err)
	}
	return nil
}

// Watch blocks and hands every decoded task event to handle until ctx is done.
// Undecodable messages are acknowledged and dropped so they are not redelivered.
func (e *TaskEvents) Watch(ctx context.Context, handle func(context.Context, types.TaskEvent) error) error {
	return e.mq.Subscribe(ctx, e.channel, func(ctx context.Context, msg Message) error {
		event, err := DecodeTaskEvent(msg)
		if err != nil {
			logrus.WithError(err).Warn("dropping undecodable task event")
			return nil
		}
		return handle(ctx, event)
	})
}

// DecodeTaskEvent parses a task event from a broker message.
func DecodeTaskEvent(msg Message) (types.TaskEvent, error) {
	var event types.TaskEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return types.TaskEvent{}, fmt.Errorf("decode task event %s: %w", msg.ID, err)
	}
	if event.Type == "" {
		return types.TaskEvent{}, fmt.Errorf("decode task event %s: missing type", msg.ID)
	}
	return event, nil
}
