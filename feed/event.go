package feed

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ridge/quartz/meta"
	"github.com/ridge/quartz/object"
	"github.com/segmentio/kafka-go"
)

// Op is the kind of change an event carries
type Op string

// Ops
const (
	OpSave   Op = "save"
	OpDelete Op = "delete"
)

// ErrUnknownOp is returned for events with an op other than save or delete
var ErrUnknownOp = errors.New("unknown op")

// Event is one committed change to an object, as published to the feed
// topic:
//
//	{"op": "save", "object": {"_id": "...", "_type": "...", ...}}
//
// Delete events only need the object id, either as "_id" in the object or
// as the message key.
type Event struct {
	Op     Op              `json:"op"`
	Object json.RawMessage `json:"object"`
}

type change struct {
	op    Op
	state *object.State
}

func decodeMessage(reg *meta.Registry, msg kafka.Message) (change, error) {
	var ev Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return change{}, fmt.Errorf("failed to decode event: %w", err)
	}
	switch ev.Op {
	case OpSave, OpDelete:
	default:
		return change{}, fmt.Errorf("%w: %q", ErrUnknownOp, ev.Op)
	}

	st := &object.State{Values: map[string]any{}}
	if len(ev.Object) != 0 {
		var err error
		st, err = object.Decode(reg, ev.Object)
		if err != nil {
			return change{}, err
		}
	}
	if st.ID == uuid.Nil && len(msg.Key) != 0 {
		id, err := uuid.ParseBytes(msg.Key)
		if err != nil {
			return change{}, fmt.Errorf("invalid message key: %w", err)
		}
		st.ID = id
	}
	if st.ID == uuid.Nil {
		return change{}, errors.New("event carries no object id")
	}
	return change{op: ev.Op, state: st}, nil
}
