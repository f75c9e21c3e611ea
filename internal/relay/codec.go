package relay

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/JakeFAU/multibar"
)

// wireUpdate is the JSON shape of one update on the wire.
type wireUpdate struct {
	RunID  string `json:"run_id"`
	Worker int    `json:"worker"`
	Op     string `json:"op"`
	Value  int64  `json:"value,omitempty"`
}

// EncodeUpdate marshals an update for publishing.
func EncodeUpdate(runID uuid.UUID, u multibar.Update) ([]byte, error) {
	if err := u.Validate(); err != nil {
		return nil, fmt.Errorf("invalid update: %w", err)
	}
	data, err := json.Marshal(wireUpdate{
		RunID:  runID.String(),
		Worker: u.Worker,
		Op:     u.Op.String(),
		Value:  u.Value,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal update: %w", err)
	}
	return data, nil
}

// DecodeUpdate unmarshals and validates a wire message. Anything a
// remote peer could get wrong is rejected here, before the update can
// reach the coordinator's consumer loop.
func DecodeUpdate(data []byte) (uuid.UUID, multibar.Update, error) {
	var w wireUpdate
	if err := json.Unmarshal(data, &w); err != nil {
		return uuid.Nil, multibar.Update{}, fmt.Errorf("unmarshal update: %w", err)
	}
	runID, err := uuid.Parse(w.RunID)
	if err != nil {
		return uuid.Nil, multibar.Update{}, fmt.Errorf("invalid run id %q: %w", w.RunID, err)
	}
	op, err := parseOp(w.Op)
	if err != nil {
		return uuid.Nil, multibar.Update{}, err
	}
	if w.Worker < 0 {
		return uuid.Nil, multibar.Update{}, fmt.Errorf("invalid worker index %d", w.Worker)
	}
	if w.Value < 0 {
		return uuid.Nil, multibar.Update{}, fmt.Errorf("invalid value %d", w.Value)
	}
	return runID, multibar.Update{Worker: w.Worker, Op: op, Value: w.Value}, nil
}

func parseOp(s string) (multibar.Op, error) {
	switch s {
	case "next":
		return multibar.OpNext, nil
	case "set":
		return multibar.OpSet, nil
	case "finish":
		return multibar.OpFinish, nil
	case "cancel":
		return multibar.OpCancel, nil
	default:
		return 0, fmt.Errorf("unknown op %q", s)
	}
}

// orderingKey scopes Pub/Sub ordering to one worker, matching the
// per-producer FIFO guarantee of the in-process channel.
func orderingKey(worker int) string {
	return fmt.Sprintf("worker-%d", worker)
}
