package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CurrentSchemaVersion is the envelope layout written by this release.
const CurrentSchemaVersion = 1

var ErrInvalidEnvelope = errors.New("event envelope is invalid")

// Envelope wraps every ledger event on the bus. PartitionKey is the value at
// PartitionKeyPath inside Data, so all events of one user keep their order.
// Fields may only be added.
type Envelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

// Validate checks the fields relays and consumers depend on.
func (e Envelope) Validate() error {
	switch {
	case e.EventID == "":
		return fmt.Errorf("%w: event_id is required", ErrInvalidEnvelope)
	case e.EventType == "":
		return fmt.Errorf("%w: event_type is required", ErrInvalidEnvelope)
	case e.SchemaVersion < 1 || e.SchemaVersion > CurrentSchemaVersion:
		return fmt.Errorf("%w: unsupported schema_version %d", ErrInvalidEnvelope, e.SchemaVersion)
	case len(e.Data) == 0 || !json.Valid(e.Data):
		return fmt.Errorf("%w: data must be a JSON document", ErrInvalidEnvelope)
	}
	return nil
}

// DecodeData unmarshals the event payload into out.
func (e Envelope) DecodeData(out any) error {
	if err := json.Unmarshal(e.Data, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}
	return nil
}
