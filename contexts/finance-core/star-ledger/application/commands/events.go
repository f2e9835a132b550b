package commands

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"savemore/contexts/finance-core/star-ledger/ports"
)

const (
	sourceService = "star-ledger"

	EventTypeViewSettled   = "ledger.view_settled"
	EventTypeStarsSpent    = "ledger.stars_spent"
	EventTypeGroupJoined   = "ledger.group_joined"
	EventTypeStarsCredited = "ledger.stars_credited"
)

// AffectedUsersKey lists, inside every ledger event payload, the users whose
// balances changed. Consumers use it to refresh balances without decoding
// event-specific fields.
const AffectedUsersKey = "affected_user_ids"

func buildEnvelope(
	ctx context.Context,
	ids ports.IDGenerator,
	eventType string,
	partitionKeyPath string,
	partitionKey string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	eventID, err := ids.NewID(ctx)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          strings.TrimSpace(eventID),
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    sourceService,
		TraceID:          strings.TrimSpace(eventID),
		SchemaVersion:    ports.EventSchemaVersion,
		PartitionKeyPath: partitionKeyPath,
		PartitionKey:     partitionKey,
		Data:             raw,
	}, nil
}
