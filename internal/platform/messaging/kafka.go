package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	contractsv1 "savemore/contracts/gen/events/v1"
)

const (
	headerEventType     = "event_type"
	headerSchemaVersion = "schema_version"
	produceTimeout      = 5 * time.Second
)

// Kafka publishes envelopes keyed by partition key, and consumes them with
// manual commits. A partition's offset only advances past records whose
// handler succeeded, so a failed record is redelivered after a restart or
// rebalance.
type Kafka struct {
	brokers  []string
	clientID string
	producer *kgo.Client
	logger   *slog.Logger
}

func NewKafka(brokers []string, clientID string, logger *slog.Logger) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	producer, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.ProducerLinger(10*time.Millisecond),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &Kafka{brokers: brokers, clientID: clientID, producer: producer, logger: logger}, nil
}

func (k *Kafka) Publish(ctx context.Context, topic string, event contractsv1.Envelope) error {
	if err := event.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(event.PartitionKey),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: headerEventType, Value: []byte(event.EventType)},
			{Key: headerSchemaVersion, Value: []byte(strconv.Itoa(event.SchemaVersion))},
		},
	}
	ctx, cancel := context.WithTimeout(ctx, produceTimeout)
	defer cancel()
	if err := k.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	return nil
}

// Subscribe blocks consuming topic as consumerGroup until ctx is cancelled.
func (k *Kafka) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, contractsv1.Envelope) error,
) error {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(k.brokers...),
		kgo.ClientID(k.clientID),
		kgo.ConsumerGroup(consumerGroup),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
		kgo.BlockRebalanceOnPoll(),
	)
	if err != nil {
		return fmt.Errorf("create kafka consumer: %w", err)
	}
	defer client.Close()

	for {
		fetches := client.PollFetches(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fetchErr := range errs {
				k.logger.Error("kafka fetch failed",
					"event", "kafka_fetch_failed",
					"module", moduleName,
					"layer", "platform",
					"topic", fetchErr.Topic,
					"partition", fetchErr.Partition,
					"error", fetchErr.Err.Error(),
				)
			}
		}

		commit := k.handleRecords(ctx, consumerGroup, fetches.Records(), handler)
		if len(commit) > 0 {
			if err := client.CommitRecords(ctx, commit...); err != nil && ctx.Err() == nil {
				k.logger.Error("kafka commit failed",
					"event", "kafka_commit_failed",
					"module", moduleName,
					"layer", "platform",
					"consumer_group", consumerGroup,
					"error", err.Error(),
				)
			}
		}
		client.AllowRebalance()
	}
}

func (k *Kafka) handleRecords(
	ctx context.Context,
	consumerGroup string,
	records []*kgo.Record,
	handler func(context.Context, contractsv1.Envelope) error,
) []*kgo.Record {
	type partitionKey struct {
		topic     string
		partition int32
	}
	blocked := make(map[partitionKey]bool)
	last := make(map[partitionKey]*kgo.Record)

	for _, record := range records {
		key := partitionKey{topic: record.Topic, partition: record.Partition}
		if blocked[key] {
			continue
		}
		var event contractsv1.Envelope
		if err := json.Unmarshal(record.Value, &event); err != nil {
			k.logger.Warn("skipping undecodable kafka record",
				"event", "kafka_record_invalid",
				"module", moduleName,
				"layer", "platform",
				"topic", record.Topic,
				"offset", record.Offset,
				"error", err.Error(),
			)
			last[key] = record
			continue
		}
		if err := handler(ctx, event); err != nil {
			k.logger.Error("consumer handler failed",
				"event", "kafka_consume_failed",
				"module", moduleName,
				"layer", "platform",
				"topic", record.Topic,
				"consumer_group", consumerGroup,
				"event_id", event.EventID,
				"event_type", event.EventType,
				"error", err.Error(),
			)
			blocked[key] = true
			continue
		}
		last[key] = record
	}

	commit := make([]*kgo.Record, 0, len(last))
	for _, record := range last {
		commit = append(commit, record)
	}
	return commit
}

func (k *Kafka) Ping(ctx context.Context) error {
	return k.producer.Ping(ctx)
}

func (k *Kafka) Close() error {
	k.producer.Close()
	return nil
}
