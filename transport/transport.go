// Package transport ships oplog entries between collaboration server
// instances over Kafka, one topic per deployment, partitioned by
// document id so all ops for a document land on the same partition
// and are consumed in order.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/IBM/sarama"

	"github.com/loomtext/egwalker/oplog"
)

// Envelope is the wire format for a single remote op, wide enough to
// reconstruct the oplog.Op[rune] plus the parent ids needed to feed
// oplog.OpLog.AppendRemote on the receiving end.
type Envelope struct {
	DocID     string      `json:"doc_id"`
	Op        oplog.Op[rune] `json:"op"`
	ParentIDs []oplog.Id  `json:"parent_ids"`
}

// Shipper publishes local ops to Kafka. It wraps a sarama.SyncProducer,
// so Publish returns only once the broker has acknowledged the message
// or the send has failed; the server logs a failed publish and still
// completes the client's request.
type Shipper struct {
	producer sarama.SyncProducer
	topic    string
}

func NewShipper(brokers []string, topic string) (*Shipper, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("transport: dial kafka: %w", err)
	}
	return &Shipper{producer: producer, topic: topic}, nil
}

func (s *Shipper) Close() error {
	return s.producer.Close()
}

func (s *Shipper) Publish(ctx context.Context, docID string, op oplog.Op[rune], parentIDs []oplog.Id) error {
	env := Envelope{DocID: docID, Op: op, ParentIDs: parentIDs}
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("transport: marshal envelope: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(docID),
		Value: sarama.ByteEncoder(b),
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	_, _, err = s.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("transport: publish: %w", err)
	}
	return nil
}

// Handler receives envelopes decoded off the consumer loop below.
type Handler func(Envelope)

// Consumer drains a topic's partitions and hands each envelope to a
// Handler. It runs one goroutine per partition, matching the
// goroutine-per-partition style the retrieved pack uses for its own
// Kafka consumers.
type Consumer struct {
	consumer sarama.Consumer
	topic    string
}

func NewConsumer(brokers []string, topic string) (*Consumer, error) {
	c, err := sarama.NewConsumer(brokers, sarama.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("transport: dial kafka consumer: %w", err)
	}
	return &Consumer{consumer: c, topic: topic}, nil
}

func (c *Consumer) Close() error {
	return c.consumer.Close()
}

// Run subscribes to every partition of the topic and calls handle for
// each message until ctx is cancelled. Decode failures are logged and
// skipped rather than aborting the whole consumer, since one malformed
// envelope should never take down the merge stream for every document.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	partitions, err := c.consumer.Partitions(c.topic)
	if err != nil {
		return fmt.Errorf("transport: list partitions: %w", err)
	}

	for _, p := range partitions {
		pc, err := c.consumer.ConsumePartition(c.topic, p, sarama.OffsetNewest)
		if err != nil {
			return fmt.Errorf("transport: consume partition %d: %w", p, err)
		}
		go func(pc sarama.PartitionConsumer) {
			defer pc.Close()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-pc.Messages():
					if !ok {
						return
					}
					var env Envelope
					if err := json.Unmarshal(msg.Value, &env); err != nil {
						log.Printf("transport: dropping malformed envelope: %v", err)
						continue
					}
					handle(env)
				case err := <-pc.Errors():
					log.Printf("transport: partition consumer error: %v", err)
				}
			}
		}(pc)
	}

	<-ctx.Done()
	return ctx.Err()
}
