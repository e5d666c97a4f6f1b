package kafkabind

import (
	"context"
	"errors"
	"testing"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"

	"github.com/artpar/channelgen/pkg/binding"
)

func TestSender(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)
	defer producer.Close()

	send := Sender(producer)
	out := binding.Outbound{Address: "orders.created", Payload: []byte(`{"id":1}`), Headers: map[string]string{"traceId": "t1"}}
	if err := send(context.Background(), out); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if err := send(context.Background(), out); !errors.Is(err, sarama.ErrNotLeaderForPartition) {
		t.Errorf("failed send err = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := send(ctx, out); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled send err = %v", err)
	}
}

func TestOpen(t *testing.T) {
	consumer := mocks.NewConsumer(t, nil)
	consumer.SetTopicMetadata(map[string][]int32{"orders.created": {0, 1}})
	p0 := consumer.ExpectConsumePartition("orders.created", 0, sarama.OffsetOldest)
	p1 := consumer.ExpectConsumePartition("orders.created", 1, sarama.OffsetOldest)

	msg := &sarama.ConsumerMessage{
		Topic:   "orders.created",
		Value:   []byte(`{"id":1}`),
		Headers: []*sarama.RecordHeader{{Key: []byte("traceId"), Value: []byte("t1")}},
	}
	p1.YieldMessage(msg)

	ctx := context.Background()
	src, err := Open(consumer, "orders.created", sarama.OffsetOldest)(ctx)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	d, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if d.Address != "orders.created" || string(d.Payload) != `{"id":1}` || d.Headers["traceId"] != "t1" {
		t.Errorf("delivery = %+v", d)
	}

	p0.YieldError(sarama.ErrOffsetOutOfRange)
	if _, err := src.Next(ctx); !binding.IsTransient(err) {
		t.Errorf("partition error = %v, want transient", err)
	}

	if err := src.Close(); err != nil {
		t.Errorf("Close = %v", err)
	}
	if _, err := src.Next(ctx); !errors.Is(err, binding.ErrSourceClosed) {
		t.Errorf("Next after close = %v", err)
	}
}

func TestOpen_UnknownTopic(t *testing.T) {
	consumer := mocks.NewConsumer(t, nil)
	consumer.SetTopicMetadata(map[string][]int32{"a": {0}})
	if _, err := Open(consumer, "b", sarama.OffsetNewest)(context.Background()); err == nil {
		t.Error("expected error for unknown topic")
	}
}
