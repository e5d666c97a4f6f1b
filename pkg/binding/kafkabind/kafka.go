// Package kafkabind connects generated Kafka bindings to sarama clients.
package kafkabind

import (
	"context"
	"fmt"
	"sync"

	"github.com/Shopify/sarama"

	"github.com/artpar/channelgen/pkg/binding"
)

// Sender publishes through a synchronous producer. The address is the topic.
func Sender(producer sarama.SyncProducer) binding.Sender {
	return func(ctx context.Context, out binding.Outbound) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := &sarama.ProducerMessage{
			Topic: out.Address,
			Value: sarama.ByteEncoder(out.Payload),
		}
		for k, v := range out.Headers {
			msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
		}
		_, _, err := producer.SendMessage(msg)
		return err
	}
}

// Open returns an opener consuming every partition of topic from offset
// (sarama.OffsetNewest or sarama.OffsetOldest).
func Open(consumer sarama.Consumer, topic string, offset int64) binding.Opener {
	return func(ctx context.Context) (binding.Source, error) {
		partitions, err := consumer.Partitions(topic)
		if err != nil {
			return nil, fmt.Errorf("list partitions of %s: %w", topic, err)
		}

		src := &source{
			messages: make(chan *sarama.ConsumerMessage),
			errs:     make(chan error),
			done:     make(chan struct{}),
		}
		for _, p := range partitions {
			pc, err := consumer.ConsumePartition(topic, p, offset)
			if err != nil {
				src.Close()
				return nil, fmt.Errorf("consume %s/%d: %w", topic, p, err)
			}
			src.partitions = append(src.partitions, pc)
			src.wg.Add(1)
			go src.forward(pc)
		}
		return src, nil
	}
}

type source struct {
	partitions []sarama.PartitionConsumer
	messages   chan *sarama.ConsumerMessage
	errs       chan error
	done       chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup
}

func (s *source) forward(pc sarama.PartitionConsumer) {
	defer s.wg.Done()
	msgs, errs := pc.Messages(), pc.Errors()
	for msgs != nil || errs != nil {
		select {
		case <-s.done:
			return
		case m, ok := <-msgs:
			if !ok {
				msgs = nil
				continue
			}
			select {
			case s.messages <- m:
			case <-s.done:
				return
			}
		case e, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			select {
			case s.errs <- e:
			case <-s.done:
				return
			}
		}
	}
}

func (s *source) Next(ctx context.Context) (binding.Delivery, error) {
	select {
	case <-ctx.Done():
		return binding.Delivery{}, ctx.Err()
	case <-s.done:
		return binding.Delivery{}, binding.ErrSourceClosed
	case e := <-s.errs:
		return binding.Delivery{}, binding.Transient(e)
	case m := <-s.messages:
		headers := make(map[string]string, len(m.Headers))
		for _, h := range m.Headers {
			if h != nil {
				headers[string(h.Key)] = string(h.Value)
			}
		}
		return binding.Delivery{Address: m.Topic, Payload: m.Value, Headers: headers}, nil
	}
}

func (s *source) Close() error {
	var first error
	s.closeOnce.Do(func() {
		close(s.done)
		for _, pc := range s.partitions {
			if err := pc.Close(); err != nil && first == nil {
				first = err
			}
		}
		s.wg.Wait()
	})
	return first
}
