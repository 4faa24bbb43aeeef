//go:build integration

package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"vcon/internal/platform/config"
	"vcon/internal/platform/kafka"
	"vcon/pkg/testutil/containers"
)

type KafkaPublisherSuite struct {
	suite.Suite
	broker string
}

func TestKafkaPublisherSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaPublisherSuite))
}

func (s *KafkaPublisherSuite) SetupSuite() {
	s.broker = containers.GetManager().GetRedpanda(s.T()).Broker
}

func (s *KafkaPublisherSuite) TestPublishAndConsume() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	const topic = "vcon.events.test"

	producer, err := kafka.New(ctx, config.KafkaConfig{Brokers: []string{s.broker}, Topic: topic, ClientID: "test"})
	s.Require().NoError(err)
	defer producer.Close()

	pub := NewKafkaPublisher(producer, topic)
	s.Require().NoError(pub.Publish(ctx, New(TypeCreated, "u-1", time.Now())))
	s.Require().NoError(pub.Publish(ctx, New(TypeSigned, "u-1", time.Now())))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	var got []Event
	for len(got) < 2 {
		fetches := consumer.PollFetches(ctx)
		s.Require().NoError(ctx.Err())
		fetches.EachRecord(func(r *kgo.Record) {
			var e Event
			s.Require().NoError(json.Unmarshal(r.Value, &e))
			s.Equal("u-1", string(r.Key))
			got = append(got, e)
		})
	}
	s.Equal([]Type{TypeCreated, TypeSigned}, []Type{got[0].Type, got[1].Type})
}
