package repository

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"NiftyEdge/internal/domain/models"
	domrepo "NiftyEdge/internal/domain/repository"
	pkgkafka "NiftyEdge/pkg/kafka"
	applogger "NiftyEdge/pkg/logger"
)

// DefaultArtifactsTopic carries an event per stored run.
const DefaultArtifactsTopic = "niftyedge.artifacts"

// KafkaArtifactPublisher announces stored runs so serving processes can reload.
type KafkaArtifactPublisher struct {
	producer *pkgkafka.Producer
	topic    string
	maxWait  time.Duration
	l        *applogger.Logger
}

func NewKafkaArtifactPublisher(producer *pkgkafka.Producer, topic string, l *applogger.Logger) *KafkaArtifactPublisher {
	if topic == "" {
		topic = DefaultArtifactsTopic
	}
	return &KafkaArtifactPublisher{producer: producer, topic: topic, maxWait: 10 * time.Second, l: l}
}

// PublishArtifacts sends ev keyed by run id, retrying with exponential backoff for up to maxWait.
func (p *KafkaArtifactPublisher) PublishArtifacts(ctx context.Context, ev models.ArtifactsPublished) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = p.maxWait

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		return p.producer.Publish(ctx, p.topic, []byte(ev.RunID), ev)
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return err
	}

	if p.l != nil {
		p.l.Info("artifacts published",
			applogger.String("topic", p.topic),
			applogger.String("run_id", ev.RunID),
			applogger.Int("attempts", attempts))
	}
	return nil
}

func (p *KafkaArtifactPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ domrepo.ArtifactPublisher = (*KafkaArtifactPublisher)(nil)
