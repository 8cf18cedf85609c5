// Package fanout republishes reconciled updates to external channels so
// other processes can follow the mirrored queue without their own backend
// connection. Publishers are read-only consumers of the mirror; they never
// write back into it.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"pressline.sync/internal/core/domain"
	"pressline.sync/internal/core/logger"
	"pressline.sync/internal/core/ports"
	"pressline.sync/internal/mirror"
)

const (
	jobChannel   = "pressline:jobs"
	statsChannel = "pressline:stats"
)

type RedisPublisher struct {
	client *redis.Client
}

var _ ports.UpdatePublisher = (*RedisPublisher)(nil)

func NewRedisPublisher(url string) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisPublisher{client: redis.NewClient(opts)}, nil
}

// jobEnvelope is the wire shape published on the job channel.
type jobEnvelope struct {
	Event domain.EventType `json:"event"`
	Job   *domain.Job      `json:"job"`
}

func (p *RedisPublisher) PublishJob(ctx context.Context, event domain.EventType, job *domain.Job) error {
	data, err := json.Marshal(jobEnvelope{Event: event, Job: job})
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, jobChannel, data).Err()
}

func (p *RedisPublisher) PublishStats(ctx context.Context, stats *domain.QueueStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, statsChannel, data).Err()
}

// Run consumes updates until the channel closes or ctx is cancelled.
// Publish failures are logged and skipped; the mirror is the source of
// truth, fanout is best effort.
func (p *RedisPublisher) Run(ctx context.Context, updates <-chan mirror.Update) {
	log := logger.With("component", "fanout-redis")
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			var err error
			switch {
			case u.Stats != nil:
				err = p.PublishStats(ctx, u.Stats)
			case u.Job != nil:
				err = p.PublishJob(ctx, u.Type, u.Job)
			}
			if err != nil {
				log.Warn("publish failed", "error", err)
			}
		}
	}
}

// Client exposes the underlying connection for health checks.
func (p *RedisPublisher) Client() *redis.Client {
	return p.client
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
