package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"pressline.sync/internal/core/domain"
	"pressline.sync/internal/core/logger"
	"pressline.sync/internal/core/ports"
	"pressline.sync/internal/mirror"
)

const topicPrefix = "pressline"

// MQTTPublisher mirrors updates onto MQTT topics:
// pressline/jobs/{id} and pressline/stats.
type MQTTPublisher struct {
	client mqtt.Client
}

var _ ports.UpdatePublisher = (*MQTTPublisher)(nil)

func NewMQTTPublisher(brokerURL string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(fmt.Sprintf("pressline-%s", uuid.New().String()[:8]))
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect mqtt broker: %w", token.Error())
	}

	logger.Info("connected to MQTT broker", "broker", brokerURL)
	return &MQTTPublisher{client: client}, nil
}

func (p *MQTTPublisher) PublishJob(ctx context.Context, event domain.EventType, job *domain.Job) error {
	data, err := json.Marshal(jobEnvelope{Event: event, Job: job})
	if err != nil {
		return err
	}
	topic := fmt.Sprintf("%s/jobs/%d", topicPrefix, job.ID)
	p.client.Publish(topic, 0, false, data)
	return nil
}

func (p *MQTTPublisher) PublishStats(ctx context.Context, stats *domain.QueueStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	p.client.Publish(topicPrefix+"/stats", 0, false, data)
	return nil
}

// Run consumes updates until the channel closes or ctx is cancelled.
func (p *MQTTPublisher) Run(ctx context.Context, updates <-chan mirror.Update) {
	log := logger.With("component", "fanout-mqtt")
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

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
