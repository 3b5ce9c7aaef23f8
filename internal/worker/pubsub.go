package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types accepted on the worker subscription.
const (
	JobDistanceWarmup = "distance_warmup"
	JobPricingCheck   = "pricing_check"
	JobHealthCheck    = "health_check"
)

// ErrUnknownJob is returned by Dispatch for an unrecognised job type.
var ErrUnknownJob = errors.New("unknown job type")

// JobMessage is the payload of a worker job message.
type JobMessage struct {
	JobType string `json:"job_type"`
}

// Processor runs jobs named by JobMessage.
type Processor struct {
	warmup *WarmupJob
	logger zerolog.Logger
}

// NewProcessor creates a processor over a warm-up job.
func NewProcessor(warmup *WarmupJob, logger zerolog.Logger) *Processor {
	return &Processor{warmup: warmup, logger: logger}
}

// Dispatch runs the job named by msg.
func (p *Processor) Dispatch(ctx context.Context, msg JobMessage) error {
	switch msg.JobType {
	case JobDistanceWarmup:
		result := p.warmup.Run(ctx)
		// More than half the routes failing means the providers are not healthy.
		if result.Failed > result.Successful {
			return fmt.Errorf("too many warm-up failures: %d/%d", result.Failed, result.TotalRoutes)
		}
		return nil
	case JobPricingCheck:
		return p.warmup.CheckPricing(ctx)
	case JobHealthCheck:
		return p.warmup.HealthCheck(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}
}

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	processor        *Processor
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Processor        *Processor
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 4
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		processor:        cfg.Processor,
		logger:           cfg.Logger,
	}, nil
}

// Start processes messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if h.handle(ctx, msg.ID, msg.Data) {
			msg.Ack()
		} else {
			msg.Nack()
		}
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

// handle reports whether the message should be acked.
func (h *PubSubHandler) handle(ctx context.Context, id string, data []byte) bool {
	return handleJob(ctx, h.processor, h.logger.With().Str("message_id", id).Logger(), data)
}

func handleJob(ctx context.Context, p *Processor, logger zerolog.Logger, data []byte) bool {
	startTime := time.Now()

	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		return false
	}

	if err := p.Dispatch(ctx, msg); err != nil {
		if errors.Is(err, ErrUnknownJob) {
			// Redelivery would never succeed.
			logger.Warn().Str("job_type", msg.JobType).Msg("unknown job type")
			return true
		}
		logger.Error().Err(err).Str("job_type", msg.JobType).Msg("job failed")
		return false
	}

	logger.Info().
		Str("job_type", msg.JobType).
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")
	return true
}
