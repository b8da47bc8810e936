// Package pubsub wraps the Pub/Sub v2 client used by the outbox relay.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/learnhub-backend/pkg/config"
	"github.com/angelmondragon/learnhub-backend/pkg/logger"
)

var (
	ErrNotInitialized = errors.New("pubsub client not initialized")
	ErrTopicMissing   = errors.New("pubsub topic does not exist")
)

// Client owns the Pub/Sub connection and one publisher per topic. Publishers are
// flushed on Close.
type Client struct {
	raw         *pubsub.Client
	project     string
	domainTopic string

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// TopicPath expands a bare topic id into its resource name. Full resource names pass through.
func TopicPath(project, topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return ""
	}
	if strings.HasPrefix(topic, "projects/") && strings.Contains(topic, "/topics/") {
		return topic
	}
	project = strings.TrimSpace(project)
	if project == "" {
		return ""
	}
	return "projects/" + project + "/topics/" + topic
}

// NewClient dials Pub/Sub and checks the domain topic. With cfg.CreateTopic set a missing
// topic is created instead, which is what local emulators need.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errors.New("gcp project id is required")
	}
	if TopicPath(project, cfg.DomainTopic) == "" {
		return nil, errors.New("pubsub domain topic is required")
	}

	var opts []option.ClientOption
	if creds := strings.TrimSpace(gcp.CredentialsJSON); creds != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	}
	raw, err := pubsub.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial pubsub: %w", err)
	}

	c := &Client{
		raw:         raw,
		project:     project,
		domainTopic: cfg.DomainTopic,
		publishers:  make(map[string]*pubsub.Publisher),
	}

	err = c.checkTopic(ctx, cfg.DomainTopic)
	if errors.Is(err, ErrTopicMissing) && cfg.CreateTopic {
		err = c.createTopic(ctx, cfg.DomainTopic)
	}
	if err != nil {
		_ = raw.Close()
		return nil, err
	}

	logg.Info(logg.WithField(ctx, "topic", TopicPath(project, cfg.DomainTopic)), "pubsub ready")
	return c, nil
}

func (c *Client) checkTopic(ctx context.Context, topic string) error {
	name := TopicPath(c.project, topic)
	_, err := c.raw.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%w: %s", ErrTopicMissing, name)
	default:
		return fmt.Errorf("get topic %s: %w", name, err)
	}
}

func (c *Client) createTopic(ctx context.Context, topic string) error {
	name := TopicPath(c.project, topic)
	_, err := c.raw.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: name})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("create topic %s: %w", name, err)
	}
	return nil
}

// Publisher returns the cached publisher for topic, or nil when the client is unusable.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.raw == nil {
		return nil
	}
	name := TopicPath(c.project, topic)
	if name == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.publishers[name]; ok {
		return p
	}
	p := c.raw.Publisher(name)
	c.publishers[name] = p
	return p
}

// Ping reports whether the domain topic is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.raw == nil {
		return ErrNotInitialized
	}
	return c.checkTopic(ctx, c.domainTopic)
}

// Close flushes pending publishes and releases the connection.
func (c *Client) Close() error {
	if c == nil || c.raw == nil {
		return nil
	}
	c.mu.Lock()
	for name, p := range c.publishers {
		p.Stop()
		delete(c.publishers, name)
	}
	c.mu.Unlock()
	return c.raw.Close()
}
