package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/vouchernet-backend/pkg/config"
	"github.com/angelmondragon/vouchernet-backend/pkg/logger"
)

// Message is the broker message type, re-exported so callers need not import the SDK.
type Message = pubsub.Message

var ErrUnknownTopic = errors.New("pubsub: topic is not configured")

// Client publishes ledger events to the configured topics. Publisher handles
// are created once per topic and stopped on Close.
type Client struct {
	sdk       *pubsub.Client
	projectID string
	topics    []string
	ordered   bool

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient connects to Pub/Sub and fails unless every configured topic exists.
// PUBSUB_EMULATOR_HOST is honoured by the SDK for local runs.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errors.New("pubsub: gcp project id is required")
	}
	topics := cfg.Topics()
	if len(topics) == 0 {
		return nil, errors.New("pubsub: no topics configured")
	}

	sdk, err := pubsub.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("pubsub: connect: %w", err)
	}
	c := &Client{
		sdk:        sdk,
		projectID:  projectID,
		topics:     topics,
		ordered:    cfg.Ordered,
		publishers: map[string]*pubsub.Publisher{},
	}
	if err := c.Ping(ctx); err != nil {
		_ = sdk.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "topics", topics), "pubsub connected")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	}
	return nil
}

// Ping checks that each configured topic still exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.sdk == nil {
		return errors.New("pubsub: client not initialized")
	}
	for _, topic := range c.topics {
		_, err := c.sdk.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: TopicName(c.projectID, topic)})
		switch {
		case status.Code(err) == codes.NotFound:
			return fmt.Errorf("pubsub: topic %q does not exist", topic)
		case err != nil:
			return fmt.Errorf("pubsub: check topic %q: %w", topic, err)
		}
	}
	return nil
}

// Publish sends msg to topic and waits for the server id. A failed ordered
// publish resumes its ordering key so the next attempt is not rejected.
func (c *Client) Publish(ctx context.Context, topic string, msg *Message) (string, error) {
	pub, err := c.publisher(topic)
	if err != nil {
		return "", err
	}
	id, err := pub.Publish(ctx, msg).Get(ctx)
	if err != nil && msg.OrderingKey != "" {
		pub.ResumePublish(msg.OrderingKey)
	}
	return id, err
}

// Ordered reports whether messages should carry ordering keys.
func (c *Client) Ordered() bool {
	return c != nil && c.ordered
}

func (c *Client) publisher(topic string) (*pubsub.Publisher, error) {
	topic = strings.TrimSpace(topic)
	known := false
	for _, t := range c.topics {
		known = known || t == topic
	}
	if !known {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if pub, ok := c.publishers[topic]; ok {
		return pub, nil
	}
	pub := c.sdk.Publisher(TopicName(c.projectID, topic))
	pub.EnableMessageOrdering = c.ordered
	c.publishers[topic] = pub
	return pub, nil
}

// Close flushes and stops every publisher before closing the connection.
func (c *Client) Close() error {
	if c == nil || c.sdk == nil {
		return nil
	}
	c.mu.Lock()
	for name, pub := range c.publishers {
		pub.Stop()
		delete(c.publishers, name)
	}
	c.mu.Unlock()
	return c.sdk.Close()
}

// TopicName expands a topic id into projects/<project>/topics/<id>. Full
// resource names pass through.
func TopicName(projectID, topic string) string {
	topic = strings.TrimSpace(topic)
	if strings.HasPrefix(topic, "projects/") {
		return topic
	}
	return "projects/" + projectID + "/topics/" + topic
}
