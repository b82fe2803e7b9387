// Package pubsub owns the Pub/Sub v2 client and the per-topic publishers the
// outbox relay sends through.
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
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront-fulfillment/pkg/config"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

type Client struct {
	client  *pubsub.Client
	project string
	topics  []string
	create  bool

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient connects to Pub/Sub and verifies the configured topics. With
// CreateTopics set, missing topics are created instead of failing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	topics, err := topicPaths(project, cfg.OrdersTopic, cfg.InventoryTopic)
	if err != nil {
		return nil, err
	}

	ps, err := pubsub.NewClient(ctx, project, clientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	c := &Client{
		client:     ps,
		project:    project,
		topics:     topics,
		create:     cfg.CreateTopics,
		publishers: map[string]*pubsub.Publisher{},
	}
	if err := c.checkTopics(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "topics", strings.Join(topics, ",")), "pubsub client ready")
	}
	return c, nil
}

func clientOptions(cfg config.PubSubConfig) []option.ClientOption {
	host := strings.TrimSpace(cfg.EmulatorHost)
	if host == "" {
		return nil
	}
	return []option.ClientOption{
		option.WithEndpoint(host),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	}
}

func (c *Client) checkTopics(ctx context.Context) error {
	admin := c.client.TopicAdminClient
	for _, topic := range c.topics {
		_, err := admin.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: topic})
		switch {
		case err == nil:
		case status.Code(err) == codes.NotFound && c.create:
			_, err = admin.CreateTopic(ctx, &pubsubpb.Topic{Name: topic})
			if err != nil && status.Code(err) != codes.AlreadyExists {
				return fmt.Errorf("create topic %s: %w", topic, err)
			}
		case status.Code(err) == codes.NotFound:
			return fmt.Errorf("topic %s does not exist", topic)
		default:
			return fmt.Errorf("get topic %s: %w", topic, err)
		}
	}
	return nil
}

// topicPaths expands short topic ids to full resource names. Blank names are
// skipped; at least one topic is required.
func topicPaths(project string, names ...string) ([]string, error) {
	var out []string
	for _, name := range names {
		path, err := topicPath(project, name)
		if err != nil {
			return nil, err
		}
		if path != "" {
			out = append(out, path)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("pubsub topic name is required")
	}
	return out, nil
}

func topicPath(project, name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", nil
	case strings.HasPrefix(name, "projects/"):
		if parts := strings.Split(name, "/"); len(parts) != 4 || parts[2] != "topics" || parts[1] == "" || parts[3] == "" {
			return "", fmt.Errorf("malformed topic resource %q", name)
		}
		return name, nil
	case strings.Contains(name, "/"):
		return "", fmt.Errorf("malformed topic id %q", name)
	}
	return "projects/" + strings.TrimSpace(project) + "/topics/" + name, nil
}

// Publisher returns the cached publisher for a topic id or resource name.
// Message ordering is enabled; the relay keys messages by aggregate id.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	path, err := topicPath(c.project, name)
	if err != nil || path == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.publishers[path]; ok {
		return p
	}
	p := c.client.Publisher(path)
	p.EnableMessageOrdering = true
	c.publishers[path] = p
	return p
}

// Ping re-checks that the topics are reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	return c.checkTopics(ctx)
}

// Close flushes every publisher before closing the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for path, p := range c.publishers {
		p.Stop()
		delete(c.publishers, path)
	}
	c.mu.Unlock()
	return c.client.Close()
}
