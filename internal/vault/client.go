package vault

import (
	"context"
	"fmt"

	"github.com/hashicorp/vault/api"
)

// Client wraps HashiCorp Vault for reading the external source-database
// credentials from a KV v2 mount, so production deployments don't have to
// put the Moodle/Woo passwords in the environment.
type Client struct {
	client  *api.Client
	kvMount string
}

// Config holds Vault configuration
type Config struct {
	Address string
	Token   string
	KVMount string
}

// NewClient creates a new Vault client
func NewClient(cfg *Config) (*Client, error) {
	config := api.DefaultConfig()
	config.Address = cfg.Address

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{
		client:  client,
		kvMount: cfg.KVMount,
	}, nil
}

// SourceCredentials reads the secret at the given path and returns its
// string fields. Expected keys are "moodle_password" and "woo_password".
func (c *Client) SourceCredentials(ctx context.Context, secretPath string) (map[string]string, error) {
	secret, err := c.client.KVv2(c.kvMount).Get(ctx, secretPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret %s: %w", secretPath, err)
	}

	creds := make(map[string]string, len(secret.Data))
	for key, value := range secret.Data {
		if s, ok := value.(string); ok {
			creds[key] = s
		}
	}

	if len(creds) == 0 {
		return nil, fmt.Errorf("secret %s contains no string fields", secretPath)
	}

	return creds, nil
}
