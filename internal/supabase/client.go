package supabase

import (
	"fmt"

	"github.com/supabase-community/supabase-go"

	"reimagine-studio/internal/config"
)

type Client struct {
	Supabase *supabase.Client
	Config   *config.Config
}

func NewClient(cfg *config.Config) (*Client, error) {
	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabasePublishableKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &Client{
		Supabase: client,
		Config:   cfg,
	}, nil
}

// Storage returns an object store bound to the configured bucket.
func (c *Client) Storage() *StorageClient {
	return NewStorageClient(c.Config.SupabaseURL, c.Config.SupabasePublishableKey, c.Config.SupabaseStorageBucket)
}

// Realtime returns the project event publisher backed by this client.
func (c *Client) Realtime() *RealtimeClient {
	return NewRealtimeClient(c.Supabase)
}
