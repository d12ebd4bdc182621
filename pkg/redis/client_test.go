package redis

import (
	"testing"

	"github.com/kasirkita/kasirkita-backend/pkg/config"
)

func TestOptionsFromConfig_RequiresTarget(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error when neither URL nor address is set")
	}
}

func TestOptionsFromConfig_ParsesURL(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://:pw@localhost:6380/2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "localhost:6380" {
		t.Fatalf("addr = %q", opts.Addr)
	}
	if opts.DB != 2 {
		t.Fatalf("db = %d", opts.DB)
	}
}

func TestKeyBuilders(t *testing.T) {
	c := &Client{}
	if got := c.WebhookDedupKey("shopee", "evt-1"); got != "kk:webhook:shopee:evt-1" {
		t.Fatalf("webhook key = %q", got)
	}
	if got := c.SyncLeaseKey("store-1"); got != "kk:sync_lease:store-1" {
		t.Fatalf("lease key = %q", got)
	}
	if got := c.buildKey("a", "", "b"); got != "kk:a:b" {
		t.Fatalf("empty segments should be skipped, got %q", got)
	}
}
