package dmtp

import "testing"

func TestDefaultConfigIsUsable(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Transport != "udp" {
		t.Errorf("Transport = %q, want udp", cfg.Transport)
	}
	if cfg.QueueCapacity <= 0 {
		t.Errorf("QueueCapacity = %d, want > 0", cfg.QueueCapacity)
	}
}

func TestOptionsOverrideDefaults(t *testing.T) {
	cfg := DefaultConfig()
	for _, opt := range []Option{
		WithServers("primary.example:8090", "secondary.example:8090"),
		WithTransport("tcp"),
		WithIdentity([]byte{1, 2, 3, 4}, "", ""),
		WithQueue(128, "/tmp/queue.bin", true),
	} {
		opt(&cfg)
	}

	if cfg.URLPrimary != "primary.example:8090" || cfg.URLSecondary != "secondary.example:8090" {
		t.Errorf("servers not applied: %+v", cfg)
	}
	if cfg.Transport != "tcp" {
		t.Errorf("Transport = %q, want tcp", cfg.Transport)
	}
	if len(cfg.UniqueID) != 4 {
		t.Errorf("UniqueID = %v, want 4 bytes", cfg.UniqueID)
	}
	if cfg.QueueCapacity != 128 || cfg.QueuePath != "/tmp/queue.bin" || !cfg.QueueOverwrite {
		t.Errorf("queue options not applied: %+v", cfg)
	}
}
