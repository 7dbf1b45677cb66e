package appconfig

import "testing"

func TestDefaultConfigDebugOff(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if cfg.Logging.Debug {
		t.Fatalf("expected debug logging to default false")
	}
}
