package bridge

import (
	"testing"

	"dominicbreuker/pollcat/pkg/config"
	"dominicbreuker/pollcat/pkg/engine"
	"dominicbreuker/pollcat/pkg/protocol"
)

func newProtocol(t *testing.T) *protocol.Protocol {
	t.Helper()
	cfg := config.NewEngine()
	cfg.Workers = 4
	e, err := engine.New(cfg, nil)
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return protocol.New(e, nil)
}
