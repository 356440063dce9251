package metrics

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakePinger struct {
	ok  bool
	err error
}

func (f fakePinger) Ping(context.Context) (bool, error) { return f.ok, f.err }

func TestPingStore(t *testing.T) {
	if got := pingStore(fakePinger{ok: true}, nil); got != 1 {
		t.Fatalf("expected 1, got %v", got)
	}
	if got := pingStore(fakePinger{ok: false}, nil); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
	if got := pingStore(fakePinger{err: errors.New("refused")}, nil); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestHelpersBeforeInit(t *testing.T) {
	// Collectors are nil until Init; helpers must be no-ops.
	ObserveStoreQuery("", "", time.Millisecond)
	IncAlertScan("")
	AddAlerts("voltage", 2)
	SessionOpened("websocket")
	SessionClosed("websocket")
	IncProtocolWrite(ResultError)
}
