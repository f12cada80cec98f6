package zeroconf_test

import (
	"context"
	"testing"
	"time"

	"github.com/micro-nova/gl846-go/internal/zeroconf"
)

// Start must return once its context ends, whether or not mDNS works in
// the test environment.
func TestStartReturnsOnCancel(t *testing.T) {
	svc := zeroconf.New("gl846d-test", 18846, []string{"model=test", "ready=false"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- svc.Start(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Logf("Start returned error (no multicast here?): %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Start did not return within 3 seconds after context cancellation")
	}
}

func TestUpdateTXTNeedsRunningServer(t *testing.T) {
	for _, records := range [][]string{nil, {"ready=true"}} {
		svc := zeroconf.New("gl846d-test", 18846, nil)
		if err := svc.UpdateTXT(records); err == nil {
			t.Errorf("UpdateTXT(%v) before Start should fail", records)
		}
	}
}
