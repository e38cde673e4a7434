package notify

import (
	"context"
	"testing"

	"github.com/dropDatabas3/sysgate/internal/access"
)

func TestMemory_FanOut(t *testing.T) {
	n := NewMemory()

	var got1, got2 []int64
	n.Subscribe(func(s access.State) { got1 = append(got1, s.Version) })
	n.Subscribe(func(s access.State) { got2 = append(got2, s.Version) })

	_ = n.Publish(context.Background(), access.State{Version: 1})
	_ = n.Publish(context.Background(), access.State{Version: 2})

	if len(got1) != 2 || len(got2) != 2 {
		t.Fatalf("expected both subscribers to see 2 events, got %d and %d", len(got1), len(got2))
	}
	if got1[1] != 2 || got2[1] != 2 {
		t.Fatalf("expected last delivery version=2, got %v / %v", got1, got2)
	}
}

func TestMemory_UnsubscribeStopsDelivery(t *testing.T) {
	n := NewMemory()

	var count int
	sub := n.Subscribe(func(access.State) { count++ })

	_ = n.Publish(context.Background(), access.State{Version: 1})
	sub.Unsubscribe()
	sub.Unsubscribe() // idempotente
	_ = n.Publish(context.Background(), access.State{Version: 2})

	if count != 1 {
		t.Fatalf("expected exactly 1 delivery after unsubscribe, got %d", count)
	}
}

func TestMemory_HandlerCanUnsubscribeItself(t *testing.T) {
	n := NewMemory()

	var count int
	var sub Subscription
	sub = n.Subscribe(func(access.State) {
		count++
		sub.Unsubscribe()
	})

	_ = n.Publish(context.Background(), access.State{Version: 1})
	_ = n.Publish(context.Background(), access.State{Version: 2})

	if count != 1 {
		t.Fatalf("expected self-unsubscribe after first event, got %d deliveries", count)
	}
}
