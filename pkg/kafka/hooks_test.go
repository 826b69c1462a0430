package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestHookChainOrder(t *testing.T) {
	var order []string
	mk := func(name string) ConsumerHook {
		return HookFuncs{
			Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
				order = append(order, "before-"+name)
				return ctx, km, append(data, name...), nil
			},
			After: func(context.Context, string, kafka.Message, []byte, error) {
				order = append(order, "after-"+name)
			},
		}
	}
	chain := NewHookChain(mk("a"), nil, mk("b"))
	ctx, km, data, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte("x"))
	if err != nil {
		t.Fatalf("before: %v", err)
	}
	if string(data) != "xab" {
		t.Fatalf("payload not threaded through hooks: %q", data)
	}
	chain.AfterHandle(ctx, "t", km, data, nil)
	want := []string{"before-a", "before-b", "after-b", "after-a"}
	if len(order) != len(want) {
		t.Fatalf("unexpected order %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("unexpected order %v", order)
		}
	}
}

func TestHookChainRecoversPanics(t *testing.T) {
	var sawErr error
	boom := HookFuncs{Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
		panic("bad hook")
	}}
	observer := HookFuncs{Err: func(_ context.Context, _ string, _ kafka.Message, _ []byte, err error) { sawErr = err }}
	_, _, _, err := NewHookChain(boom, observer).BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var he *HookError
	if !errors.As(err, &he) || he.Code != "ERR_PANIC" {
		t.Fatalf("expected ERR_PANIC, got %v", err)
	}
	if sawErr == nil {
		t.Fatalf("OnError should be broadcast to every hook")
	}
}

func TestTraceHook(t *testing.T) {
	km := kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}}}
	ctx, _, _, err := TraceHook().BeforeHandle(context.Background(), "t", km, nil)
	if err != nil {
		t.Fatalf("before: %v", err)
	}
	if TraceIDFrom(ctx) != "abc" {
		t.Fatalf("trace id not propagated")
	}
}

func TestBackoffBounded(t *testing.T) {
	for attempt := 1; attempt < 40; attempt++ {
		d := backoffWithJitter(10, 1000, attempt)
		if d <= 0 || d > 1000 {
			t.Fatalf("attempt %d: backoff %v out of range", attempt, d)
		}
	}
}
