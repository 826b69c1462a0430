package logger

import (
	"context"
	"sync"
	"testing"
	"time"
)

type capturePublisher struct {
	mu      sync.Mutex
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) Publish(_ context.Context, _ string, _ []byte, v interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, v.([]AggregatedLogEntry))
	return nil
}

func TestCollectorAggregatesDuplicates(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10, Topic: "logs", Publisher: pub})

	for i := 0; i < 3; i++ {
		c.AddLog("error", "feed down", map[string]interface{}{"feed": "sentiment"}, "monitor.go:10")
	}
	c.AddLog("error", "feed down", map[string]interface{}{"feed": "breadth"}, "monitor.go:10")
	if c.Pending() != 2 {
		t.Fatalf("expected 2 distinct entries, got %d", c.Pending())
	}
	c.Close()

	if len(pub.batches) != 1 || len(pub.batches[0]) != 2 {
		t.Fatalf("expected one batch of 2, got %+v", pub.batches)
	}
	total := 0
	for _, e := range pub.batches[0] {
		total += e.Count
	}
	if total != 4 {
		t.Fatalf("expected total count 4, got %d", total)
	}
}

func TestCollectorFlushesAtThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Publisher: pub})
	c.AddLog("warn", "a", nil, "x")
	c.AddLog("warn", "b", nil, "x")
	if c.Pending() != 0 {
		t.Fatalf("threshold should trigger a flush")
	}
	c.Close()
	if len(pub.batches) != 1 {
		t.Fatalf("expected a single batch, got %d", len(pub.batches))
	}
}
