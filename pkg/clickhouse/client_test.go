package clickhouse

import (
	"strings"
	"testing"
	"time"
)

func TestBuildDSN(t *testing.T) {
	dsn := BuildDSN(ClientConfig{
		Host: "ch", Port: 9000, Database: "signalpilot", User: "default", Password: "p@ss",
		DialTimeout: 5 * time.Second, AsyncInsert: true, WaitForAsync: true,
	})
	for _, want := range []string{"clickhouse://default:p%40ss@ch:9000/signalpilot?", "dial_timeout=5s", "async_insert=1", "wait_for_async_insert=1"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("dsn %q missing %q", dsn, want)
		}
	}
	if strings.Contains(dsn, "read_timeout") {
		t.Fatalf("unset read timeout leaked into dsn: %s", dsn)
	}
}

func TestBuildDSNHTTP(t *testing.T) {
	dsn := BuildDSN(ClientConfig{Host: "ch", Port: 8123, Database: "db", UseHTTP: true})
	if !strings.HasPrefix(dsn, "http://") {
		t.Fatalf("expected http scheme, got %s", dsn)
	}
}
