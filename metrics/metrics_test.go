package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRequest(t *testing.T) {
	m := New()
	m.RecordRequest("Produce", nil)
	m.RecordRequest("Produce", nil)
	m.RecordRequest("Produce", errors.New("boom"))

	if got := testutil.ToFloat64(m.Requests.WithLabelValues("Produce", OutcomeSuccess)); got != 2 {
		t.Errorf("successful produces = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Requests.WithLabelValues("Produce", OutcomeError)); got != 1 {
		t.Errorf("failed produces = %v, want 1", got)
	}
}

func TestRecordProduceAndConsume(t *testing.T) {
	m := New()
	m.RecordProduce("orders", time.Millisecond)
	m.RecordProduce("orders", 2*time.Millisecond)
	m.RecordConsume("orders", 5)
	m.RecordConsume("orders", 0)

	if got := testutil.ToFloat64(m.MessagesProduced.WithLabelValues("orders")); got != 2 {
		t.Errorf("produced = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.MessagesConsumed.WithLabelValues("orders")); got != 5 {
		t.Errorf("consumed = %v, want 5", got)
	}
	if got := testutil.CollectAndCount(m.AppendLatency); got != 1 {
		t.Errorf("histogram series = %d, want 1", got)
	}
}

func TestConnections(t *testing.T) {
	m := New()
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()

	if got := testutil.ToFloat64(m.OpenConnections); got != 1 {
		t.Errorf("open connections = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ConnectionsClosed); got != 1 {
		t.Errorf("closed connections = %v, want 1", got)
	}
}

func TestSeparateRegistries(t *testing.T) {
	a, b := New(), New()
	a.RecordProduce("orders", time.Millisecond)
	if got := testutil.ToFloat64(b.MessagesProduced.WithLabelValues("orders")); got != 0 {
		t.Errorf("metrics leaked between instances: %v", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordProduce("orders", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `kafkanet_broker_messages_produced_total{topic="orders"} 1`) {
		t.Errorf("exposition missing produced counter:\n%s", body)
	}
}

func TestRuntimeCollectors(t *testing.T) {
	m := New()
	m.RegisterRuntimeCollectors()

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{"go_goroutines", "kafkanet_server_open_connections"} {
		if !names[want] {
			t.Errorf("registry missing %s", want)
		}
	}
}
