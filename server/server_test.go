package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/CefBoud/kafkanet/broker"
	"github.com/CefBoud/kafkanet/protocol"
	"github.com/CefBoud/kafkanet/serde"
	"github.com/CefBoud/kafkanet/types"
)

func startServer(t *testing.T, config *types.Configuration) (*Server, string) {
	t.Helper()
	b, err := broker.NewBroker(1, t.TempDir())
	if err != nil {
		t.Fatalf("NewBroker: %v", err)
	}
	srv := New(b, config, nil)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	served := make(chan error, 1)
	go func() { served <- srv.Serve(listener) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
		if err := <-served; !errors.Is(err, ErrServerClosed) {
			t.Errorf("Serve returned %v, want ErrServerClosed", err)
		}
		b.Close()
	})
	return srv, listener.Addr().String()
}

func dial(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn net.Conn, requestType types.RequestType, payload any) protocol.Response {
	t.Helper()
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	if err := protocol.WriteRequest(conn, requestType, payload); err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}
	resp, err := protocol.ReadResponse(conn, 0)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	return resp
}

func mustSucceed(t *testing.T, resp protocol.Response) {
	t.Helper()
	if err := resp.Err(); err != nil {
		t.Fatalf("request failed: %v", err)
	}
}

func consume(t *testing.T, conn net.Conn, req protocol.ConsumeRequest) []types.Message {
	t.Helper()
	resp := roundTrip(t, conn, protocol.ConsumeKey, req)
	mustSucceed(t, resp)
	var messages []types.Message
	if err := protocol.DecodeData(resp, &messages); err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
	return messages
}

func TestOrdersScenario(t *testing.T) {
	_, addr := startServer(t, &types.Configuration{})
	conn := dial(t, addr)

	mustSucceed(t, roundTrip(t, conn, protocol.CreateTopicKey, protocol.CreateTopicRequest{Topic: "orders", Partitions: 3}))
	for _, kv := range [][2]string{{"a", "1"}, {"b", "2"}, {"a", "3"}} {
		mustSucceed(t, roundTrip(t, conn, protocol.ProduceKey, protocol.ProduceRequest{Topic: "orders", Key: kv[0], Value: kv[1]}))
	}
	if broker.PartitionForKey("a", 3) == broker.PartitionForKey("b", 3) {
		t.Fatalf("keys a and b share a partition, scenario needs them apart")
	}

	messages := consume(t, conn, protocol.ConsumeRequest{
		Topic:       "orders",
		Partition:   int32(broker.PartitionForKey("a", 3)),
		Offset:      0,
		MaxMessages: 10,
	})
	if len(messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(messages))
	}
	for i, want := range []string{"1", "3"} {
		if messages[i].Value != want || messages[i].Key != "a" || messages[i].Offset != int64(i) {
			t.Errorf("message %d = %+v, want value %s offset %d", i, messages[i], want, i)
		}
	}
}

func TestProduceAutoCreatesTopic(t *testing.T) {
	srv, addr := startServer(t, &types.Configuration{})
	conn := dial(t, addr)

	resp := roundTrip(t, conn, protocol.ProduceKey, protocol.ProduceRequest{Topic: "never-created", Key: "k", Value: "v"})
	mustSucceed(t, resp)
	var result protocol.ProduceResult
	if err := protocol.DecodeData(resp, &result); err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
	if result != (protocol.ProduceResult{Partition: 0, Offset: 0}) {
		t.Errorf("result = %+v", result)
	}
	topic, ok := srv.Broker.GetTopic("never-created")
	if !ok || topic.PartitionCount() != 1 {
		t.Fatalf("auto-created topic missing or has wrong partition count")
	}
}

func TestConcurrentProducersGetContiguousOffsets(t *testing.T) {
	_, addr := startServer(t, &types.Configuration{})
	const producers, perProducer = 8, 25

	var mu sync.Mutex
	seen := make(map[int64]bool)
	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, err := net.Dial("tcp", addr)
			if err != nil {
				t.Errorf("Dial: %v", err)
				return
			}
			defer conn.Close()
			for j := 0; j < perProducer; j++ {
				if err := protocol.WriteRequest(conn, protocol.ProduceKey, protocol.ProduceRequest{Topic: "events", Value: fmt.Sprintf("%d-%d", i, j)}); err != nil {
					t.Errorf("WriteRequest: %v", err)
					return
				}
				resp, err := protocol.ReadResponse(conn, 0)
				if err != nil || resp.Err() != nil {
					t.Errorf("produce failed: %v %v", err, resp.Err())
					return
				}
				var result protocol.ProduceResult
				protocol.DecodeData(resp, &result)
				mu.Lock()
				if seen[result.Offset] {
					t.Errorf("offset %d assigned twice", result.Offset)
				}
				seen[result.Offset] = true
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	for offset := int64(0); offset < producers*perProducer; offset++ {
		if !seen[offset] {
			t.Errorf("offset %d never assigned", offset)
		}
	}
	conn := dial(t, addr)
	messages := consume(t, conn, protocol.ConsumeRequest{Topic: "events", MaxMessages: 1000})
	if len(messages) != producers*perProducer {
		t.Fatalf("consumed %d messages, want %d", len(messages), producers*perProducer)
	}
	for i, m := range messages {
		if m.Offset != int64(i) {
			t.Fatalf("message %d has offset %d", i, m.Offset)
		}
	}
}

func TestErrorsKeepConnectionOpen(t *testing.T) {
	srv, addr := startServer(t, &types.Configuration{})
	conn := dial(t, addr)
	mustSucceed(t, roundTrip(t, conn, protocol.CreateTopicKey, protocol.CreateTopicRequest{Topic: "orders", Partitions: 2}))

	tests := []struct {
		name        string
		requestType types.RequestType
		payload     any
		wantErr     string
	}{
		{"unknown topic", protocol.ConsumeKey, protocol.ConsumeRequest{Topic: "missing", MaxMessages: 1}, "topic not found"},
		{"partition out of range", protocol.ConsumeKey, protocol.ConsumeRequest{Topic: "orders", Partition: 2, MaxMessages: 1}, "partition does not exist"},
		{"zero partitions", protocol.CreateTopicKey, protocol.CreateTopicRequest{Topic: "empty", Partitions: 0}, "below 1"},
		{"invalid topic name", protocol.ProduceKey, protocol.ProduceRequest{Topic: "../etc"}, "invalid topic name"},
		{"malformed payload", protocol.ProduceKey, "not an object", "malformed payload"},
		{"unknown request type", types.RequestType(0x7f), struct{}{}, "unknown request type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := roundTrip(t, conn, tt.requestType, tt.payload)
			if resp.Success || !strings.Contains(resp.Error, tt.wantErr) {
				t.Errorf("response = %+v, want error containing %q", resp, tt.wantErr)
			}
		})
	}

	// still usable after all of the above
	mustSucceed(t, roundTrip(t, conn, protocol.ProduceKey, protocol.ProduceRequest{Topic: "orders", Key: "k", Value: "v"}))
	if got := testutil.ToFloat64(srv.Metrics.Requests.WithLabelValues("Unknown", "error")); got != 1 {
		t.Errorf("unknown requests counted %v, want 1", got)
	}
	if got := testutil.ToFloat64(srv.Metrics.Requests.WithLabelValues("Produce", "success")); got != 1 {
		t.Errorf("successful produces counted %v, want 1", got)
	}
}

func TestConsumeEdgeCases(t *testing.T) {
	_, addr := startServer(t, &types.Configuration{})
	conn := dial(t, addr)
	for i := 0; i < 3; i++ {
		mustSucceed(t, roundTrip(t, conn, protocol.ProduceKey, protocol.ProduceRequest{Topic: "logs", Value: fmt.Sprint(i)}))
	}

	if got := consume(t, conn, protocol.ConsumeRequest{Topic: "logs", Offset: 0, MaxMessages: 0}); len(got) != 0 {
		t.Errorf("maxMessages 0 returned %d messages", len(got))
	}
	if got := consume(t, conn, protocol.ConsumeRequest{Topic: "logs", Offset: 3, MaxMessages: 10}); len(got) != 0 {
		t.Errorf("offset past the end returned %d messages", len(got))
	}
	got := consume(t, conn, protocol.ConsumeRequest{Topic: "logs", Offset: 1, MaxMessages: 1})
	if len(got) != 1 || got[0].Offset != 1 || got[0].Value != "1" {
		t.Errorf("window read = %+v", got)
	}
}

func TestMetadataStub(t *testing.T) {
	_, addr := startServer(t, &types.Configuration{})
	conn := dial(t, addr)
	resp := roundTrip(t, conn, protocol.MetadataKey, protocol.MetadataRequest{})
	if !resp.Success || resp.Data != "[]" {
		t.Errorf("metadata response = %+v", resp)
	}
}

func TestOffsetCommitAndFetch(t *testing.T) {
	_, addr := startServer(t, &types.Configuration{})
	conn := dial(t, addr)
	mustSucceed(t, roundTrip(t, conn, protocol.CreateTopicKey, protocol.CreateTopicRequest{Topic: "orders", Partitions: 1}))

	fetch := func() int64 {
		resp := roundTrip(t, conn, protocol.OffsetFetchKey, protocol.OffsetFetchRequest{Group: "billing", Topic: "orders"})
		mustSucceed(t, resp)
		var result protocol.OffsetResult
		if err := protocol.DecodeData(resp, &result); err != nil {
			t.Fatalf("DecodeData: %v", err)
		}
		return result.Offset
	}
	if got := fetch(); got != types.NoCommittedOffset {
		t.Errorf("offset before commit = %d", got)
	}
	mustSucceed(t, roundTrip(t, conn, protocol.OffsetCommitKey, protocol.OffsetCommitRequest{Group: "billing", Topic: "orders", Offset: 12}))
	if got := fetch(); got != 12 {
		t.Errorf("offset after commit = %d, want 12", got)
	}

	resp := roundTrip(t, conn, protocol.OffsetCommitKey, protocol.OffsetCommitRequest{Topic: "orders", Offset: 1})
	if resp.Success {
		t.Errorf("commit without a group succeeded")
	}
	resp = roundTrip(t, conn, protocol.OffsetFetchKey, protocol.OffsetFetchRequest{Group: "billing", Topic: "missing"})
	if resp.Success {
		t.Errorf("fetch on a missing topic succeeded")
	}
}

func TestOversizedFrameClosesConnection(t *testing.T) {
	_, addr := startServer(t, &types.Configuration{MaxRequestBytes: 64})
	conn := dial(t, addr)
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	encoder := serde.NewEncoder()
	encoder.PutInt8(uint8(protocol.ProduceKey))
	encoder.PutInt32(1000)
	if _, err := conn.Write(encoder.Bytes()); err != nil {
		t.Fatal(err)
	}
	resp, err := protocol.ReadResponse(conn, 0)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if resp.Success || !strings.Contains(resp.Error, "frame length out of bounds") {
		t.Errorf("response = %+v", resp)
	}
	if _, err := protocol.ReadResponse(conn, 0); err != io.EOF {
		t.Errorf("connection still open after oversized frame: %v", err)
	}
}

func TestPanicBecomesErrorResponse(t *testing.T) {
	srv := New(nil, &types.Configuration{}, nil)
	resp := srv.handleRequest(types.Request{Type: protocol.ProduceKey, Body: []byte(`{"Topic":"orders"}`)})
	if resp.Success || !strings.Contains(resp.Error, "internal error handling Produce request") {
		t.Errorf("response = %+v", resp)
	}
	if got := testutil.ToFloat64(srv.Metrics.Requests.WithLabelValues("Produce", "error")); got != 1 {
		t.Errorf("failed produces counted %v, want 1", got)
	}
}

func TestShutdownClosesConnections(t *testing.T) {
	b, err := broker.NewBroker(1, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	srv := New(b, &types.Configuration{}, nil)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	served := make(chan error, 1)
	go func() { served <- srv.Serve(listener) }()

	conn := dial(t, listener.Addr().String())
	mustSucceed(t, roundTrip(t, conn, protocol.MetadataKey, protocol.MetadataRequest{}))
	if srv.Addr().String() != listener.Addr().String() {
		t.Errorf("Addr = %v, want %v", srv.Addr(), listener.Addr())
	}
	if got := testutil.ToFloat64(srv.Metrics.OpenConnections); got != 1 {
		t.Errorf("open connections = %v, want 1", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := <-served; !errors.Is(err, ErrServerClosed) {
		t.Errorf("Serve returned %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Read(make([]byte, 1)); err == nil {
		t.Errorf("connection still open after Shutdown")
	}
	if got := testutil.ToFloat64(srv.Metrics.OpenConnections); got != 0 {
		t.Errorf("open connections after shutdown = %v", got)
	}
	if _, err := net.DialTimeout("tcp", listener.Addr().String(), time.Second); err == nil {
		t.Errorf("listener still accepting after Shutdown")
	}
}
