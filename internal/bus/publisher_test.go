package bus

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/linguaflow/lingua-core/internal/config"
	"github.com/linguaflow/lingua-core/internal/protocol"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func startTestBus(t *testing.T) *Client {
	t.Helper()
	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	})
	if err != nil {
		t.Fatalf("create server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded server did not start")
	}
	t.Cleanup(ns.Shutdown)

	client, err := Connect(context.Background(), config.BusConfig{
		Servers:        []string{ns.ClientURL()},
		ConnectTimeout: 2000,
	}, newLogger())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestPublisherDeliversTranslation(t *testing.T) {
	client := startTestBus(t)
	if !client.Healthy() {
		t.Fatal("expected healthy client after connect")
	}

	sub, err := client.Conn().SubscribeSync(protocol.SubjectTranslationText)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	p := NewPublisher(client, newLogger())
	if p.js == nil {
		t.Fatal("expected jetstream publishing against a jetstream-enabled bus")
	}
	p.TranslationText("session-1", "client-1", "bonjour", "French")

	msg, err := sub.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("next msg: %v", err)
	}
	var tr protocol.Translation
	if err := json.Unmarshal(msg.Data, &tr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tr.Text != "bonjour" || tr.Language != "French" || tr.SessionID != "session-1" {
		t.Fatalf("unexpected translation message: %+v", tr)
	}
}

func TestPublisherCreatesEventStream(t *testing.T) {
	client := startTestBus(t)
	_ = NewPublisher(client, newLogger())

	info, err := client.JetStream().StreamInfo(eventStream)
	if err != nil {
		t.Fatalf("stream info: %v", err)
	}
	if len(info.Config.Subjects) != 2 {
		t.Fatalf("unexpected stream subjects: %v", info.Config.Subjects)
	}
}

func TestPublisherLifecycleMessages(t *testing.T) {
	client := startTestBus(t)

	started, err := client.Conn().SubscribeSync(protocol.SubjectSessionStarted)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	stopped, err := client.Conn().SubscribeSync(protocol.SubjectSessionStopped)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	p := NewPublisher(client, newLogger())
	p.SessionStarted("session-1", "client-1", "German", "male")
	p.SessionStopped("session-1", "client-1")

	msg, err := started.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("next started msg: %v", err)
	}
	var ss protocol.SessionStarted
	if err := json.Unmarshal(msg.Data, &ss); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ss.Language != "German" || ss.Gender != "male" {
		t.Fatalf("unexpected started message: %+v", ss)
	}
	if _, err := stopped.NextMsg(2 * time.Second); err != nil {
		t.Fatalf("next stopped msg: %v", err)
	}
}
