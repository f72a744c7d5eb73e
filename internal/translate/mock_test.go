package translate

import (
	"context"
	"errors"
	"io"
	"testing"
)

func TestMockConnReplaysEvents(t *testing.T) {
	p := NewMockProvider()
	conn, err := p.Connect(context.Background(), SessionConfig{Language: "French", Gender: "female"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	mc := p.LastConn()
	if mc == nil {
		t.Fatal("expected a recorded connection")
	}

	mc.Emit(Event{Text: "bonjour"})
	ev, err := conn.Receive()
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if ev.Text != "bonjour" {
		t.Fatalf("unexpected event: %+v", ev)
	}

	if err := conn.Send(Frame{Data: []byte{1, 2}, MIME: "audio/pcm"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := mc.Sent(); len(got) != 1 || got[0].MIME != "audio/pcm" {
		t.Fatalf("unexpected sent frames: %+v", got)
	}
}

func TestMockConnCloseUnblocksReceive(t *testing.T) {
	p := NewMockProvider()
	conn, err := p.Connect(context.Background(), SessionConfig{})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := conn.Receive()
		done <- err
	}()

	if err := conn.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := <-done; !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after close, got %v", err)
	}
	_ = conn.Close()
	if p.LastConn().CloseCalls() != 2 {
		t.Fatalf("expected close calls counted, got %d", p.LastConn().CloseCalls())
	}
}

func TestMockProviderConnectFailure(t *testing.T) {
	p := NewMockProvider()
	p.ConnectErr = errors.New("no route")
	if _, err := p.Connect(context.Background(), SessionConfig{}); err == nil {
		t.Fatal("expected connect error")
	}
	if len(p.Conns()) != 0 {
		t.Fatal("failed connect should not record a connection")
	}
}
