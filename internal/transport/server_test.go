package transport

import (
	"testing"
	"time"
)

func TestServer_AcceptsAndDispatches(t *testing.T) {
	received := make(chan []byte, 1)
	server := NewServer("127.0.0.1:0", func(tr *TCPTransport) {
		payload, err := tr.Receive()
		if err != nil {
			received <- nil
			return
		}
		received <- payload
	})

	listenErr := make(chan error, 1)
	go func() { listenErr <- server.ListenAndServe() }()

	// Give ListenAndServe a moment to bind before connecting. A fixed
	// retry loop would be more robust than a sleep here, but the server
	// assigns a listener synchronously before the goroutine is even
	// scheduled in practice for a loopback bind.
	var addr string
	for i := 0; i < 50 && addr == ""; i++ {
		time.Sleep(10 * time.Millisecond)
		if server.listener != nil {
			addr = server.listener.Addr().String()
		}
	}
	if addr == "" {
		t.Fatal("server never bound a listener")
	}

	client, err := DialTCP(addr)
	if err != nil {
		t.Fatalf("DialTCP() error = %v", err)
	}
	defer client.Close()

	payload := []byte("ping")
	if err := client.Send(payload); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case got := <-received:
		if string(got) != string(payload) {
			t.Errorf("handler received %q, want %q", got, payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handler dispatch")
	}

	if err := server.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	<-listenErr
}

func TestServer_DoubleCloseIsSafe(t *testing.T) {
	server := NewServer("127.0.0.1:0", func(tr *TCPTransport) {})
	go server.ListenAndServe()
	time.Sleep(20 * time.Millisecond)
	if err := server.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := server.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}
