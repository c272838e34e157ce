package auth

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func startCallbackServer(t *testing.T) *CallbackServer {
	t.Helper()
	server, err := NewCallbackServer("127.0.0.1:0", "/callback")
	if err != nil {
		t.Fatalf("NewCallbackServer() error = %v", err)
	}
	server.Start()
	t.Cleanup(func() { _ = server.Shutdown(context.Background()) })
	return server
}

func hit(t *testing.T, port int, query string) int {
	t.Helper()
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/callback?%s", port, query))
	if err != nil {
		t.Errorf("callback request failed: %v", err)
		return 0
	}
	_ = resp.Body.Close()
	return resp.StatusCode
}

func TestCallbackServer(t *testing.T) {
	server := startCallbackServer(t)
	if server.Port() == 0 {
		t.Fatal("Server port should not be 0 after starting")
	}

	go hit(t, server.Port(), "code=test_code&state=test_state")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := server.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	if result.Code != "test_code" {
		t.Errorf("Code = %q, want %q", result.Code, "test_code")
	}
	if err := result.Verify("test_state"); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
	if err := result.Verify("other_state"); err == nil {
		t.Error("Verify() with wrong state succeeded")
	}
}

func TestCallbackServerError(t *testing.T) {
	server := startCallbackServer(t)

	status := make(chan int, 1)
	go func() { status <- hit(t, server.Port(), "error=access_denied&state=s") }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := server.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if result.Error != "access_denied" {
		t.Errorf("Error = %q, want %q", result.Error, "access_denied")
	}
	if err := result.Verify("s"); err == nil {
		t.Error("Verify() of denied callback succeeded")
	}
	if got := <-status; got != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", got, http.StatusBadRequest)
	}
}

func TestCallbackServerTimeout(t *testing.T) {
	server := startCallbackServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := server.Wait(ctx)
	if err != context.DeadlineExceeded {
		t.Errorf("Wait() error = %v, want %v", err, context.DeadlineExceeded)
	}
}
