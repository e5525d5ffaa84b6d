package httpserver

import (
	"net/http"
	"testing"
	"time"
)

func TestNewTimeouts(t *testing.T) {
	srv := New(":8080", http.NewServeMux())

	if srv.Addr != ":8080" {
		t.Fatalf("addr = %q", srv.Addr)
	}
	if srv.Handler == nil {
		t.Fatal("handler not set")
	}
	// The write timeout must exceed the attendance query's 5s datastore
	// timeout or long summaries would be cut off mid-response.
	if srv.WriteTimeout <= 5*time.Second {
		t.Fatalf("write timeout %v leaves no room for the attendance query", srv.WriteTimeout)
	}
	if srv.ReadHeaderTimeout == 0 {
		t.Fatal("header timeout not set")
	}
}
