package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
)

func TestTemporary_Status(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{429, true},
		{503, true},
		{504, true},
		{500, false},
		{404, false},
		{400, false},
	}
	for _, tt := range tests {
		err := WithStatus(errors.New("upstream"), tt.code)
		if got := Temporary(err); got != tt.want {
			t.Errorf("Temporary(status %d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestTemporary_WrappedStatus(t *testing.T) {
	err := eris.Wrap(WithStatus(errors.New("slow down"), 429), "geocode: search")
	if !Temporary(err) {
		t.Error("expected wrapped 429 to be temporary")
	}
}

func TestTemporary_Network(t *testing.T) {
	if !Temporary(fmt.Errorf("read: %w", syscall.ECONNRESET)) {
		t.Error("ECONNRESET should be temporary")
	}
	var timeout net.Error = &net.DNSError{Err: "timeout", IsTimeout: true}
	if !Temporary(fmt.Errorf("lookup: %w", timeout)) {
		t.Error("network timeout should be temporary")
	}
	if !Temporary(errors.New("Get \"https://x\": read tcp: i/o timeout")) {
		t.Error("i/o timeout message should be temporary")
	}
}

func TestTemporary_NotTemporary(t *testing.T) {
	if Temporary(nil) {
		t.Error("nil is not temporary")
	}
	if Temporary(errors.New("bad request")) {
		t.Error("plain error is not temporary")
	}
	if Temporary(fmt.Errorf("call: %w", context.Canceled)) {
		t.Error("cancellation is not temporary")
	}
}

func TestWithStatus_Nil(t *testing.T) {
	if WithStatus(nil, 503) != nil {
		t.Error("WithStatus(nil) should stay nil")
	}
}
