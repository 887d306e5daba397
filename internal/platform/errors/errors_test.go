package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestWrapPreservesTypedError(t *testing.T) {
	inner := New(KindUpstream, "asr.transcribe", "service unreachable")
	outer := Wrap(KindInternal, "session.turn", "turn failed", inner)

	if outer.Kind != KindUpstream {
		t.Fatalf("expected wrap to keep original kind, got %s", outer.Kind)
	}
	if !IsKind(outer, KindUpstream) {
		t.Fatalf("IsKind should match the inner kind")
	}
}

func TestWrapNilReturnsNil(t *testing.T) {
	if err := Wrap(KindTransport, "ws.write", "send failed", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestKindOfUntyped(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", stderrors.New("plain"))
	if KindOf(err) != KindInternal {
		t.Fatalf("untyped errors default to internal, got %s", KindOf(err))
	}
}

func TestTerminalKinds(t *testing.T) {
	cases := map[Kind]bool{
		KindSlowConsumer:    true,
		KindTransport:       true,
		KindInternal:        true,
		KindUpstream:        false,
		KindCancelled:       false,
		KindSegmentTooSmall: false,
		KindOverloaded:      false,
	}
	for kind, want := range cases {
		if got := Terminal(New(kind, "op", "msg")); got != want {
			t.Fatalf("Terminal(%s) = %v, want %v", kind, got, want)
		}
	}
}

func TestUnwrapChain(t *testing.T) {
	cause := stderrors.New("socket closed")
	err := Wrap(KindTransport, "ws.read", "read failed", cause)
	if !stderrors.Is(err, cause) {
		t.Fatalf("expected errors.Is to reach the cause")
	}
}
