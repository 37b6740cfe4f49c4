package rawendpoints

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestInvocationContext(t *testing.T) {
	type key struct{}
	parent := context.WithValue(context.Background(), key{}, "v")
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	ic := NewInvocationContext(parent, w, r, "a", 2)

	if ic.Value(key{}) != "v" {
		t.Error("parent values are not visible")
	}
	if ic.Request() != r || ic.Writer() != w {
		t.Error("request or writer not kept")
	}
	if len(ic.Arguments()) != 2 || ic.Argument(0) != "a" || ic.Argument(1) != 2 {
		t.Errorf("arguments = %v", ic.Arguments())
	}
	if ic.Argument(-1) != nil || ic.Argument(2) != nil {
		t.Error("out of range arguments should be nil")
	}

	ic.SetHeader("X-Test", "1")
	if w.Header().Get("X-Test") != "1" {
		t.Error("SetHeader did not reach the writer")
	}
}

func TestInvocationContextNilWriter(t *testing.T) {
	ic := NewInvocationContext(context.Background(), nil, nil)
	ic.SetHeader("X-Test", "1")
}

func TestFromContext(t *testing.T) {
	ic := NewInvocationContext(context.Background(), nil, nil)

	if got, ok := FromContext(ic); !ok || got != ic {
		t.Error("FromContext(ic) should return ic")
	}

	derived, cancel := context.WithTimeout(ic, time.Minute)
	defer cancel()
	if got, ok := FromContext(derived); !ok || got != ic {
		t.Error("FromContext should find ic in a derived context")
	}

	if _, ok := FromContext(context.Background()); ok {
		t.Error("FromContext(Background) should fail")
	}
}

func TestInvocationContextCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ic := NewInvocationContext(parent, nil, nil)
	cancel()

	select {
	case <-ic.Done():
	case <-time.After(time.Second):
		t.Fatal("cancellation did not propagate")
	}
	if ic.Err() != context.Canceled {
		t.Errorf("Err = %v", ic.Err())
	}
}
