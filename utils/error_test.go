package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOfAndHTTPStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		kind   ErrorKind
		status int
	}{
		{"invalid argument", InvalidArgument("bad %s", "input"), KindInvalidArgument, http.StatusBadRequest},
		{"invalid operation", InvalidOperation("not now"), KindInvalidOperation, http.StatusBadRequest},
		{"not found", NotFound("missing"), KindNotFound, http.StatusNotFound},
		{"unexpected", Unexpected(errors.New("db down")), KindUnexpected, http.StatusBadRequest},
		{"plain error", errors.New("boom"), KindUnexpected, http.StatusBadRequest},
		{"wrapped not found", fmt.Errorf("load: %w", ErrorRecordNotFound), KindNotFound, http.StatusNotFound},
		{"wrapped app error", fmt.Errorf("ctx: %w", InvalidOperation("x")), KindInvalidOperation, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.kind {
				t.Fatalf("kind: got %s want %s", got, tc.kind)
			}
			if got := HTTPStatus(tc.err); got != tc.status {
				t.Fatalf("status: got %d want %d", got, tc.status)
			}
		})
	}
}

func TestUnexpectedKeepsClassifiedErrors(t *testing.T) {
	inner := NotFound("transaction not found")
	if got := Unexpected(inner); got != inner {
		t.Fatalf("Unexpected rewrapped a classified error")
	}
	if Unexpected(nil) != nil {
		t.Fatalf("Unexpected(nil) should be nil")
	}
	if got := InvalidArgument("quantity must be greater than zero").Error(); got != "quantity must be greater than zero" {
		t.Fatalf("message: got %q", got)
	}
	if !errors.Is(NotFound("x"), ErrorRecordNotFound) {
		t.Fatalf("NotFound should unwrap to ErrorRecordNotFound")
	}
	if KindOf(nil) != "" || IsKind(nil, KindUnexpected) {
		t.Fatalf("nil error must not be classified")
	}
}
