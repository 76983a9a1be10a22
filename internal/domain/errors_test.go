package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNetworkError(t *testing.T) {
	baseErr := errors.New("connection refused")

	t.Run("retriable error", func(t *testing.T) {
		err := NewNetworkError("connect", baseErr)

		if !err.IsRetriable() {
			t.Error("Expected error to be retriable")
		}

		want := "network error [connect]: connection refused"
		if err.Error() != want {
			t.Errorf("Error message = %q, want %q", err.Error(), want)
		}

		if !errors.Is(err, baseErr) {
			t.Error("Expected error to wrap baseErr")
		}
	})

	t.Run("fatal error", func(t *testing.T) {
		err := NewFatalNetworkError("auth", baseErr)

		if err.IsRetriable() {
			t.Error("Expected error to not be retriable")
		}
	})

	t.Run("IsRetriable helper", func(t *testing.T) {
		retriable := NewNetworkError("dial", baseErr)
		fatal := NewFatalNetworkError("auth", baseErr)
		plain := errors.New("plain error")

		if !IsRetriable(retriable) {
			t.Error("IsRetriable should return true for retriable error")
		}

		if IsRetriable(fatal) {
			t.Error("IsRetriable should return false for fatal error")
		}

		if IsRetriable(plain) {
			t.Error("IsRetriable should return false for plain error")
		}
	})
}

func TestConfigError(t *testing.T) {
	baseErr := errors.New("missing value")
	err := &ConfigError{Field: "api_key", Err: baseErr}

	if err.IsRetriable() {
		t.Error("ConfigError should never be retriable")
	}

	expected := "config error [api_key]: missing value"
	if err.Error() != expected {
		t.Errorf("Error message = %q, want %q", err.Error(), expected)
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("stopPrice", "stopPrice is required for STOP_MARKET orders")

	if err.IsRetriable() {
		t.Error("ValidationError should never be retriable")
	}

	expected := "validation error [stopPrice]: stopPrice is required for STOP_MARKET orders"
	if err.Error() != expected {
		t.Errorf("Error message = %q, want %q", err.Error(), expected)
	}

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Error("Expected errors.As to match *ValidationError")
	}
	if ve.Field != "stopPrice" {
		t.Errorf("Field = %q, want %q", ve.Field, "stopPrice")
	}
}

func TestApiError(t *testing.T) {
	t.Run("message includes status, code and msg", func(t *testing.T) {
		err := &ApiError{Code: -2013, Message: "Order does not exist", HTTPStatus: 400}

		want := "api error: status=400 code=-2013 msg=Order does not exist"
		if err.Error() != want {
			t.Errorf("Error message = %q, want %q", err.Error(), want)
		}
	})

	t.Run("retriability", func(t *testing.T) {
		cases := []struct {
			name      string
			err       *ApiError
			retriable bool
		}{
			{"client mistake", &ApiError{Code: -2013, HTTPStatus: 400}, false},
			{"invalid quantity", &ApiError{Code: -1013, HTTPStatus: 400}, false},
			{"server failure", &ApiError{Code: -1000, HTTPStatus: 500}, true},
			{"rate limited", &ApiError{Code: -1003, HTTPStatus: 429}, true},
			{"banned", &ApiError{Code: -1003, HTTPStatus: 418}, true},
			{"disconnected before response", &ApiError{Code: -1001, HTTPStatus: 400}, true},
			{"timeout waiting for backend", &ApiError{Code: -1016, HTTPStatus: 400}, true},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				if got := IsRetriable(tc.err); got != tc.retriable {
					t.Errorf("IsRetriable(%v) = %v, want %v", tc.err, got, tc.retriable)
				}
			})
		}
	})
}

func TestProtocolError(t *testing.T) {
	baseErr := errors.New("unexpected end of JSON input")
	err := &ProtocolError{Op: "decode order", Err: baseErr}

	if err.IsRetriable() {
		t.Error("ProtocolError should never be retriable")
	}

	if !errors.Is(err, baseErr) {
		t.Error("Expected error to wrap baseErr")
	}

	if !strings.Contains(err.Error(), "decode order") {
		t.Errorf("Error message %q should contain the operation", err.Error())
	}
}
