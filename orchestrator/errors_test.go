package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"contextbase/auth"
	"contextbase/clients/chatclient"
)

func TestNewFailure(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantKind   Kind
		wantStatus int
	}{
		{name: "unauthorized", err: &chatclient.HTTPError{StatusCode: 401}, wantKind: KindUnauthorized, wantStatus: 401},
		{name: "forbidden", err: &chatclient.HTTPError{StatusCode: 403}, wantKind: KindUnauthorized, wantStatus: 403},
		{name: "not found", err: &chatclient.HTTPError{StatusCode: 404}, wantKind: KindNotFound, wantStatus: 404},
		{name: "unprocessable", err: &chatclient.HTTPError{StatusCode: 422}, wantKind: KindValidation, wantStatus: 400},
		{name: "rate limited", err: &chatclient.HTTPError{StatusCode: 429}, wantKind: KindRateLimited, wantStatus: 429},
		{name: "bad gateway", err: &chatclient.HTTPError{StatusCode: 502}, wantKind: KindUnavailable, wantStatus: 503},
		{name: "teapot", err: &chatclient.HTTPError{StatusCode: 418}, wantKind: KindServer, wantStatus: 500},
		{name: "wrapped http error", err: fmt.Errorf("call: %w", &chatclient.HTTPError{StatusCode: 500}), wantKind: KindServer, wantStatus: 500},
		{name: "expired token", err: fmt.Errorf("Get x: %w", auth.ErrTokenExpired), wantKind: KindUnauthorized, wantStatus: 401},
		{name: "canceled", err: context.Canceled, wantKind: KindCanceled, wantStatus: StatusClientClosedRequest},
		{name: "deadline", err: context.DeadlineExceeded, wantKind: KindTransport, wantStatus: http.StatusGatewayTimeout},
		{name: "network", err: errors.New("dial tcp: connection refused"), wantKind: KindTransport, wantStatus: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFailure(OpFetchChats, tt.err)
			assert.Equal(t, tt.wantKind, f.Kind)
			assert.Equal(t, tt.wantStatus, f.StatusCode)
			assert.Equal(t, OpFetchChats, f.Op)
			assert.ErrorIs(t, f, tt.err)
		})
	}
}

func TestNewFailure_KeepsExisting(t *testing.T) {
	orig := &Failure{Op: OpSendMessage, Kind: KindCanceled}
	assert.Same(t, orig, newFailure(OpFetchChats, orig))
}

func TestFailure_Error(t *testing.T) {
	f := &Failure{Op: OpDeleteChat, Kind: KindNotFound, Message: "Chat not found"}
	assert.Equal(t, "delete_chat: not_found: Chat not found", f.Error())
}
