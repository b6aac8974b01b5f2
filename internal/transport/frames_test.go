package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriahrh/lexlink/domain"
)

func TestDecodeFrame(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		raw      string
		wantOK   bool
		wantKind domain.LinkEventKind
		codeKind domain.CodeKind
		code     string
		message  string
	}{
		{
			name:     "qr update",
			raw:      `{"event":"qr:update","data":{"qr":"data:image/png;base64,AAA","status":"QR_READY"}}`,
			wantOK:   true,
			wantKind: domain.LinkEventCodeReady,
			codeKind: domain.CodeKindQR,
			code:     "data:image/png;base64,AAA",
		},
		{
			name:     "pair code wins over qr",
			raw:      `{"event":"qr:update","data":{"qr":"data:AAA","paircode":"WXYZ-1234"}}`,
			wantOK:   true,
			wantKind: domain.LinkEventCodeReady,
			codeKind: domain.CodeKindPairCode,
			code:     "WXYZ-1234",
		},
		{
			name:     "qr update reporting connected",
			raw:      `{"event":"qr:update","data":{"status":"Connected"}}`,
			wantOK:   true,
			wantKind: domain.LinkEventConnected,
		},
		{
			name:     "error",
			raw:      `{"event":"qr:error","data":{"message":"phone rejected link"}}`,
			wantOK:   true,
			wantKind: domain.LinkEventError,
			message:  "phone rejected link",
		},
		{
			name:     "error without message",
			raw:      `{"event":"qr:error"}`,
			wantOK:   true,
			wantKind: domain.LinkEventError,
			message:  domain.ErrPairingRejected.Error(),
		},
		{
			name:     "connected",
			raw:      `{"event":"whatsapp:connected","data":{"status":"Connected","user":{"id":"5511999999999:3@s.whatsapp.net"}}}`,
			wantOK:   true,
			wantKind: domain.LinkEventConnected,
		},
		{
			name:   "empty qr update",
			raw:    `{"event":"qr:update","data":{"status":"STARTING"}}`,
			wantOK: false,
		},
		{
			name:   "unknown event",
			raw:    `{"event":"battery:update","data":{"level":40}}`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, ok, err := decodeFrame([]byte(tt.raw), now)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantKind, event.Kind)
			assert.Equal(t, domain.SourcePush, event.Source)
			assert.Equal(t, tt.codeKind, event.CodeKind)
			assert.Equal(t, tt.code, event.Code)
			assert.Equal(t, tt.message, event.Message)
		})
	}
}

func TestDecodeFrame_Malformed(t *testing.T) {
	_, _, err := decodeFrame([]byte(`not json`), time.Now())
	assert.Error(t, err)

	_, _, err = decodeFrame([]byte(`{"event":"qr:update","data":"oops"}`), time.Now())
	assert.Error(t, err)
}

func TestStatusToEvent_Poll(t *testing.T) {
	now := time.Now()

	event, ok := statusToEvent(&domain.LinkStatus{Status: domain.LinkStatusQRReady, QR: "qr-1"}, domain.SourcePoll, now)
	require.True(t, ok)
	assert.Equal(t, domain.CodeKindQR, event.CodeKind)

	event, ok = statusToEvent(&domain.LinkStatus{Status: domain.LinkStatusPairCodeReady, PairCode: "1234-5678"}, domain.SourcePoll, now)
	require.True(t, ok)
	assert.Equal(t, domain.CodeKindPairCode, event.CodeKind)

	user := &domain.LinkUser{ID: "5511999999999:1@s.whatsapp.net"}
	event, ok = statusToEvent(&domain.LinkStatus{Status: domain.LinkStatusConnected, User: user}, domain.SourcePoll, now)
	require.True(t, ok)
	assert.Equal(t, domain.LinkEventConnected, event.Kind)
	assert.Equal(t, user, event.User)

	_, ok = statusToEvent(&domain.LinkStatus{Status: "STARTING"}, domain.SourcePoll, now)
	assert.False(t, ok)

	_, ok = statusToEvent(&domain.LinkStatus{Status: domain.LinkStatusQRReady}, domain.SourcePoll, now)
	assert.False(t, ok, "status without a code is still requesting")

	_, ok = statusToEvent(nil, domain.SourcePoll, now)
	assert.False(t, ok)
}
