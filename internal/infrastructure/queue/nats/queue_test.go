package nats

import (
	"context"
	"fmt"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFiledEvent(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
		wantErr bool
	}{
		{name: "bare id", payload: "fax-1", want: "fax-1"},
		{name: "json", payload: `{"fax_id":"fax-2","filed_by":"ehr"}`, want: "fax-2"},
		{name: "json without id", payload: `{"filed_by":"ehr"}`, wantErr: true},
		{name: "broken json", payload: `{"fax_id":`, wantErr: true},
		{name: "empty", payload: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := DecodeFiledEvent([]byte(tt.payload))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, event.FaxID)
		})
	}
}

func TestClassifyNATSError(t *testing.T) {
	assert.True(t, classifyNATSError(fmt.Errorf("publish: %w", nats.ErrConnectionClosed)).Retryable)
	assert.True(t, classifyNATSError(nats.ErrNoServers).RecordFailure)
	assert.False(t, classifyNATSError(context.Canceled).RecordFailure)
	assert.False(t, classifyNATSError(nats.ErrBadSubject).Retryable)
}
