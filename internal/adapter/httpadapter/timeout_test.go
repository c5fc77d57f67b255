package httpadapter

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWriteTimeoutCoversAggregation(t *testing.T) {
	tests := []struct {
		adapterTimeout time.Duration
		want           time.Duration
	}{
		{20 * time.Second, 70 * time.Second},
		{45 * time.Second, 145 * time.Second},
		{time.Second, 13 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.adapterTimeout.String(), func(t *testing.T) {
			srv := NewServer(":0", tt.adapterTimeout, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

			assert.Equal(t, tt.want, srv.httpServer.WriteTimeout)
			assert.Greater(t, srv.httpServer.WriteTimeout, boundedStages*tt.adapterTimeout)
		})
	}
}
