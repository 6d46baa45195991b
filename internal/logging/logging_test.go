// internal/logging/logging_test.go
package logging

import (
	"testing"

	log "github.com/go-ozzo/ozzo-log"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want log.Level
		err  bool
	}{
		{in: "", want: log.LevelInfo},
		{in: "debug", want: log.LevelDebug},
		{in: "WARN", want: log.LevelWarning},
		{in: " error ", want: log.LevelError},
		{in: "loud", want: log.LevelInfo, err: true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNop_SatisfiesLogger(t *testing.T) {
	var l Logger = Nop()
	l.Info("ignored %d", 1)
	l.Warning("ignored")
}
