package processing

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	customlog "github.com/leapdrone/controller/pkg/log"
)

func TestLoggingResultHandlerWarnsOnSlowJobs(t *testing.T) {
	var buf bytes.Buffer
	handle := NewLoggingResultHandler(customlog.NewWriterLogger("warn", &buf), 10*time.Millisecond).CreateHandlerFunc()

	handle(&Result{Kind: "fast", Latency: time.Millisecond})
	handle(&Result{Kind: "failed", Latency: time.Second, Error: errors.New("boom")})
	if buf.Len() != 0 {
		t.Fatalf("unexpected output: %s", buf.String())
	}

	handle(&Result{Kind: "slow", Latency: 20 * time.Millisecond})
	if !strings.Contains(buf.String(), "Slow slow job") {
		t.Errorf("missing slow job warning: %q", buf.String())
	}

	buf.Reset()
	handle(nil)
	if !strings.Contains(buf.String(), "nil Result") {
		t.Errorf("missing nil result error: %q", buf.String())
	}
}
