package acquisition

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDiagnostics_RateLimitsPerCategory(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&out, nil))
	d := newDiagnostics(logger, time.Hour, 2)

	for i := 0; i < 5; i++ {
		d.warn(diagFraming, "framing")
	}
	d.warn(diagMarker, "marker")

	assert.Equal(t, 2, strings.Count(out.String(), "msg=framing"))
	assert.Equal(t, 1, strings.Count(out.String(), "msg=marker"))
	assert.Equal(t, 3, d.suppressed[diagFraming])
}
