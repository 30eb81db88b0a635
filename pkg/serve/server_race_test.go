package serve

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestServer_AnalyzeBatch_RaceCondition tests that analyze_batch responses
// are sent even when EOF arrives before the main loop processes the pending
// request.
func TestServer_AnalyzeBatch_RaceCondition(t *testing.T) {
	e := newTestEngine(t)

	// Run the test multiple times to trigger the race condition
	for i := range 10 {
		request := `{"type":"analyze_batch","payload":{"items":[{"source":"s1","content":"test1"},{"source":"s2","content":"it's all your fault"}]}}` + "\n"
		in := strings.NewReader(request)
		out := &strings.Builder{}

		srv := NewServer(e, in, out)
		err := srv.Run(context.Background())
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 2, "iteration %d: expected 2 lines (ready + analyze_batch response), got %d", i, len(lines))

		var resp Response
		err = json.Unmarshal([]byte(lines[1]), &resp)
		require.NoError(t, err, "iteration %d: failed to unmarshal response", i)

		assert.True(t, resp.Success, "iteration %d: expected success", i)
		assert.Equal(t, TypeAnalyzeBatch, resp.Type, "iteration %d: expected analyze_batch type", i)
	}
}
