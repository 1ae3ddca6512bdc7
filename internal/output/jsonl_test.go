package output

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var lines []map[string]interface{}
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m), "line is not valid JSON: %s", scanner.Text())
		lines = append(lines, m)
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestJSONLFormatter_WriteSetup_LineCount(t *testing.T) {
	report := newApplyReport()
	var buf bytes.Buffer

	require.NoError(t, (&JSONLFormatter{}).WriteSetup(&buf, report))

	lines := decodeLines(t, &buf)
	// 1 header + steps + remaining checks
	assert.Len(t, lines, 1+len(report.Result.Steps)+len(report.Result.RemainingChecks))
}

func TestJSONLFormatter_WriteSetup_Header(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONLFormatter{}).WriteSetup(&buf, newApplyReport()))

	lines := decodeLines(t, &buf)
	require.NotEmpty(t, lines)
	header := lines[0]
	assert.Equal(t, "header", header["type"])
	assert.Equal(t, "github", header["capability"])
	assert.Equal(t, "apply", header["mode"])
	assert.Equal(t, "2026-01-15T10:30:00Z", header["timestamp"])
	assert.Equal(t, true, header["requires_user_input"])
	assert.Equal(t, "setup", header["auth_session"])
}

func TestJSONLFormatter_WriteSetup_LineTypes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONLFormatter{}).WriteSetup(&buf, newApplyReport()))

	lines := decodeLines(t, &buf)
	var types []string
	for _, l := range lines {
		types = append(types, l["type"].(string))
	}
	assert.Equal(t, []string{"header", "step", "step", "remaining"}, types)

	step := lines[1]["step"].(map[string]interface{})
	assert.Equal(t, "gh_cli", step["check_id"])
	assert.Equal(t, "completed", step["status"])
}

func TestJSONLFormatter_WriteSetup_NoSteps(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONLFormatter{}).WriteSetup(&buf, newCleanSetupReport()))

	lines := decodeLines(t, &buf)
	assert.Len(t, lines, 1)
	assert.Equal(t, true, lines[0]["ok"])
}

func TestJSONLFormatter_WriteHealth(t *testing.T) {
	report := newHealthReport()
	var buf bytes.Buffer

	require.NoError(t, (&JSONLFormatter{}).WriteHealth(&buf, report))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1+len(report.Health.Checks))
	assert.Equal(t, "header", lines[0]["type"])
	assert.Equal(t, float64(2), lines[0]["missing"])
	for _, l := range lines[1:] {
		assert.Equal(t, "check", l["type"])
	}
}
