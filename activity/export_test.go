package activity

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportLogs_JSON(t *testing.T) {
	l, clk := newTestLog(t, Config{})
	l.LogAuthEvent(ActionLoginFailed, "alice", false, Options{Details: map[string]any{"reason": "bad password"}})
	clk.Advance(time.Second)
	l.LogAuthEvent(ActionLoginSucceeded, "alice", true, Options{})

	data, err := l.ExportLogs(FormatJSON)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)

	// chronological order
	assert.Equal(t, ActionLoginFailed, decoded[0]["action"])
	assert.Equal(t, "warn", decoded[0]["level"])
	assert.Equal(t, "alice", decoded[0]["user_id"])
	assert.Equal(t, map[string]any{"reason": "bad password"}, decoded[0]["details"])
	assert.Equal(t, ActionLoginSucceeded, decoded[1]["action"])
}

func TestExportLogs_CSV(t *testing.T) {
	l, _ := newTestLog(t, Config{})
	l.LogSecurityEvent(ActionThreatDetected, Options{
		UserID:  "bob",
		Status:  StatusPending,
		Details: map[string]any{"input": `a,"quoted" value`},
	})
	l.LogActivity(CategorySystem, ActionReaperSweep, Options{})

	data, err := l.ExportLogs(FormatCSV)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{"timestamp", "level", "category", "action", "user_id", "status", "details"}, records[0])

	row := records[1]
	_, err = time.Parse(time.RFC3339Nano, row[0])
	assert.NoError(t, err)
	assert.Equal(t, "warn", row[1])
	assert.Equal(t, CategorySecurity, row[2])
	assert.Equal(t, ActionThreatDetected, row[3])
	assert.Equal(t, "bob", row[4])
	assert.Equal(t, "pending", row[5])
	assert.JSONEq(t, `{"input":"a,\"quoted\" value"}`, row[6])

	assert.Equal(t, "", records[2][6])
}

func TestExportLogs_UnsupportedFormat(t *testing.T) {
	l, _ := newTestLog(t, Config{})

	_, err := l.ExportLogs(Format("xml"))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	_, err = ParseFormat("yaml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	f, err := ParseFormat("CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)
}

func TestExportLogs_Empty(t *testing.T) {
	l, _ := newTestLog(t, Config{})

	data, err := l.ExportLogs(FormatJSON)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}
