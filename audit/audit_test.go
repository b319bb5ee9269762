package audit

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogrusSink_Record(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogrusSink(&buf)

	sink.Record(Event{
		Time:       time.Unix(1700000000, 0),
		Operation:  "rotate",
		KeyType:    "Data",
		Identifier: "j-1",
		Outcome:    OutcomeSuccess,
	})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "rotate", line["operation"])
	assert.Equal(t, "Data", line["key_type"])
	assert.Equal(t, "j-1", line["identifier"])
	assert.Equal(t, "success", line["outcome"])
}

func TestLogrusSink_FailureIsWarning(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogrusSink(&buf)

	sink.Record(Event{
		Operation: "generate",
		KeyType:   "Master",
		Outcome:   OutcomeFailure,
		Detail:    "authentication failed",
	})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warning", line["level"])
	assert.Equal(t, "authentication failed", line["detail"])
}
