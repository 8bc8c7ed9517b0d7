package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateRequest_PatchOmittedFieldsStayNil(t *testing.T) {
	var req UpdateRequest
	require.NoError(t, json.Unmarshal([]byte(`{"name":"GopherCon"}`), &req))

	p, err := req.patch()
	require.NoError(t, err)

	require.NotNil(t, p.Name)
	assert.Equal(t, "GopherCon", *p.Name)
	// omitted fields must not be written, so they stay nil and COALESCE
	// keeps the stored values
	assert.Nil(t, p.Description)
	assert.Nil(t, p.Location)
	assert.Nil(t, p.Category)
	assert.Nil(t, p.StartTime)
	assert.Nil(t, p.EndTime)
}

func TestUpdateRequest_PatchExplicitEmptyClears(t *testing.T) {
	var req UpdateRequest
	require.NoError(t, json.Unmarshal([]byte(`{"description":""}`), &req))

	p, err := req.patch()
	require.NoError(t, err)

	require.NotNil(t, p.Description)
	assert.Empty(t, *p.Description)
	assert.Nil(t, p.Name)
}

func TestUpdateRequest_PatchParsesTimes(t *testing.T) {
	var req UpdateRequest
	require.NoError(t, json.Unmarshal(
		[]byte(`{"start_time":"2026-09-01T10:00:00Z","end_time":"2026-09-01T18:00:00Z"}`), &req))

	p, err := req.patch()
	require.NoError(t, err)

	require.NotNil(t, p.StartTime)
	require.NotNil(t, p.EndTime)
	assert.Equal(t, time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC), p.StartTime.UTC())
	assert.Equal(t, time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC), p.EndTime.UTC())
}

func TestUpdateRequest_PatchRejectsBadTime(t *testing.T) {
	var req UpdateRequest
	require.NoError(t, json.Unmarshal([]byte(`{"start_time":"tomorrow"}`), &req))

	_, err := req.patch()
	assert.Error(t, err)
}
