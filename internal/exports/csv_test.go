package exports

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCSV(t *testing.T) {
	joined := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	left := joined.Add(90 * time.Second)

	out, err := BuildCSV([]Row{
		{FullName: "Diksha Sharma", Email: "diksha@example.com", JoinedAt: joined, LeftAt: &left},
		{FullName: "Rahul Verma", Email: "rahul@example.com", JoinedAt: joined},
	})
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{"Name", "Email", "Joined At", "Left At", "Duration Seconds"}, records[0])
	assert.Equal(t, []string{
		"Diksha Sharma", "diksha@example.com",
		"2026-03-01T12:00:00Z", "2026-03-01T12:01:30Z", "90",
	}, records[1])

	// open interval leaves Left At and duration empty
	assert.Equal(t, "Rahul Verma", records[2][0])
	assert.Empty(t, records[2][3])
	assert.Empty(t, records[2][4])
}

func TestBuildCSV_EmptyHasHeaderOnly(t *testing.T) {
	out, err := BuildCSV(nil)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestBuildCSV_NegativeDurationClamped(t *testing.T) {
	joined := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	left := joined.Add(-time.Minute)

	out, err := BuildCSV([]Row{{FullName: "X", Email: "x@example.com", JoinedAt: joined, LeftAt: &left}})
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "0", records[1][4])
}

func TestBuildCSV_EscapesCommasAndQuotes(t *testing.T) {
	joined := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	out, err := BuildCSV([]Row{{FullName: `Sharma, "Diksha"`, Email: "d@example.com", JoinedAt: joined}})
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, `Sharma, "Diksha"`, records[1][0])
}
