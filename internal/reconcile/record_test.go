package reconcile

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"toggl-ingest/internal/domain"
)

func validRecord() domain.RawRecord {
	return domain.RawRecord{
		"id":           json.Number("1"),
		"description":  "Write report",
		"start":        "2024-01-01T09:00:00.000Z",
		"end":          "2024-01-01T10:00:00.000Z",
		"duration":     json.Number("3600"),
		"user_id":      json.Number("7"),
		"project_id":   nil,
		"workspace_id": json.Number("42"),
	}
}

func with(rec domain.RawRecord, kv ...any) domain.RawRecord {
	out := domain.RawRecord{}
	for k, v := range rec {
		out[k] = v
	}
	for i := 0; i < len(kv); i += 2 {
		key := kv[i].(string)
		if kv[i+1] == deleteKey {
			delete(out, key)
			continue
		}
		out[key] = kv[i+1]
	}
	return out
}

type deleteMarker struct{}

var deleteKey = deleteMarker{}

func TestParseRecord_Valid(t *testing.T) {
	e, err := ParseRecord(0, validRecord())
	require.NoError(t, err)

	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	require.Equal(t, domain.TimeEntry{
		ID:          1,
		Description: "Write report",
		Start:       start,
		End:         &end,
		DurationSec: 3600,
		UserID:      7,
		WorkspaceID: 42,
	}, e)
}

func TestParseRecord_LooseTypes(t *testing.T) {
	rec := with(validRecord(),
		"id", float64(12),
		"duration", "90",
		"user_id", int64(3),
		"project_id", json.Number("55"),
		"workspace_id", 42,
		"description", nil,
		"start", "2024-03-05T10:15:00+02:00",
		"end", deleteKey,
		"stop", "2024-03-05T08:16:30Z",
	)
	e, err := ParseRecord(0, rec)
	require.NoError(t, err)
	require.Equal(t, int64(12), e.ID)
	require.Equal(t, float64(90), e.DurationSec)
	require.Equal(t, int64(3), e.UserID)
	require.Equal(t, int64(42), e.WorkspaceID)
	require.NotNil(t, e.ProjectID)
	require.Equal(t, int64(55), *e.ProjectID)
	require.Empty(t, e.Description)
	require.Equal(t, time.Date(2024, 3, 5, 8, 15, 0, 0, time.UTC), e.Start)
	require.Equal(t, time.UTC, e.Start.Location())
	require.Equal(t, time.Date(2024, 3, 5, 8, 16, 30, 0, time.UTC), *e.End)
}

func TestParseRecord_FractionalDuration(t *testing.T) {
	tests := []struct {
		name string
		val  any
		want float64
	}{
		{name: "json number", val: json.Number("3600.5"), want: 3600.5},
		{name: "float", val: 1799.25, want: 1799.25},
		{name: "string", val: " 12.75 ", want: 12.75},
		{name: "exponent", val: json.Number("3.6e3"), want: 3600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := ParseRecord(0, with(validRecord(), "duration", tt.val))
			require.NoError(t, err)
			require.Equal(t, tt.want, e.DurationSec)
			require.False(t, e.Running())
		})
	}
}

func TestParseRecord_RunningEntryHasNoEnd(t *testing.T) {
	rec := with(validRecord(), "end", nil, "duration", json.Number("-1704099600"))
	e, err := ParseRecord(0, rec)
	require.NoError(t, err)
	require.Nil(t, e.End)
	require.True(t, e.Running())
}

func TestParseRecord_Errors(t *testing.T) {
	tests := []struct {
		name  string
		rec   domain.RawRecord
		field string
		hasID bool
	}{
		{name: "missing id", rec: with(validRecord(), "id", deleteKey), field: "id"},
		{name: "string id", rec: with(validRecord(), "id", "abc"), field: "id"},
		{name: "fractional id", rec: with(validRecord(), "id", json.Number("1.5")), field: "id"},
		{name: "bad start", rec: with(validRecord(), "start", "yesterday"), field: "start", hasID: true},
		{name: "numeric start", rec: with(validRecord(), "start", json.Number("1704099600")), field: "start", hasID: true},
		{name: "bad end", rec: with(validRecord(), "end", "2024-13-01T00:00:00Z"), field: "end", hasID: true},
		{name: "missing end on stopped entry", rec: with(validRecord(), "end", nil), field: "end", hasID: true},
		{name: "missing duration", rec: with(validRecord(), "duration", deleteKey), field: "duration", hasID: true},
		{name: "bool duration", rec: with(validRecord(), "duration", true), field: "duration", hasID: true},
		{name: "word duration", rec: with(validRecord(), "duration", "an hour"), field: "duration", hasID: true},
		{name: "missing user", rec: with(validRecord(), "user_id", nil), field: "user_id", hasID: true},
		{name: "missing workspace", rec: with(validRecord(), "workspace_id", deleteKey), field: "workspace_id", hasID: true},
		{name: "bad project", rec: with(validRecord(), "project_id", "p-1"), field: "project_id", hasID: true},
		{name: "non-string description", rec: with(validRecord(), "description", json.Number("5")), field: "description", hasID: true},
		{name: "nil record", rec: nil, field: "id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRecord(4, tt.rec)
			require.ErrorIs(t, err, domain.ErrParse)

			var pe *domain.ParseError
			require.True(t, errors.As(err, &pe))
			require.Equal(t, 4, pe.Index)
			require.Equal(t, tt.field, pe.Field)
			if tt.hasID {
				require.NotNil(t, pe.RecordID)
				require.Equal(t, int64(1), *pe.RecordID)
			} else {
				require.Nil(t, pe.RecordID)
			}
		})
	}
}

func TestToInt64(t *testing.T) {
	i, err := toInt64(json.Number("9007199254740993"))
	require.NoError(t, err)
	require.Equal(t, int64(9007199254740993), i)

	i, err = toInt64(json.Number("3.6e3"))
	require.NoError(t, err)
	require.Equal(t, int64(3600), i)

	_, err = toInt64(1e20)
	require.ErrorIs(t, err, errNotInteger)
}
