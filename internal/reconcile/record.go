// Package reconcile maps raw Toggl records onto the relational schema: it
// parses and validates each record, decides whether it should be inserted,
// and resolves the workspace and project rows it refers to.
package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"toggl-ingest/internal/domain"
)

var (
	errMissing    = errors.New("missing")
	errNotInteger = errors.New("not an integer")
)

// ParseRecord normalizes one raw record. index is the record's position in
// the fetched batch and is only used for error reporting. Failures are
// *domain.ParseError.
//
// Timestamps are RFC 3339 with optional fractional seconds, e.g.
// 2024-01-01T09:00:00.000Z, and are converted to UTC. The end timestamp is
// read from "end", falling back to Toggl v9's "stop". It may be absent only
// for a running entry (negative duration).
func ParseRecord(index int, raw domain.RawRecord) (domain.TimeEntry, error) {
	var e domain.TimeEntry
	fail := func(field string, err error) (domain.TimeEntry, error) {
		pe := &domain.ParseError{Index: index, Field: field, Err: err}
		if field != "id" {
			id := e.ID
			pe.RecordID = &id
		}
		return domain.TimeEntry{}, pe
	}

	var err error
	if e.ID, err = requiredInt(raw, "id"); err != nil {
		return fail("id", err)
	}
	if e.Start, err = requiredTime(raw, "start"); err != nil {
		return fail("start", err)
	}
	if e.DurationSec, err = requiredFloat(raw, "duration"); err != nil {
		return fail("duration", err)
	}

	endKey := "end"
	if isNull(raw["end"]) && !isNull(raw["stop"]) {
		endKey = "stop"
	}
	if isNull(raw[endKey]) {
		if e.DurationSec >= 0 {
			return fail("end", errMissing)
		}
	} else {
		end, err := requiredTime(raw, endKey)
		if err != nil {
			return fail(endKey, err)
		}
		e.End = &end
	}

	if e.UserID, err = requiredInt(raw, "user_id"); err != nil {
		return fail("user_id", err)
	}
	if e.WorkspaceID, err = requiredInt(raw, "workspace_id"); err != nil {
		return fail("workspace_id", err)
	}
	if !isNull(raw["project_id"]) {
		pid, err := toInt64(raw["project_id"])
		if err != nil {
			return fail("project_id", err)
		}
		e.ProjectID = &pid
	}

	switch d := raw["description"].(type) {
	case nil:
	case string:
		e.Description = d
	default:
		return fail("description", fmt.Errorf("expected string, got %T", d))
	}
	return e, nil
}

func isNull(v any) bool { return v == nil }

func requiredInt(raw domain.RawRecord, key string) (int64, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return 0, errMissing
	}
	return toInt64(v)
}

func requiredFloat(raw domain.RawRecord, key string) (float64, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return 0, errMissing
	}
	return toFloat64(v)
}

func requiredTime(raw domain.RawRecord, key string) (time.Time, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return time.Time{}, errMissing
	}
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("expected timestamp string, got %T", v)
	}
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
	}
	return t.UTC(), nil
}

// toInt64 accepts the loosely typed numbers a JSON decoder may produce:
// json.Number, float64 holding an integral value, Go integer kinds, and
// decimal strings.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", n.String())
		}
		return floatToInt64(f)
	case float64:
		return floatToInt64(n)
	case float32:
		return floatToInt64(float64(n))
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q", n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

// toFloat64 accepts json.Number, Go numeric kinds, and decimal strings.
func toFloat64(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		var err error
		if f, err = n.Float64(); err != nil {
			return 0, fmt.Errorf("invalid number %q", n.String())
		}
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		var err error
		if f, err = strconv.ParseFloat(strings.TrimSpace(n), 64); err != nil {
			return 0, fmt.Errorf("invalid number %q", n)
		}
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid number %v", f)
	}
	return f, nil
}

func floatToInt64(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %v", errNotInteger, f)
	}
	return int64(f), nil
}
