package localstore

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/benvon/capture/internal/models"
)

// flexString accepts JSON strings and numbers. Early installs stored ids as millisecond timestamps.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexTime accepts RFC 3339 strings and Unix millisecond numbers; anything else decodes to the zero time.
type flexTime time.Time

func (f *flexTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*f = flexTime(time.Time{})
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			*f = flexTime(t)
		}
		return nil
	}
	if ms, err := strconv.ParseInt(string(data), 10, 64); err == nil {
		*f = flexTime(time.UnixMilli(ms).UTC())
	}
	return nil
}

type storedProject struct {
	ID        flexString `json:"id"`
	Name      string     `json:"name"`
	CreatedAt flexTime   `json:"createdAt"`
}

// storedTask is the union of every task and history shape written by past versions.
type storedTask struct {
	ID             flexString      `json:"id"`
	Text           string          `json:"text"`
	ProjectID      flexString      `json:"projectId"`
	CreatedAt      flexTime        `json:"createdAt"`
	CompletedAt    flexTime        `json:"completedAt"`
	Priority       json.RawMessage `json:"priority"`
	PriorityWeight json.RawMessage `json:"priorityWeight"`
	LegacyWeight   json.RawMessage `json:"priority_weight"`
}

// priority derives the normalized level: a valid symbolic value wins, then a legacy weight, then fallback.
func (s storedTask) priority(fallback models.Priority) models.Priority {
	if v, ok := symbolicPriority(s.Priority); ok {
		return v
	}
	for _, raw := range []json.RawMessage{s.Priority, s.PriorityWeight, s.LegacyWeight} {
		if w, ok := weight(raw); ok {
			return weightPriority(w)
		}
	}
	return models.NormalizePriorityOr("", fallback)
}

func symbolicPriority(raw json.RawMessage) (models.Priority, bool) {
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	p := models.Priority(v)
	return p, p.Valid()
}

// weight reads a JSON number or a quoted number.
func weight(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	if raw[0] == '"' {
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return 0, false
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(n) {
			return 0, false
		}
		return n, true
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return n, true
}

func weightPriority(w float64) models.Priority {
	if w > 0 {
		return models.PriorityNow
	}
	return models.PriorityLater
}
