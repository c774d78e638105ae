package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// Number is an untrusted numeric field. Valid is false when the field was
// missing, null, non-numeric, or not finite.
type Number struct {
	Value float64
	Valid bool
}

// Num returns a Number holding v. NaN and infinities produce an invalid Number.
func Num(v float64) Number {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Number{}
	}
	return Number{Value: v, Valid: true}
}

// Float returns the value, or NaN when the Number is not valid.
func (n Number) Float() float64 {
	if !n.Valid {
		return math.NaN()
	}
	return n.Value
}

// IsZero lets `omitzero` drop invalid numbers when encoding.
func (n Number) IsZero() bool {
	return !n.Valid
}

// UnmarshalJSON accepts JSON numbers and numeric strings. Anything else
// decodes to an invalid Number without failing the surrounding document.
func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		raw = strings.TrimSpace(s)
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	*n = Num(v)
	return nil
}

// MarshalJSON writes valid numbers as JSON numbers and everything else as null.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, n.Value, 'f', -1, 64), nil
}

// Text is a display string decoded from a JSON string or number.
// Other JSON values decode to the empty string.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	*t = ""
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	switch {
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			*t = Text(s)
		}
	case data[0] == '-' || (data[0] >= '0' && data[0] <= '9'):
		*t = Text(data)
	}
	return nil
}

// String returns the text as a plain string.
func (t Text) String() string {
	return string(t)
}

// errNotObject is returned by entry decoders for array elements that are not
// JSON objects, so List can drop them.
var errNotObject = errors.New("not an object")

// List is a JSON array field that tolerates the wrong shape: a value that is
// not an array decodes to nil, while [] decodes to an empty, non-nil list.
// Elements that fail to decode are dropped.
type List[T any] []T

// UnmarshalJSON implements json.Unmarshaler.
func (l *List[T]) UnmarshalJSON(data []byte) error {
	*l = nil
	if !startsWith(data, '[') {
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	items := make([]T, 0, len(raw))
	for _, r := range raw {
		var item T
		if err := json.Unmarshal(r, &item); err != nil {
			continue
		}
		items = append(items, item)
	}
	*l = items
	return nil
}

// UnmarshalJSON decodes a GPU entry. Entries that are not objects are
// rejected and dropped from the enclosing list.
func (g *GPUStats) UnmarshalJSON(data []byte) error {
	*g = GPUStats{}
	if !startsWith(data, '{') {
		return errNotObject
	}
	type plain GPUStats
	return json.Unmarshal(data, (*plain)(g))
}

// UnmarshalJSON decodes a process entry, rejecting non-objects.
func (p *ProcessStats) UnmarshalJSON(data []byte) error {
	*p = ProcessStats{}
	if !startsWith(data, '{') {
		return errNotObject
	}
	type plain ProcessStats
	return json.Unmarshal(data, (*plain)(p))
}

// UnmarshalJSON decodes a disk entry, rejecting non-objects.
func (d *DiskStats) UnmarshalJSON(data []byte) error {
	*d = DiskStats{}
	if !startsWith(data, '{') {
		return errNotObject
	}
	type plain DiskStats
	return json.Unmarshal(data, (*plain)(d))
}

// UnmarshalJSON decodes system stats; a non-object leaves every field missing.
func (s *SystemStats) UnmarshalJSON(data []byte) error {
	*s = SystemStats{}
	if !startsWith(data, '{') {
		return nil
	}
	type plain SystemStats
	return json.Unmarshal(data, (*plain)(s))
}

// UnmarshalJSON decodes a usage row, rejecting non-objects.
func (u *UserUsage) UnmarshalJSON(data []byte) error {
	*u = UserUsage{}
	if !startsWith(data, '{') {
		return errNotObject
	}
	type plain UserUsage
	return json.Unmarshal(data, (*plain)(u))
}

// UnmarshalJSON decodes a usage summary. A non-object leaves the summary
// empty with no user list, which renders the same as an absent summary.
func (u *UsageStats) UnmarshalJSON(data []byte) error {
	*u = UsageStats{}
	if !startsWith(data, '{') {
		return nil
	}
	type plain UsageStats
	return json.Unmarshal(data, (*plain)(u))
}

func startsWith(data []byte, delim byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] == delim
}
