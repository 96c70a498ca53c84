package pipeline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultTimezoneHint is the zone assumed for naive timestamps when the caller
// supplies none.
const DefaultTimezoneHint = "UTC-05:00"

// timestampLayouts are tried in order against naive local timestamps. The
// first is the layout camera-trap exports normally carry; the rest are the
// fallback formats a malformed value is retried with before the row is
// dropped.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

var fixedOffsetRe = regexp.MustCompile(`^(?:UTC|GMT)?([+-])(\d{1,2})(?::?(\d{2}))?$`)

// LoadZone resolves a timezone identifier: "UTC"/"Z", a fixed offset such as
// "UTC-05:00", "-05:00" or "+0530", or an IANA name such as "America/Bogota".
func LoadZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	switch name {
	case "", "UTC", "utc", "Z", "UTC+00:00", "UTC-00:00":
		return time.UTC, nil
	}
	if m := fixedOffsetRe.FindStringSubmatch(name); m != nil {
		hours, _ := strconv.Atoi(m[2])
		minutes := 0
		if m[3] != "" {
			minutes, _ = strconv.Atoi(m[3])
		}
		offset := hours*3600 + minutes*60
		if m[1] == "-" {
			offset = -offset
		}
		if offset == 0 {
			return time.UTC, nil
		}
		return time.FixedZone(name, offset), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

// Normalizer converts naive local timestamps to UTC ISO 8601 strings.
//
// Ambiguous or non-existent local times around daylight-saving transitions
// resolve by the zone rules of the time package (the behavior of
// time.ParseInLocation), they are not special-cased here.
type Normalizer struct {
	hint  *time.Location
	cache map[string]*time.Location
}

// NewNormalizer builds a Normalizer with the given zone hint for naive
// timestamps. An empty hint means DefaultTimezoneHint.
func NewNormalizer(hint string) (*Normalizer, error) {
	if hint == "" {
		hint = DefaultTimezoneHint
	}
	loc, err := LoadZone(hint)
	if err != nil {
		return nil, err
	}
	return &Normalizer{hint: loc, cache: map[string]*time.Location{hint: loc}}, nil
}

// Hint returns the normalizer's default location.
func (n *Normalizer) Hint() *time.Location {
	return n.hint
}

// Zone resolves a per-row zone override, falling back to the hint when the
// name is empty or unknown.
func (n *Normalizer) Zone(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		return n.hint
	}
	if loc, ok := n.cache[name]; ok {
		return loc
	}
	loc, err := LoadZone(name)
	if err != nil {
		loc = n.hint
	}
	n.cache[name] = loc
	return loc
}

// Normalize parses a naive local timestamp in the hint zone and returns it as
// "YYYY-MM-DDTHH:MM:SSZ".
func (n *Normalizer) Normalize(raw string) (string, error) {
	return n.NormalizeIn(raw, n.hint)
}

// NormalizeIn is Normalize with an explicit zone. Values that already carry an
// offset (RFC 3339) keep it, so re-normalizing an already-UTC timestamp is a
// no-op.
func (n *Normalizer) NormalizeIn(raw string, loc *time.Location) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return formatUTC(t), nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return formatUTC(t), nil
		}
	}
	return "", fmt.Errorf("unparseable timestamp %q", raw)
}

func formatUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05") + "Z"
}
