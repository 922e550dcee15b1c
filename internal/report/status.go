package report

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Status is the terminal outcome of one extraction attempt. The integer
// value is the stable code written to serialized reports.
type Status int

const (
	StatusSuccess      Status = 0
	StatusNotSaved     Status = 1
	StatusNotDecrypted Status = 2
	StatusNotParsed    Status = 3
	StatusUnreadable   Status = 4
	StatusNotFound     Status = 5
	StatusUnsupported  Status = 6
	StatusEmpty        Status = 7
	StatusUnknown      Status = 9
)

var statusNames = map[Status]string{
	StatusSuccess:      "success",
	StatusNotSaved:     "failure_not_saved",
	StatusNotDecrypted: "failure_not_decrypted",
	StatusNotParsed:    "failure_not_parsed",
	StatusUnreadable:   "failure_unreadable",
	StatusNotFound:     "failure_not_found",
	StatusUnsupported:  "failure_unsupported",
	StatusEmpty:        "success_empty",
	StatusUnknown:      "failure_unknown",
}

// Statuses lists every status in code order.
func Statuses() []Status {
	return []Status{
		StatusSuccess, StatusNotSaved, StatusNotDecrypted, StatusNotParsed,
		StatusUnreadable, StatusNotFound, StatusUnsupported, StatusEmpty, StatusUnknown,
	}
}

// Code returns the serialized short code.
func (s Status) Code() int { return int(s) }

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "status(" + strconv.Itoa(int(s)) + ")"
}

// ParseStatus accepts a status name ("success", "failure_not_found", also
// with dashes or upper case) or its numeric code.
func ParseStatus(v string) (Status, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		s := Status(n)
		if !s.Valid() {
			return 0, fmt.Errorf("unknown status code %d", n)
		}
		return s, nil
	}
	norm := strings.ReplaceAll(strings.ToLower(v), "-", "_")
	for s, name := range statusNames {
		if name == norm || strings.TrimPrefix(name, "failure_") == norm {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", v)
}

// MarshalJSON writes the numeric code.
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Itoa(int(s))), nil
}

// UnmarshalJSON accepts either the numeric code or the name.
func (s *Status) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var (
		parsed Status
		err    error
	)
	switch v := raw.(type) {
	case float64:
		parsed, err = ParseStatus(strconv.Itoa(int(v)))
	case string:
		parsed, err = ParseStatus(v)
	default:
		err = fmt.Errorf("invalid status %s", b)
	}
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
