package report

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/eargollo/docqueue/internal/document"
	"github.com/eargollo/docqueue/internal/events"
)

func seedThree(t *testing.T, r Report) {
	t.Helper()
	ctx := context.Background()
	for name, s := range map[string]Status{"d1": StatusSuccess, "d2": StatusNotParsed, "d3": StatusSuccess} {
		if err := r.Put(ctx, testDoc(name), s); err != nil {
			t.Fatal(err)
		}
	}
}

// TestSerializeFiltered verifies only matching entries are written while the
// monitor advances once per entry inspected.
func TestSerializeFiltered(t *testing.T) {
	for name, r := range backends(t) {
		t.Run(name, func(t *testing.T) {
			seedThree(t, r)

			match := StatusSuccess
			var buf bytes.Buffer
			monitor := events.NewMonitor("report")
			if err := Serialize(context.Background(), &buf, r, &match, monitor); err != nil {
				t.Fatal(err)
			}

			var got map[string]int
			if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
				t.Fatalf("invalid JSON %q: %v", buf.String(), err)
			}
			want := map[string]int{"/data/d1": 0, "/data/d3": 0}
			if len(got) != len(want) {
				t.Fatalf("got %v, want %v", got, want)
			}
			for k, v := range want {
				if got[k] != v {
					t.Errorf("%s = %d, want %d", k, got[k], v)
				}
			}
			if monitor.Steps() != 3 {
				t.Errorf("monitor steps = %d, want 3", monitor.Steps())
			}
		})
	}
}

func TestSerializeAll(t *testing.T) {
	r := NewMemory()
	seedThree(t, r)

	var hint int
	monitor := events.NewMonitor("report", hintListener(func(n int) { hint = n }))
	var buf bytes.Buffer
	if err := Serialize(context.Background(), &buf, r, nil, monitor); err != nil {
		t.Fatal(err)
	}
	var got map[string]int
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got["/data/d2"] != 3 {
		t.Errorf("got %v", got)
	}
	if monitor.Steps() != 3 {
		t.Errorf("monitor steps = %d, want 3", monitor.Steps())
	}
	if hint != 3 {
		t.Errorf("hint = %d, want 3", hint)
	}
}

func TestSerializeEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Serialize(context.Background(), &buf, NewMemory(), nil, nil); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "{}" {
		t.Errorf("got %q, want {}", buf.String())
	}
}

// TestSerializeInvalidUTF8Path verifies a path with non-UTF-8 bytes still
// produces valid JSON, with the bad bytes replaced.
func TestSerializeInvalidUTF8Path(t *testing.T) {
	r := NewMemory()
	d := document.Document{Path: "/data/bad\xffname.txt", ID: "bad", Charset: document.DefaultCharset}
	if err := r.Put(context.Background(), d, StatusUnreadable); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := Serialize(context.Background(), &buf, r, nil, nil); err != nil {
		t.Fatal(err)
	}
	var got map[string]int
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if code, ok := got["/data/bad\ufffdname.txt"]; !ok || code != StatusUnreadable.Code() {
		t.Errorf("got %v", got)
	}
}

type hintListener func(int)

func (h hintListener) Notify(events.Monitorable, any) {}
func (h hintListener) HintRemaining(n int)            { h(n) }
