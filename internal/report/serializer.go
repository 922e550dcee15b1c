package report

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strconv"

	"github.com/eargollo/docqueue/internal/events"
)

// Serialize writes r to w as a JSON object mapping each document path to its
// status code. When match is non-nil only entries with that status are
// written. monitor, when non-nil, is notified once per entry inspected, so
// its step count equals the number of report entries regardless of match.
//
// Keys are JSON strings, so bytes of a path that are not valid UTF-8 come
// out as U+FFFD and such a key no longer names the file exactly. Consumers
// needing exact paths read Entries instead.
func Serialize(ctx context.Context, w io.Writer, r Report, match *Status, monitor events.Notifiable) error {
	if monitor != nil {
		if n, err := r.Len(ctx); err == nil {
			monitor.HintRemaining(int(n))
		}
	}

	bw := bufio.NewWriter(w)
	bw.WriteByte('{')
	written := 0
	for e, err := range r.Entries(ctx) {
		if err != nil {
			return err
		}
		if match == nil || e.Status == *match {
			key, err := json.Marshal(e.Document.String())
			if err != nil {
				return err
			}
			if written > 0 {
				bw.WriteByte(',')
			}
			bw.Write(key)
			bw.WriteByte(':')
			bw.WriteString(strconv.Itoa(e.Status.Code()))
			written++
		}
		if monitor != nil {
			monitor.NotifyListeners(e.Document.String())
		}
	}
	bw.WriteByte('}')
	return bw.Flush()
}
