package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ashpect/itemstream/pkg/item"
)

// sink writes items to a streaming response, one frame per item.
type sink interface {
	Send(it item.Item) error
	Flush() error
}

// ndjsonSink writes each item as a single JSON line.
type ndjsonSink struct {
	enc *json.Encoder
	rc  *http.ResponseController
}

func newNDJSONSink(w http.ResponseWriter) *ndjsonSink {
	return &ndjsonSink{enc: json.NewEncoder(w), rc: http.NewResponseController(w)}
}

// Send relies on json.Encoder terminating every value with '\n'.
func (s *ndjsonSink) Send(it item.Item) error {
	return s.enc.Encode(it)
}

func (s *ndjsonSink) Flush() error {
	return s.rc.Flush()
}

// sseSink frames each item as a named server-sent event.
type sseSink struct {
	w     io.Writer
	event string
	rc    *http.ResponseController
}

func newSSESink(w http.ResponseWriter, event string) *sseSink {
	return &sseSink{w: w, event: event, rc: http.NewResponseController(w)}
}

// Send writes "event: <name>\ndata: <json>\n\n". The JSON never contains a
// raw newline, so one data line is enough.
func (s *sseSink) Send(it item.Item) error {
	b, err := json.Marshal(it)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", s.event, b)
	return err
}

func (s *sseSink) Flush() error {
	return s.rc.Flush()
}
