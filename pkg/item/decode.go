package item

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Event is one decoded server-sent event frame carrying an Item.
type Event struct {
	Name string
	Item Item
}

// DecodeStream reads newline delimited JSON items from r and hands each one
// to fn as soon as its line is complete. Blank lines are skipped.
func DecodeStream(r io.Reader, fn func(Item) error) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var it Item
		if err := json.Unmarshal(line, &it); err != nil {
			return fmt.Errorf("decode stream line: %w", err)
		}
		if err := fn(it); err != nil {
			return err
		}
	}
	return sc.Err()
}

// DecodeEvents reads a text/event-stream body from r. Frames without a data
// field are ignored; multi-line data fields are joined with '\n'.
func DecodeEvents(r io.Reader, fn func(Event) error) error {
	sc := bufio.NewScanner(r)

	var (
		name string
		data []string
	)
	dispatch := func() error {
		defer func() { name, data = "", nil }()
		if len(data) == 0 {
			return nil
		}
		var it Item
		if err := json.Unmarshal([]byte(strings.Join(data, "\n")), &it); err != nil {
			return fmt.Errorf("decode event data: %w", err)
		}
		if name == "" {
			name = "message"
		}
		return fn(Event{Name: name, Item: it})
	}

	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if err := dispatch(); err != nil {
				return err
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = value
		case "data":
			data = append(data, value)
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return dispatch()
}
