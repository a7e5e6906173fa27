package agentlog

import (
	"bufio"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/xinguang/stock-console/pkg/logging"
)

// Decoder reads events from a server-sent event stream. The data lines of
// a message are joined until the blank line that ends it; payloads that are
// not valid JSON are logged and skipped.
type Decoder struct {
	scanner *bufio.Scanner
	log     *logrus.Entry
	data    []string
}

// NewDecoder creates a decoder over r
func NewDecoder(r io.Reader, log logrus.FieldLogger) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)
	return &Decoder{
		scanner: scanner,
		log:     logging.Component(log, "agentlog"),
	}
}

// Next returns the next event. It returns io.EOF when the stream ends
// cleanly and the read error otherwise. An unfinished message at the end of
// the stream is dropped.
func (d *Decoder) Next() (Event, error) {
	for d.scanner.Scan() {
		line := strings.TrimSuffix(d.scanner.Text(), "\r")

		if line == "" {
			if len(d.data) == 0 {
				continue
			}
			payload := strings.Join(d.data, "\n")
			d.data = d.data[:0]

			event, err := ParseEvent([]byte(payload))
			if err != nil {
				d.log.WithError(err).WithField("payload", payload).Warn("skipping malformed event")
				continue
			}
			return event, nil
		}

		// comments keep the connection alive
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		if field != "data" {
			continue
		}
		d.data = append(d.data, strings.TrimPrefix(value, " "))
	}

	if err := d.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}
