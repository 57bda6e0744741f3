package logging

import (
	"fmt"

	"github.com/Graylog2/go-gelf/gelf"
)

// Facility is the GELF facility of every record sent to Graylog.
const Facility = "rssc"

// NewGraylogWriter dials a GELF UDP endpoint such as "localhost:12201".
func NewGraylogWriter(address string) (*gelf.Writer, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, fmt.Errorf("connecting to graylog at %s: %w", address, err)
	}
	w.Facility = Facility
	return w, nil
}
