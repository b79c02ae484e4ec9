package encoder

import (
	"encoding/json"
	"io"
	"strings"
)

// countingWriter counts the bytes that reach the underlying writer.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// recordText returns the record payload of an envelope line as JSON text.
// Lines without a record field are stored verbatim.
func recordText(line string) string {
	line = strings.TrimRight(line, "\r\n")

	var env struct {
		Record json.RawMessage `json:"record"`
	}
	if err := json.Unmarshal([]byte(line), &env); err != nil || len(env.Record) == 0 {
		return line
	}
	return string(env.Record)
}
