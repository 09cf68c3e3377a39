package timeline

import (
	"fmt"
	"strings"
)

// Param is one key=value line of the processing header.
type Param struct {
	Key   string
	Value string
}

// Params is the ordered processing header stored with a timeline. It records
// the analysis settings the datagrams were produced with.
type Params []Param

func (p Params) Get(key string) (string, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Encode renders one "key=value\n" line per pair, in order.
func (p Params) Encode() (string, error) {
	var sb strings.Builder
	for _, kv := range p {
		if kv.Key == "" || strings.ContainsAny(kv.Key, "=\r\n") || strings.HasPrefix(kv.Key, "#") {
			return "", fmt.Errorf("%w: bad key %q", ErrInvalidParams, kv.Key)
		}
		if strings.ContainsAny(kv.Value, "\r\n") {
			return "", fmt.Errorf("%w: bad value for %q", ErrInvalidParams, kv.Key)
		}
		sb.WriteString(kv.Key)
		sb.WriteByte('=')
		sb.WriteString(kv.Value)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// ParseParams reads a processing header. Blank lines and lines starting
// with '#' are skipped; each other line splits on its first '='.
func ParseParams(s string) (Params, error) {
	var p Params
	for n, line := range strings.Split(s, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: line %d: %q", ErrInvalidParams, n+1, line)
		}
		p = append(p, Param{Key: key, Value: value})
	}
	return p, nil
}
