package transcript

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"

	"github.com/Iron-Ham/termrelay/internal/errors"
)

// DefaultEncoding is used when no encoding name is configured.
const DefaultEncoding = "utf-8"

// lineDecoder splits raw transcript bytes into lines and decodes each one.
type lineDecoder struct {
	name    string
	enc     encoding.Encoding
	utf8    bool
	newline []byte
}

func newLineDecoder(name string) (*lineDecoder, error) {
	if name == "" {
		name = DefaultEncoding
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, errors.Join(errors.ErrInvalidInput, err)
	}

	d := &lineDecoder{name: name, enc: enc}
	if enc == unicode.UTF8 || enc == encoding.Nop {
		d.utf8 = true
		d.newline = []byte{'\n'}
		return d, nil
	}

	nl, err := enc.NewEncoder().Bytes([]byte{'\n'})
	if err != nil || len(nl) == 0 {
		nl = []byte{'\n'}
	}
	d.newline = nl
	return d, nil
}

// split cuts buf into complete lines, each keeping its raw newline, and
// returns whatever follows the last newline. Multi-byte newlines are only
// matched on code-unit boundaries.
func (d *lineDecoder) split(buf []byte) (lines [][]byte, rest []byte) {
	step := len(d.newline)
	if step == 1 {
		for {
			i := bytes.IndexByte(buf, d.newline[0])
			if i < 0 {
				return lines, buf
			}
			lines = append(lines, buf[:i+1])
			buf = buf[i+1:]
		}
	}

	start := 0
	for i := 0; i+step <= len(buf); i += step {
		if bytes.Equal(buf[i:i+step], d.newline) {
			lines = append(lines, buf[start:i+step])
			start = i + step
		}
	}
	return lines, buf[start:]
}

// decode converts one raw line to a string. Invalid UTF-8 is dropped;
// other decoders substitute U+FFFD. Decoding never fails.
func (d *lineDecoder) decode(raw []byte) string {
	var s string
	if d.utf8 {
		s = strings.ToValidUTF8(string(raw), "")
	} else {
		out, err := d.enc.NewDecoder().Bytes(raw)
		if err != nil {
			s = strings.ToValidUTF8(string(out), "\uFFFD")
		} else {
			s = string(out)
		}
	}
	return strings.TrimPrefix(s, "\uFEFF")
}
