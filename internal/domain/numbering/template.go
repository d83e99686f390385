package numbering

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
)

// Template placeholders
const (
	PlaceholderYear   = "YEAR"
	PlaceholderMonth  = "MONTH"
	PlaceholderNumber = "NUMBER"
)

// MaxNumberWidth bounds the zero-padding width of {NUMBER:N}
const MaxNumberWidth = 18

type segmentKind int

const (
	segmentLiteral segmentKind = iota
	segmentYear
	segmentMonth
	segmentNumber
)

type segment struct {
	kind  segmentKind
	text  string
	width int // 0 means series default
}

// Template is a parsed document number format such as "OR-{YEAR}{MONTH}-{NUMBER:6}".
// Literal text passes through unchanged.
type Template struct {
	raw      string
	segments []segment
}

// ErrMalformedTemplate is returned for unparsable format templates
var ErrMalformedTemplate = shared.NewValidationError("INVALID_FORMAT_TEMPLATE", "Format template is malformed")

func malformed(format string, args ...any) error {
	return shared.NewValidationError(ErrMalformedTemplate.Code, fmt.Sprintf(format, args...))
}

// ParseTemplate parses a format template. The template must contain at least one
// number placeholder; unknown placeholders and unbalanced braces are rejected.
func ParseTemplate(raw string) (Template, error) {
	if strings.TrimSpace(raw) == "" {
		return Template{}, malformed("Format template cannot be empty")
	}

	var (
		segments  []segment
		literal   strings.Builder
		hasNumber bool
	)
	flush := func() {
		if literal.Len() > 0 {
			segments = append(segments, segment{kind: segmentLiteral, text: literal.String()})
			literal.Reset()
		}
	}

	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '}':
			return Template{}, malformed("Unbalanced '}' at position %d in format template", i)
		case '{':
			end := strings.IndexByte(raw[i+1:], '}')
			if end < 0 {
				return Template{}, malformed("Unclosed '{' at position %d in format template", i)
			}
			body := raw[i+1 : i+1+end]
			if strings.ContainsRune(body, '{') {
				return Template{}, malformed("Nested '{' at position %d in format template", i)
			}
			seg, err := parsePlaceholder(body)
			if err != nil {
				return Template{}, err
			}
			if seg.kind == segmentNumber {
				hasNumber = true
			}
			flush()
			segments = append(segments, seg)
			i += end + 1
		default:
			literal.WriteByte(raw[i])
		}
	}
	flush()

	if !hasNumber {
		return Template{}, malformed("Format template must contain a {NUMBER} placeholder")
	}
	return Template{raw: raw, segments: segments}, nil
}

func parsePlaceholder(body string) (segment, error) {
	name, arg, hasArg := strings.Cut(body, ":")
	switch name {
	case PlaceholderYear, PlaceholderMonth:
		if hasArg {
			return segment{}, malformed("Placeholder {%s} does not take a width", name)
		}
		if name == PlaceholderYear {
			return segment{kind: segmentYear}, nil
		}
		return segment{kind: segmentMonth}, nil
	case PlaceholderNumber:
		if !hasArg {
			return segment{kind: segmentNumber}, nil
		}
		width, err := strconv.Atoi(arg)
		if err != nil || width < 1 || width > MaxNumberWidth {
			return segment{}, malformed("Invalid width %q in {NUMBER:N}, expected 1-%d", arg, MaxNumberWidth)
		}
		return segment{kind: segmentNumber, width: width}, nil
	default:
		return segment{}, malformed("Unknown placeholder {%s} in format template", body)
	}
}

// String returns the raw template text
func (t Template) String() string {
	return t.raw
}

// Render substitutes placeholders. Numbers wider than the pad width are never truncated.
func (t Template) Render(value int64, at time.Time, defaultWidth int) string {
	var b strings.Builder
	for _, seg := range t.segments {
		switch seg.kind {
		case segmentLiteral:
			b.WriteString(seg.text)
		case segmentYear:
			fmt.Fprintf(&b, "%04d", at.Year())
		case segmentMonth:
			fmt.Fprintf(&b, "%02d", int(at.Month()))
		case segmentNumber:
			width := seg.width
			if width == 0 {
				width = defaultWidth
			}
			fmt.Fprintf(&b, "%0*d", width, value)
		}
	}
	return b.String()
}

// DigitCount returns the number of decimal digits in n (n >= 0)
func DigitCount(n int64) int {
	if n < 10 {
		return 1
	}
	return len(strconv.FormatInt(n, 10))
}
