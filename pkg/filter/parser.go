package filter

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type parser struct {
	src   string
	pos   int
	depth int
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (p *parser) fail(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return goerr.Wrap(ErrInvalidFilter, fmt.Sprintf("%s at offset %d", msg, p.pos), goerr.V("offset", p.pos))
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) expect(c byte) error {
	p.skipSpace()
	if p.peek() != c {
		if p.eof() {
			return p.fail("expected %q but the query ended", c)
		}
		return p.fail("expected %q but found %q", c, p.src[p.pos])
	}
	p.pos++
	return nil
}

func (p *parser) parseQuery() (*Query, error) {
	p.skipSpace()
	if p.eof() {
		return nil, p.fail("query is empty")
	}

	q := &Query{}
	start := p.pos
	if isIdentStart(p.peek()) {
		ident := p.scanIdent()
		p.skipSpace()
		if ident == "db" && p.peek() == '.' {
			if err := p.parseCall(q); err != nil {
				return nil, err
			}
			if err := p.finish(); err != nil {
				return nil, err
			}
			return q, nil
		}
		p.pos = start
	}

	v, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	doc, ok := v.(bson.D)
	if !ok {
		p.pos = start
		return nil, p.fail("filter must be an object, got %s", describe(v))
	}
	q.Filter = doc

	if err := p.finish(); err != nil {
		return nil, err
	}
	return q, nil
}

func (p *parser) finish() error {
	p.skipSpace()
	if p.peek() == ';' {
		p.pos++
		p.skipSpace()
	}
	if !p.eof() {
		return p.fail("unexpected trailing text %q", excerpt(p.src[p.pos:]))
	}
	return nil
}

// parseCall handles db.<collection>.find(<filter>[, <projection>])
func (p *parser) parseCall(q *Query) error {
	if err := p.expect('.'); err != nil {
		return err
	}
	p.skipSpace()
	if !isIdentStart(p.peek()) {
		return p.fail("expected collection name")
	}
	q.Collection = p.scanIdent()

	if err := p.expect('.'); err != nil {
		return err
	}
	p.skipSpace()
	method := p.scanIdent()
	if method != "find" && method != "findOne" {
		return p.fail("method %q is not allowed, only find and findOne are", method)
	}
	if err := p.expect('('); err != nil {
		return err
	}

	p.skipSpace()
	if p.peek() != ')' {
		v, err := p.parseValue()
		if err != nil {
			return err
		}
		doc, ok := v.(bson.D)
		if !ok {
			return p.fail("filter must be an object, got %s", describe(v))
		}
		q.Filter = doc

		p.skipSpace()
		if p.peek() == ',' {
			p.pos++
			v, err := p.parseValue()
			if err != nil {
				return err
			}
			proj, ok := v.(bson.D)
			if !ok {
				return p.fail("projection must be an object, got %s", describe(v))
			}
			q.Projection = proj
		}
	}

	if q.Filter == nil {
		q.Filter = bson.D{}
	}
	return p.expect(')')
}

func (p *parser) parseValue() (any, error) {
	p.skipSpace()
	if p.eof() {
		return nil, p.fail("unexpected end of query")
	}

	c := p.peek()
	switch {
	case c == '{':
		return p.parseObject()
	case c == '[':
		return p.parseArray()
	case c == '"' || c == '\'':
		return p.parseString()
	case c == '/':
		return p.parseRegex()
	case c == '-' || isDigit(c):
		return p.parseNumber()
	case isIdentStart(c):
		return p.parseKeyword()
	}

	return nil, p.fail("unexpected character %q", c)
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxDepth {
		return p.fail("filter is nested deeper than %d levels", maxDepth)
	}
	return nil
}

func (p *parser) parseObject() (bson.D, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer func() { p.depth-- }()

	p.pos++ // '{'
	doc := bson.D{}
	for {
		p.skipSpace()
		if p.peek() == '}' {
			p.pos++
			return doc, nil
		}

		keyPos := p.pos
		key, err := p.parseKey()
		if err != nil {
			return nil, err
		}
		if err := p.expect(':'); err != nil {
			return nil, err
		}
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if err := checkOperand(key, value); err != nil {
			return nil, goerr.Wrap(err, "invalid operand", goerr.V("offset", keyPos))
		}
		doc = append(doc, bson.E{Key: key, Value: value})

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return doc, nil
		default:
			if p.eof() {
				return nil, p.fail("object is not closed")
			}
			return nil, p.fail("expected ',' or '}' but found %q", p.peek())
		}
	}
}

func (p *parser) parseKey() (string, error) {
	var key string
	switch c := p.peek(); {
	case c == '"' || c == '\'':
		s, err := p.parseString()
		if err != nil {
			return "", err
		}
		key = s
	case isIdentStart(c):
		key = p.scanKeyIdent()
	case p.eof():
		return "", p.fail("object is not closed")
	default:
		return "", p.fail("expected a field name but found %q", c)
	}

	if key == "" {
		return "", p.fail("field name is empty")
	}
	if strings.HasPrefix(key, "$") && !allowedOperators[key] {
		return "", goerr.Wrap(ErrOperatorNotAllowed, fmt.Sprintf("operator %s is not allowed", key),
			goerr.V("operator", key),
			goerr.V("offset", p.pos))
	}
	return key, nil
}

func (p *parser) parseArray() (bson.A, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer func() { p.depth-- }()

	p.pos++ // '['
	arr := bson.A{}
	for {
		p.skipSpace()
		if p.peek() == ']' {
			p.pos++
			return arr, nil
		}

		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return arr, nil
		default:
			if p.eof() {
				return nil, p.fail("array is not closed")
			}
			return nil, p.fail("expected ',' or ']' but found %q", p.peek())
		}
	}
}

func (p *parser) parseString() (string, error) {
	quote := p.src[p.pos]
	start := p.pos
	p.pos++

	var b strings.Builder
	for !p.eof() {
		c := p.src[p.pos]
		switch {
		case c == quote:
			p.pos++
			return b.String(), nil
		case c == '\n':
			return "", p.fail("line break inside string")
		case c == '\\':
			p.pos++
			if p.eof() {
				break
			}
			if err := p.writeEscape(&b); err != nil {
				return "", err
			}
		default:
			b.WriteByte(c)
			p.pos++
		}
	}

	p.pos = start
	return "", p.fail("string is not closed")
}

func (p *parser) writeEscape(b *strings.Builder) error {
	c := p.src[p.pos]
	p.pos++
	switch c {
	case '"', '\'', '\\', '/':
		b.WriteByte(c)
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'n':
		b.WriteByte('\n')
	case 'r':
		b.WriteByte('\r')
	case 't':
		b.WriteByte('\t')
	case 'u':
		r, err := p.scanHex4()
		if err != nil {
			return err
		}
		if utf16.IsSurrogate(r) {
			// a high surrogate must be followed by an escaped low surrogate
			if !strings.HasPrefix(p.src[p.pos:], `\u`) {
				return p.fail("unpaired surrogate in unicode escape")
			}
			p.pos += 2
			low, err := p.scanHex4()
			if err != nil {
				return err
			}
			r = utf16.DecodeRune(r, low)
			if r == utf8.RuneError {
				return p.fail("invalid surrogate pair in unicode escape")
			}
		}
		b.WriteRune(r)
	default:
		return p.fail("unknown escape sequence \\%c", c)
	}
	return nil
}

func (p *parser) scanHex4() (rune, error) {
	if p.pos+4 > len(p.src) {
		return 0, p.fail("incomplete unicode escape")
	}
	code, err := strconv.ParseUint(p.src[p.pos:p.pos+4], 16, 32)
	if err != nil {
		return 0, p.fail("invalid unicode escape %q", p.src[p.pos:p.pos+4])
	}
	p.pos += 4
	return rune(code), nil
}

func (p *parser) parseNumber() (any, error) {
	start := p.pos
	if p.peek() == '-' {
		p.pos++
	}
	digits := p.scanDigits()
	if digits == 0 {
		return nil, p.fail("invalid number")
	}

	isFloat := false
	if p.peek() == '.' {
		isFloat = true
		p.pos++
		if p.scanDigits() == 0 {
			return nil, p.fail("invalid number")
		}
	}
	if c := p.peek(); c == 'e' || c == 'E' {
		isFloat = true
		p.pos++
		if c := p.peek(); c == '+' || c == '-' {
			p.pos++
		}
		if p.scanDigits() == 0 {
			return nil, p.fail("invalid number exponent")
		}
	}

	literal := p.src[start:p.pos]
	if !isFloat {
		if n, err := strconv.ParseInt(literal, 10, 64); err == nil {
			if n >= math.MinInt32 && n <= math.MaxInt32 {
				return int32(n), nil
			}
			return n, nil
		}
	}

	f, err := strconv.ParseFloat(literal, 64)
	if err != nil {
		return nil, p.fail("invalid number %q", literal)
	}
	return f, nil
}

func (p *parser) scanDigits() int {
	n := 0
	for isDigit(p.peek()) {
		p.pos++
		n++
	}
	return n
}

func (p *parser) parseRegex() (primitive.Regex, error) {
	start := p.pos
	p.pos++ // '/'

	var pattern strings.Builder
	closed := false
	for !p.eof() {
		c := p.src[p.pos]
		if c == '\n' {
			break
		}
		if c == '\\' && p.pos+1 < len(p.src) {
			pattern.WriteByte(c)
			pattern.WriteByte(p.src[p.pos+1])
			p.pos += 2
			continue
		}
		p.pos++
		if c == '/' {
			closed = true
			break
		}
		pattern.WriteByte(c)
	}
	if !closed {
		p.pos = start
		return primitive.Regex{}, p.fail("regular expression is not closed")
	}
	if pattern.Len() == 0 {
		p.pos = start
		return primitive.Regex{}, p.fail("regular expression is empty")
	}

	flagStart := p.pos
	for isIdentChar(p.peek()) {
		if !strings.ContainsRune("imsxu", rune(p.peek())) {
			return primitive.Regex{}, p.fail("unsupported regular expression flag %q", p.peek())
		}
		p.pos++
	}

	return primitive.Regex{Pattern: pattern.String(), Options: p.src[flagStart:p.pos]}, nil
}

func (p *parser) parseKeyword() (any, error) {
	start := p.pos
	ident := p.scanIdent()

	switch ident {
	case "true", "True":
		return true, nil
	case "false", "False":
		return false, nil
	case "null", "None":
		return nil, nil
	case "new":
		p.skipSpace()
		ctorPos := p.pos
		name := p.scanIdent()
		switch name {
		case "Date", "ISODate", "ObjectId":
			return p.parseConstructor(name)
		}
		p.pos = ctorPos
		return nil, p.fail("constructor %q is not allowed", name)
	case "ObjectId", "ISODate", "Date", "NumberInt", "NumberLong":
		return p.parseConstructor(ident)
	}

	p.pos = start
	return nil, p.fail("unknown identifier %q", ident)
}

func (p *parser) parseConstructor(name string) (any, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.peek() == ')' {
		return nil, p.fail("%s() requires an argument", name)
	}

	argPos := p.pos
	arg, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}

	switch name {
	case "ObjectId":
		hex, ok := arg.(string)
		if !ok {
			return nil, p.failAt(argPos, "ObjectId requires a hex string")
		}
		oid, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			return nil, p.failAt(argPos, "invalid ObjectId %q", hex)
		}
		return oid, nil

	case "ISODate", "Date":
		switch v := arg.(type) {
		case string:
			t, err := parseTime(v)
			if err != nil {
				return nil, p.failAt(argPos, "invalid date %q", v)
			}
			return primitive.NewDateTimeFromTime(t), nil
		case int32:
			return primitive.NewDateTimeFromTime(time.UnixMilli(int64(v))), nil
		case int64:
			return primitive.NewDateTimeFromTime(time.UnixMilli(v)), nil
		}
		return nil, p.failAt(argPos, "%s requires a date string or epoch milliseconds", name)

	case "NumberInt", "NumberLong":
		n, err := toInt64(arg)
		if err != nil {
			return nil, p.failAt(argPos, "%s requires an integer", name)
		}
		if name == "NumberInt" {
			if n < math.MinInt32 || n > math.MaxInt32 {
				return nil, p.failAt(argPos, "NumberInt out of range")
			}
			return int32(n), nil
		}
		return n, nil
	}

	return nil, p.failAt(argPos, "constructor %q is not allowed", name)
}

func (p *parser) failAt(pos int, format string, args ...any) error {
	p.pos = pos
	return p.fail(format, args...)
}

func (p *parser) scanIdent() string {
	start := p.pos
	for isIdentChar(p.peek()) {
		p.pos++
	}
	return p.src[start:p.pos]
}

// scanKeyIdent also accepts dots so that unquoted dotted paths like location.city work as keys
func (p *parser) scanKeyIdent() string {
	start := p.pos
	for c := p.peek(); isIdentChar(c) || c == '.'; c = p.peek() {
		p.pos++
	}
	return p.src[start:p.pos]
}

func parseTime(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	}
	return 0, goerr.New("not an integer", goerr.V("value", v))
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bson.A:
		return "an array"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case int32, int64, float64:
		return "a number"
	case primitive.Regex:
		return "a regular expression"
	}
	return fmt.Sprintf("%T", v)
}

func excerpt(s string) string {
	const limit = 24
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
