package logging

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"

	apperrors "github.com/leeforge/logfactory/errors"
)

// DefaultFormat renders only the message.
const DefaultFormat = "%(message)s"

const defaultTimeLayout = "2006-01-02 15:04:05"

var (
	bufferPool = buffer.NewPool()
	pid        = os.Getpid()

	placeholderRe = regexp.MustCompile(`%\((\w+)\)([#0\- +]*\d*(?:\.\d+)?)([sdifrxXeEgG])|%%`)
)

// recordKeys lists the attributes a format template may reference.
var recordKeys = map[string]struct{}{
	"name": {}, "levelname": {}, "levelno": {}, "message": {}, "asctime": {},
	"msecs": {}, "created": {}, "filename": {}, "pathname": {}, "lineno": {},
	"funcName": {}, "module": {}, "process": {},
}

type templatePart struct {
	literal string
	key     string
	verb    string
}

// Formatter renders records with a %(key)s style template.
type Formatter struct {
	format  string
	datefmt string
	parts   []templatePart
}

// NewFormatter parses format. An empty format means DefaultFormat. datefmt
// uses strftime directives and controls %(asctime)s.
func NewFormatter(format, datefmt string) (*Formatter, error) {
	if format == "" {
		format = DefaultFormat
	}

	f := &Formatter{format: format, datefmt: datefmt}
	last := 0
	for _, m := range placeholderRe.FindAllStringSubmatchIndex(format, -1) {
		if m[0] > last {
			f.parts = append(f.parts, templatePart{literal: format[last:m[0]]})
		}
		last = m[1]

		if m[2] < 0 {
			f.parts = append(f.parts, templatePart{literal: "%"})
			continue
		}
		key := format[m[2]:m[3]]
		if _, ok := recordKeys[key]; !ok {
			return nil, apperrors.Newf(apperrors.ErrorTypeInvalid, "format %q: unknown attribute %q", format, key)
		}
		f.parts = append(f.parts, templatePart{
			key:  key,
			verb: "%" + format[m[4]:m[5]] + goVerb(format[m[6]:m[7]]),
		})
	}
	if last < len(format) {
		f.parts = append(f.parts, templatePart{literal: format[last:]})
	}
	return f, nil
}

// MustFormatter is NewFormatter for constant templates.
func MustFormatter(format, datefmt string) *Formatter {
	f, err := NewFormatter(format, datefmt)
	if err != nil {
		panic(err)
	}
	return f
}

// Format returns the template source.
func (f *Formatter) Format() string { return f.format }

func goVerb(v string) string {
	switch v {
	case "s":
		return "v"
	case "i":
		return "d"
	case "r":
		return "q"
	default:
		return v
	}
}

func (f *Formatter) render(buf *buffer.Buffer, ent zapcore.Entry, colors *LevelColors) {
	for _, p := range f.parts {
		if p.key == "" {
			buf.AppendString(p.literal)
			continue
		}
		s := fmt.Sprintf(p.verb, f.value(p.key, ent))
		if p.key == "levelname" && colors != nil {
			s = Colorize(colors.For(ent.Level), s)
		}
		buf.AppendString(s)
	}
}

func (f *Formatter) value(key string, ent zapcore.Entry) any {
	switch key {
	case "name":
		if ent.LoggerName == "" {
			return RootLoggerName
		}
		return ent.LoggerName
	case "levelname":
		return LevelName(ent.Level)
	case "levelno":
		return LevelNumber(ent.Level)
	case "message":
		return ent.Message
	case "asctime":
		return f.asctime(ent.Time)
	case "msecs":
		return ent.Time.Nanosecond() / int(time.Millisecond)
	case "created":
		return float64(ent.Time.UnixNano()) / float64(time.Second)
	case "filename":
		return filepath.Base(ent.Caller.File)
	case "pathname":
		return ent.Caller.File
	case "lineno":
		return ent.Caller.Line
	case "funcName":
		fn := ent.Caller.Function
		if i := strings.LastIndexByte(fn, '.'); i >= 0 {
			fn = fn[i+1:]
		}
		return fn
	case "module":
		base := filepath.Base(ent.Caller.File)
		return strings.TrimSuffix(base, filepath.Ext(base))
	case "process":
		return pid
	}
	return ""
}

func (f *Formatter) asctime(t time.Time) string {
	if f.datefmt != "" {
		return strftime(t, f.datefmt)
	}
	return fmt.Sprintf("%s,%03d", t.Format(defaultTimeLayout), t.Nanosecond()/int(time.Millisecond))
}

// templateEncoder is a zapcore.Encoder that renders the Formatter template and
// appends structured fields as a JSON object. Context fields added through
// With are accumulated by the embedded JSON encoder.
type templateEncoder struct {
	zapcore.Encoder
	formatter *Formatter
	colors    *LevelColors
}

func newTemplateEncoder(f *Formatter, colors *LevelColors) zapcore.Encoder {
	return &templateEncoder{
		Encoder:   zapcore.NewJSONEncoder(fieldsEncoderConfig()),
		formatter: f,
		colors:    colors,
	}
}

// fieldsEncoderConfig leaves every entry key empty so the JSON encoder only
// emits fields.
func fieldsEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
}

func (e *templateEncoder) Clone() zapcore.Encoder {
	return &templateEncoder{
		Encoder:   e.Encoder.Clone(),
		formatter: e.formatter,
		colors:    e.colors,
	}
}

func (e *templateEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	line := bufferPool.Get()
	e.formatter.render(line, ent, e.colors)

	extra, err := e.Encoder.EncodeEntry(zapcore.Entry{}, fields)
	if err != nil {
		line.Free()
		return nil, err
	}
	obj := bytes.TrimRight(extra.Bytes(), "\n")
	if len(obj) > 2 {
		line.AppendByte(' ')
		_, _ = line.Write(obj)
	}
	extra.Free()

	if ent.Stack != "" {
		line.AppendByte('\n')
		line.AppendString(ent.Stack)
	}
	line.AppendByte('\n')
	return line, nil
}
