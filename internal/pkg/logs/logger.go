package logs

import (
	"fmt"
	"io"
	"runtime"

	"github.com/labstack/gommon/log"
)

// DefaultHeader is prepended to every JSON log line.
const DefaultHeader = `{"time":"${time_rfc3339_nano}","level":"${level}"}`

// Logger writes JSON log lines with optional persistent fields.
//
// It satisfies echo.Logger, so it can be used as server logger.
type Logger struct {
	*log.Logger
	fields []any
}

type Option func(*Logger)

// WithOutput redirects log lines to w.
func WithOutput(w io.Writer) Option {
	return func(l *Logger) {
		l.SetOutput(w)
	}
}

// WithLevel sets minimal level of written lines.
func WithLevel(level log.Lvl) Option {
	return func(l *Logger) {
		l.SetLevel(level)
	}
}

func NewLogger(options ...Option) *Logger {
	l := Logger{Logger: log.New("")}
	l.SetHeader(DefaultHeader)
	for _, option := range options {
		option(&l)
	}
	return &l
}

// With returns logger that adds specified fields to every line.
func (l *Logger) With(args ...any) *Logger {
	fields := make([]any, 0, len(args)+len(l.fields))
	fields = append(fields, args...)
	fields = append(fields, l.fields...)
	return &Logger{Logger: l.Logger, fields: fields}
}

func (l *Logger) Debug(args ...any) {
	l.write(log.DEBUG, newLogLine(args...))
}

func (l *Logger) Info(args ...any) {
	l.write(log.INFO, newLogLine(args...))
}

func (l *Logger) Warn(args ...any) {
	l.write(log.WARN, newLogLine(args...))
}

func (l *Logger) Error(args ...any) {
	l.write(log.ERROR, newLogLine(args...))
}

func (l *Logger) Debugf(format string, args ...any) {
	l.write(log.DEBUG, newLogLine(fmt.Sprintf(format, args...)))
}

func (l *Logger) Infof(format string, args ...any) {
	l.write(log.INFO, newLogLine(fmt.Sprintf(format, args...)))
}

func (l *Logger) Warnf(format string, args ...any) {
	l.write(log.WARN, newLogLine(fmt.Sprintf(format, args...)))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.write(log.ERROR, newLogLine(fmt.Sprintf(format, args...)))
}

func (l *Logger) Debugj(j log.JSON) {
	l.write(log.DEBUG, j)
}

func (l *Logger) Infoj(j log.JSON) {
	l.write(log.INFO, j)
}

func (l *Logger) Warnj(j log.JSON) {
	l.write(log.WARN, j)
}

func (l *Logger) Errorj(j log.JSON) {
	l.write(log.ERROR, j)
}

func (l *Logger) write(level log.Lvl, line log.JSON) {
	setBaseLogLine(line)
	setLogLine(line, l.fields...)
	switch level {
	case log.DEBUG:
		l.Logger.Debugj(line)
	case log.INFO:
		l.Logger.Infoj(line)
	case log.WARN:
		l.Logger.Warnj(line)
	default:
		l.Logger.Errorj(line)
	}
}

type LogField struct {
	Name  string
	Value any
}

func Any(name string, value any) LogField {
	return LogField{Name: name, Value: value}
}

func newLogLine(args ...any) log.JSON {
	line := log.JSON{}
	setLogLine(line, args...)
	return line
}

func setBaseLogLine(line log.JSON) {
	_, file, no, _ := runtime.Caller(3)
	line["file"] = fmt.Sprintf("%s:%d", file, no)
}

func setLogLine(line log.JSON, args ...any) {
	for _, arg := range args {
		switch v := arg.(type) {
		case nil:
		case string:
			line["message"] = v
		case LogField:
			line[v.Name] = v.Value
		case error:
			line["error"] = v.Error()
		case fmt.Stringer:
			line["message"] = v.String()
		default:
			line["message"] = fmt.Sprint(v)
		}
	}
}
