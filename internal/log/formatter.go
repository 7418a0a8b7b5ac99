package log

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

type formatter struct {
	pattern string
	time    string
}

// Format expands %time, %level, %field, %msg, %caller, %func and
// %goroutine in the pattern. Each entry ends with a newline.
func (f *formatter) Format(entry *logrus.Entry) ([]byte, error) {
	pattern := f.pattern
	if len(entry.Data) == 0 {
		pattern = strings.Replace(pattern, "%field ", "", 1)
	}
	r := strings.NewReplacer(
		"%time", entry.Time.Format(f.time),
		"%level", strings.ToUpper(entry.Level.String()),
		"%field", buildFields(entry),
		"%msg", entry.Message,
		"%caller", caller(entry),
		"%func", function(entry),
		"%goroutine", goroutineID(),
	)
	return []byte(r.Replace(pattern) + "\n"), nil
}

// caller returns package/file.go:line, or "unknown" without caller reporting.
func caller(entry *logrus.Entry) string {
	if !entry.HasCaller() {
		return "unknown"
	}
	file := entry.Caller.File
	if i := strings.LastIndex(file, "/"); i != -1 {
		file = file[i+1:]
	}
	pkg := ""
	if fn := entry.Caller.Function; fn != "" {
		if i := strings.LastIndex(fn, "/"); i != -1 {
			fn = fn[i+1:]
		}
		pkg, _, _ = strings.Cut(fn, ".")
	}
	return fmt.Sprintf("%s/%s:%d", pkg, file, entry.Caller.Line)
}

func function(entry *logrus.Entry) string {
	if !entry.HasCaller() {
		return "unknown"
	}
	fn := entry.Caller.Function
	if i := strings.LastIndex(fn, "."); i != -1 {
		return fn[i+1:]
	}
	return fn
}

func goroutineID() string {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := strings.Fields(strings.TrimPrefix(string(buf[:n]), "goroutine "))
	if len(fields) > 0 {
		return fields[0]
	}
	return "unknown"
}

// buildFields renders entry data as sorted key=value pairs.
func buildFields(entry *logrus.Entry) string {
	fields := make([]string, 0, len(entry.Data))
	for key, val := range entry.Data {
		s, ok := val.(string)
		if !ok {
			s = fmt.Sprint(val)
		}
		fields = append(fields, key+"="+s)
	}
	sort.Strings(fields)
	return strings.Join(fields, ",")
}
