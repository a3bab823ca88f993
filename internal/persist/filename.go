package persist

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nightsky-data/skystack/internal/stack"
)

// The filename template exposes a fixed, explicit substitution set. Nothing
// else from the job or the environment is reachable from a template.
//
//	{start_time}   window start, formatted per the date layout, or raw
//	               Unix seconds when no layout is configured
//	{stack_type}   composite kind ("max")
//	{stack_length} window length in whole seconds
var templateFields = map[string]bool{
	"start_time":   true,
	"stack_type":   true,
	"stack_length": true,
}

// ValidateTemplate checks that every {placeholder} in the template is in
// the substitution set and every brace is balanced. Called at startup so a
// bad template is a config error, not a mid-session save failure.
func ValidateTemplate(tmpl string) error {
	rest := tmpl
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			if strings.IndexByte(rest, '}') >= 0 {
				return fmt.Errorf("filename template %q: unmatched '}'", tmpl)
			}
			return nil
		}
		if stray := strings.IndexByte(rest[:open], '}'); stray >= 0 {
			return fmt.Errorf("filename template %q: unmatched '}'", tmpl)
		}
		closing := strings.IndexByte(rest[open:], '}')
		if closing < 0 {
			return fmt.Errorf("filename template %q: unmatched '{'", tmpl)
		}
		name := rest[open+1 : open+closing]
		if !templateFields[name] {
			return fmt.Errorf("filename template %q: unknown field {%s}", tmpl, name)
		}
		rest = rest[open+closing+1:]
	}
}

// Filename renders the output path for a job. The template must have been
// validated; an unknown field still fails rather than passing through.
func Filename(tmpl, dateLayout string, job stack.SaveJob) (string, error) {
	var startTime string
	if dateLayout != "" {
		startTime = job.WindowStart.UTC().Format(dateLayout)
	} else {
		startTime = strconv.FormatInt(job.WindowStart.Unix(), 10)
	}

	values := map[string]string{
		"start_time":   startTime,
		"stack_type":   job.Kind,
		"stack_length": strconv.FormatInt(int64(job.WindowLength/time.Second), 10),
	}

	var b strings.Builder
	rest := tmpl
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		b.WriteString(rest[:open])
		closing := strings.IndexByte(rest[open:], '}')
		if closing < 0 {
			return "", fmt.Errorf("filename template %q: unmatched '{'", tmpl)
		}
		name := rest[open+1 : open+closing]
		v, ok := values[name]
		if !ok {
			return "", fmt.Errorf("filename template %q: unknown field {%s}", tmpl, name)
		}
		b.WriteString(v)
		rest = rest[open+closing+1:]
	}
}
