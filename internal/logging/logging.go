// Package logging provides a standardized logrus field-builder shared by
// every package in the relay: each package gets a *Helper carrying its name
// so log lines are consistently tagged with "package" and "function".
package logging

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Helper wraps logrus with a fixed package/function field pair.
type Helper struct {
	fields logrus.Fields
}

// For creates a helper tagged with the given package and function name.
func For(pkg, function string) *Helper {
	return &Helper{
		fields: logrus.Fields{
			"package":  pkg,
			"function": function,
		},
	}
}

// WithField returns a copy of the helper with an extra field set.
func (h *Helper) WithField(key string, value interface{}) *Helper {
	fields := make(logrus.Fields, len(h.fields)+1)
	for k, v := range h.fields {
		fields[k] = v
	}
	fields[key] = value
	return &Helper{fields: fields}
}

// WithError returns a copy of the helper annotated with an error.
func (h *Helper) WithError(err error) *Helper {
	return h.WithField("error", err.Error())
}

func (h *Helper) Debug(msg string) { logrus.WithFields(h.fields).Debug(msg) }
func (h *Helper) Info(msg string)  { logrus.WithFields(h.fields).Info(msg) }
func (h *Helper) Warn(msg string)  { logrus.WithFields(h.fields).Warn(msg) }
func (h *Helper) Error(msg string) { logrus.WithFields(h.fields).Error(msg) }

// KeyPreview renders the first few bytes of a key as hex, for logging
// identifiers without dumping full key material into log output.
func KeyPreview(key []byte) string {
	n := 8
	if len(key) < n {
		n = len(key)
	}
	if n == 0 {
		return "nil"
	}
	suffix := ""
	if len(key) > n {
		suffix = "..."
	}
	return fmt.Sprintf("%x%s", key[:n], suffix)
}
