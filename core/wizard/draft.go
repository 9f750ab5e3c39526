package wizard

import (
	"fmt"
	"time"
)

// FileHandle is an opaque reference to a file selected for a file field.
type FileHandle struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

func (fh FileHandle) IsZero() bool { return fh.ID == "" }

// Values maps field names to draft values:
// string (text & enum tags), time.Time, bool or FileHandle.
type Values map[string]interface{}

func (v Values) Get(name string) interface{} {
	return v[name]
}

// String returns the value of name as a string, or "" if it is not text.
func (v Values) String(name string) string {
	return toString(v[name])
}

// Time returns the value of name as a time.Time, or the zero time.
func (v Values) Time(name string) time.Time {
	t, _ := v[name].(time.Time)
	return t
}

func (v Values) Bool(name string) bool {
	b, _ := v[name].(bool)
	return b
}

func (v Values) File(name string) (FileHandle, bool) {
	fh, ok := v[name].(FileHandle)
	return fh, ok && !fh.IsZero()
}

func (v Values) clone() Values {
	c := make(Values, len(v))
	for k, val := range v {
		c[k] = val
	}
	return c
}

// Draft is the cross-step record of everything entered in a wizard.
// It is owned by its Wizard and is not safe for concurrent use on its own.
type Draft struct {
	values   Values
	errors   map[string]string
	progress map[string]int // file field -> upload %
}

func newDraft() *Draft {
	return &Draft{
		values:   make(Values),
		errors:   make(map[string]string),
		progress: make(map[string]int),
	}
}

// SetField upserts a single field and clears its current error.
// It never validates nor navigates.
func (d *Draft) SetField(name string, value interface{}) {
	d.values[name] = value
	delete(d.errors, name)
}

// Snapshot returns an immutable copy of the draft values.
func (d *Draft) Snapshot() Values {
	return d.values.clone()
}

func (d *Draft) setErrors(errs map[string]string) {
	d.errors = errs
}

func (d *Draft) clearErrors() {
	d.errors = make(map[string]string)
}

func (d *Draft) errorsCopy() map[string]string {
	c := make(map[string]string, len(d.errors))
	for k, v := range d.errors {
		c[k] = v
	}
	return c
}

func (d *Draft) setProgress(field string, pct int) {
	if pct < 0 {
		pct = 0
	} else if pct > 100 {
		pct = 100
	}
	d.progress[field] = pct
}

func (d *Draft) progressCopy() map[string]int {
	c := make(map[string]int, len(d.progress))
	for k, v := range d.progress {
		c[k] = v
	}
	return c
}

func (d *Draft) reset() {
	d.values = make(Values)
	d.errors = make(map[string]string)
	d.progress = make(map[string]int)
}

func toString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}
