package admission

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/admissions/core/wizard"
)

var bcryptCost = bcrypt.DefaultCost // mockable

// FileInfo is what is relayed of an uploaded file.
type FileInfo struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"type"`
}

func (fi FileInfo) String() string {
	return fmt.Sprintf("%s (%s, %d bytes)", fi.Name, fi.ContentType, fi.Size)
}

// Entry is one relayed field value.
type Entry struct {
	Step  string      `json:"step"`
	Name  string      `json:"name"`
	Label string      `json:"label"`
	Value interface{} `json:"value"`
}

// Payload turns a completed draft into the entries relayed to the school, in step & field order:
//   - dates are formatted as YYYY-MM-DD,
//   - files are reduced to their name, size & type,
//   - secret fields are replaced by a bcrypt hash (named <field>Hash),
//     and secrets repeating an earlier one (confirmations) are dropped.
//
// Blank optional fields are kept with an empty value.
func Payload(steps []wizard.Step, values wizard.Values) ([]Entry, error) {
	var (
		entries []Entry
		secrets []string
	)
	for _, s := range steps {
		for _, f := range s.Fields {
			e := Entry{Step: s.Title, Name: f.Name, Label: f.Label}
			val := values.Get(f.Name)

			switch v := val.(type) {
			case nil:
				e.Value = ""
			case time.Time:
				if v.IsZero() {
					e.Value = ""
				} else {
					e.Value = v.Format(wizard.DateLayout)
				}
			case wizard.FileHandle:
				e.Value = FileInfo{Name: v.Name, Size: v.Size, ContentType: v.ContentType}
			case string:
				e.Value = v
				if f.Secret {
					if repeats(secrets, v) {
						continue
					}
					secrets = append(secrets, v)
					hash, err := bcrypt.GenerateFromPassword([]byte(v), bcryptCost)
					if err != nil {
						return nil, errors.Wrapf(err, "hashing %s", f.Name)
					}
					e.Name = f.Name + "Hash"
					e.Value = string(hash)
				}
			default:
				e.Value = v
			}
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func repeats(secrets []string, s string) bool {
	for _, sec := range secrets {
		if sec == s {
			return true
		}
	}
	return false
}

// Map keys entry values by name.
func Map(entries []Entry) map[string]interface{} {
	m := make(map[string]interface{}, len(entries))
	for _, e := range entries {
		m[e.Name] = e.Value
	}
	return m
}
