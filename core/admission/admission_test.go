package admission

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/admissions/core/wizard"
	"github.com/trezcool/admissions/tests"
)

func init() {
	bcryptCost = bcrypt.MinCost
}

var (
	student = wizard.Values{
		"firstName":   "Jane",
		"lastName":    "Doe",
		"gender":      "female",
		"dateOfBirth": time.Date(2010, 5, 17, 0, 0, 0, 0, time.UTC),
		"nationality": "Rwandan",
	}
	parent = wizard.Values{
		"parentName":   "John Doe",
		"parentEmail":  "john@example.com",
		"parentPhone":  "+250 788 416 574",
		"address":      "KG 7 Ave, Kigali",
		"relationship": "father",
	}
	academic = wizard.Values{
		"previousSchool": "Green Hills Academy",
		"gradeApplying":  "S4",
		"combination":    "",
	}
	account = wizard.Values{
		"email":           "jane.doe@example.com",
		"password":        "Kigali#2024!",
		"confirmPassword": "Kigali#2024!",
		"agreeTerms":      true,
	}
	reportCard = wizard.FileHandle{ID: "f1", Name: "report.pdf", Size: 2048, ContentType: "application/pdf"}
)

func TestApply(t *testing.T) {
	gw := new(testutil.Gateway)
	reg := wizard.NewRegistry()
	require.NoError(t, Register(reg, gw))

	w, err := reg.NewWizard(ApplyForm, wizard.WithUploadTick(time.Millisecond))
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, 4, w.TotalSteps())

	// step 1 with only the first name
	require.NoError(t, w.SetField("firstName", "Jane"))
	moved, err := w.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, moved)
	assert.Equal(t, map[string]string{
		"lastName":    "Last Name is required",
		"gender":      "Gender is required",
		"dateOfBirth": "Date of Birth is required",
		"nationality": "Nationality is required",
	}, w.Errors())

	testutil.Fill(t, w, student)
	testutil.Next(t, w)

	require.NoError(t, w.SetField("parentPhone", "123456"))
	_, _ = w.Next(context.Background())
	assert.Contains(t, w.Errors()["parentPhone"], "valid Rwandan phone number")

	testutil.Fill(t, w, parent)
	testutil.Next(t, w)

	testutil.Fill(t, w, academic)
	_, _ = w.Next(context.Background())
	assert.Equal(t, map[string]string{"reportCard": "Report Card is required"}, w.Errors())
	require.NoError(t, w.AttachFile("reportCard", reportCard))
	testutil.Next(t, w)

	testutil.Fill(t, w, account)
	require.NoError(t, w.SetField("confirmPassword", "Kigali#2025!"))
	_, _ = w.Next(context.Background())
	assert.Equal(t, map[string]string{"confirmPassword": "Confirm Password does not match"}, w.Errors())

	require.NoError(t, w.SetField("confirmPassword", account["confirmPassword"]))
	testutil.Next(t, w)

	assert.Equal(t, wizard.StatusSuccess, w.Status())
	require.Len(t, gw.Submissions(), 1)
	assert.Equal(t, []string{ApplyForm}, gw.Forms())
	got := gw.Submissions()[0]
	assert.Equal(t, "Jane", got.String("firstName"))
	fh, ok := got.File("reportCard")
	assert.True(t, ok)
	assert.Equal(t, reportCard, fh)
}

func TestContact(t *testing.T) {
	steps := ContactSteps()
	require.Len(t, steps, 1)

	tests := []struct {
		name   string
		values wizard.Values
		want   []string
	}{
		{
			name:   "empty",
			values: wizard.Values{},
			want:   []string{"name", "email", "subject", "message"},
		},
		{
			name:   "short message & bad phone",
			values: wizard.Values{"name": "Jane", "email": "jane@example.com", "phone": "123", "subject": "Fees", "message": "Hi"},
			want:   []string{"phone", "message"},
		},
		{
			name:   "valid without phone",
			values: wizard.Values{"name": "Jane", "email": "jane@example.com", "subject": "Fees", "message": "What are the fees for S4?"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := steps[0].Validate(tt.values)
			assert.Len(t, errs, len(tt.want), "errors: %v", errs)
			for _, field := range tt.want {
				assert.Contains(t, errs, field)
			}
		})
	}
}

func TestPasswordPolicy(t *testing.T) {
	pwd := ApplySteps()[3].Fields[1]
	require.Equal(t, "password", pwd.Name)
	draft := wizard.Values{"firstName": "Jane", "lastName": "Doe", "email": "janedoe@example.com"}

	tests := []struct {
		name    string
		pwd     string
		wantErr string
	}{
		{name: "too short", pwd: "Ab1!", wantErr: "Password must be at least 8 characters"},
		{name: "whitespace", pwd: "Kigali 2024!", wantErr: "Password must not contain whitespace"},
		{name: "numeric", pwd: "12345678", wantErr: "Password cannot be entirely numeric"},
		{name: "like email", pwd: "JaneDoe1", wantErr: "Password is too similar to your personal information"},
		{name: "valid", pwd: "Kigali#2024!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := wizard.Run(pwd.Validators, tt.pwd, draft); got != tt.wantErr {
				t.Errorf("password validators = %q, want %q", got, tt.wantErr)
			}
		})
	}
}

func TestPayload(t *testing.T) {
	values := wizard.Values{}
	for _, v := range []wizard.Values{student, parent, academic, account} {
		for k, val := range v {
			values[k] = val
		}
	}
	values["reportCard"] = reportCard

	entries, err := Payload(ApplySteps(), values)
	require.NoError(t, err)

	m := Map(entries)
	assert.Equal(t, "2010-05-17", m["dateOfBirth"])
	assert.Equal(t, FileInfo{Name: "report.pdf", Size: 2048, ContentType: "application/pdf"}, m["reportCard"])
	assert.Equal(t, "", m["combination"])
	assert.Equal(t, true, m["agreeTerms"])
	assert.NotContains(t, m, "password")
	assert.NotContains(t, m, "confirmPassword")
	assert.NotContains(t, m, "confirmPasswordHash")

	hash, ok := m["passwordHash"].(string)
	require.True(t, ok)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("Kigali#2024!")))

	assert.Equal(t, "firstName", entries[0].Name)
	assert.Equal(t, "Student Information", entries[0].Step)
	assert.Equal(t, "agreeTerms", entries[len(entries)-1].Name)
}
