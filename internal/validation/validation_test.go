package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type check struct {
	in      string
	wantErr bool
}

func runChecks(t *testing.T, fn func(string) error, checks map[string]check) {
	t.Helper()
	for name, c := range checks {
		t.Run(name, func(t *testing.T) {
			err := fn(c.in)
			if c.wantErr {
				assert.Error(t, err, "input %q", c.in)
			} else {
				assert.NoError(t, err, "input %q", c.in)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	t.Parallel()
	runChecks(t, ValidatePassword, map[string]check{
		"passphrase":              {"correct horse", false},
		"min length":              {"abcdefgh", false},
		"max bytes":               {strings.Repeat("a", MaxPasswordBytes), false},
		"one short":               {"abcdefg", true},
		"one byte over":           {strings.Repeat("a", MaxPasswordBytes+1), true},
		"multibyte over 72 bytes": {strings.Repeat("é", 37), true},
		"multibyte counts runes":  {"ééééééé", true},
		"spaces only":             {"          ", true},
		"accented":                {"Ångström pass", false},
	})
}

func TestValidateUsername(t *testing.T) {
	t.Parallel()
	runChecks(t, ValidateUsername, map[string]check{
		"letters digits underscore": {"jane_doe42", false},
		"hyphen inside":             {"jane-doe", false},
		"two chars":                 {"jd", true},
		"thirty one chars":          {strings.Repeat("j", 31), true},
		"at sign":                   {"jane@doe", true},
		"space":                     {"jane doe", true},
		"leading hyphen":            {"-jane", true},
		"trailing underscore":       {"jane_", true},
	})
}

func TestValidateEmail(t *testing.T) {
	t.Parallel()
	// 64 local + "@" + 185 + ".com" is exactly 254 characters.
	longest := strings.Repeat("a", 64) + "@" + strings.Repeat("b", 185) + ".com"
	runChecks(t, ValidateEmail, map[string]check{
		"plain":          {"jane@example.com", false},
		"plus tag":       {"jane+chirp@example.co.uk", false},
		"254 characters": {longest, false},
		"255 characters": {"a" + longest, true},
		"no at":          {"jane.example.com", true},
		"no domain":      {"jane@", true},
		"double at":      {"jane@@example.com", true},
		"space":          {"ja ne@example.com", true},
		"trailing dot":   {"jane@example.com.", true},
	})
}

func TestValidateImageURL(t *testing.T) {
	t.Parallel()
	runChecks(t, ValidateImageURL, map[string]check{
		"empty":      {"", false},
		"https":      {"https://img.example.com/a.png", false},
		"http":       {"http://img.example.com/a.png", false},
		"javascript": {"javascript:alert(1)", true},
		"relative":   {"/uploads/a.png", true},
		"too long":   {"https://x.com/" + strings.Repeat("a", 2048), true},
	})
}

func TestValidateText(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateText("Text", "hello", MaxPostText, true))
	assert.NoError(t, ValidateText("Text", strings.Repeat("ü", MaxPostText), MaxPostText, true),
		"the limit counts characters, not bytes")
	assert.NoError(t, ValidateText("Bio", "", MaxBio, false))

	err := ValidateText("Comment", "   ", MaxCommentText, true)
	assert.EqualError(t, err, "Comment is required")

	err = ValidateText("Comment", strings.Repeat("x", MaxCommentText+1), MaxCommentText, true)
	assert.EqualError(t, err, "Comment too long (max 1000 characters)")
}
