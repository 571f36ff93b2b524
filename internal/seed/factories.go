// Package seed provides helpers to create demo data for development and
// load testing. Everything is written through the service layer so seeded
// data obeys the same validation and notification rules as API traffic.
package seed

import (
	"fmt"
	"regexp"
	"strings"

	"chirp/internal/service"

	"github.com/brianvoe/gofakeit/v6"
)

// DefaultPassword is the password of every seeded user.
const DefaultPassword = "password123"

var nonUsernameChars = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Factory builds realistic-looking inputs for the services.
type Factory struct {
	faker *gofakeit.Faker
}

// NewFactory creates a Factory. A zero seed picks a random one.
func NewFactory(seed int64) *Factory {
	return &Factory{faker: gofakeit.New(seed)}
}

// Signup returns signup input for the n-th seeded user. Usernames and emails are
// unique per n.
func (f *Factory) Signup(n int) service.SignupInput {
	base := nonUsernameChars.ReplaceAllString(f.faker.Username(), "")
	if len(base) < 3 {
		base = "user"
	}
	if len(base) > 20 {
		base = base[:20]
	}
	username := fmt.Sprintf("%s_%d", base, n)

	return service.SignupInput{
		Username:   username,
		Email:      strings.ToLower(username) + "@example.com",
		Password:   DefaultPassword,
		Bio:        f.faker.Sentence(f.faker.Number(4, 14)),
		ProfilePic: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID()),
	}
}

// PostText returns a post body of one to three sentences.
func (f *Factory) PostText() string {
	switch f.faker.Number(0, 3) {
	case 0:
		return f.faker.HackerPhrase()
	case 1:
		return fmt.Sprintf("Spent the weekend on %s. %s", strings.ToLower(f.faker.Hobby()), f.faker.Sentence(8))
	default:
		return f.faker.Paragraph(1, f.faker.Number(1, 3), 12, " ")
	}
}

// PostImage returns an image URL for roughly a third of posts and "" otherwise.
func (f *Factory) PostImage() string {
	if f.faker.Number(0, 2) != 0 {
		return ""
	}
	return fmt.Sprintf("https://picsum.photos/seed/%s/800/800", f.faker.UUID())
}

// CommentText returns a short reply.
func (f *Factory) CommentText() string {
	return f.faker.Sentence(f.faker.Number(2, 10))
}

// Intn returns a number in [0, n). It returns 0 when n <= 0.
func (f *Factory) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return f.faker.Number(0, n-1)
}

// Pick returns up to k distinct indexes from [0, n).
func (f *Factory) Pick(n, k int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	f.faker.ShuffleInts(idx)
	if k > n {
		k = n
	}
	return idx[:k]
}
