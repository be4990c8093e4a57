package seed

import (
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
)

var bulkTags = []string{"golang", "webdev", "coffee", "space", "music", "books", "travel", "opensource"}

// Factory generates random fixtures for load and demo data.
type Factory struct {
	faker *gofakeit.Faker
}

// NewFactory returns a deterministic factory for the given seed.
func NewFactory(seed int64) *Factory {
	return &Factory{faker: gofakeit.New(seed)}
}

// Bulk builds a fixture with users accounts and posts posts. Every user
// follows up to followsPerUser others and roughly a third of the posts
// get a comment.
func (f *Factory) Bulk(users, posts, followsPerUser int) *Fixture {
	fx := &Fixture{}
	if users <= 0 {
		return fx
	}

	for i := 0; i < users; i++ {
		person := f.faker.Person()
		username := f.username(person.FirstName, person.LastName, i)
		fx.Users = append(fx.Users, FixtureUser{
			Username:  username,
			Email:     username + "@" + "example.com",
			FirstName: person.FirstName,
			LastName:  person.LastName,
			Bio:       f.faker.Sentence(8),
		})
	}

	for i := 0; i < posts; i++ {
		author := fx.Users[f.faker.Number(0, users-1)].Username
		tag := bulkTags[f.faker.Number(0, len(bulkTags)-1)]
		fx.Posts = append(fx.Posts, FixturePost{
			Author: author,
			Tag:    tag,
			Body:   fmt.Sprintf("%s #%s", f.faker.Sentence(10), tag),
		})
		if users > 1 && f.faker.Number(0, 2) == 0 {
			fx.Comments = append(fx.Comments, FixtureComment{
				Post:   i,
				Author: fx.Users[f.faker.Number(0, users-1)].Username,
				Body:   f.faker.Sentence(6),
			})
		}
	}

	for i, u := range fx.Users {
		seen := map[int]bool{i: true}
		for n := 0; n < followsPerUser && len(seen) < users; n++ {
			j := f.faker.Number(0, users-1)
			if seen[j] {
				continue
			}
			seen[j] = true
			fx.Follows = append(fx.Follows, FixtureFollow{Follower: u.Username, Following: fx.Users[j].Username})
		}
	}
	return fx
}

// username derives a valid, unique handle from a name.
func (f *Factory) username(first, last string, i int) string {
	var b strings.Builder
	for _, r := range strings.ToLower(first + last) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	base := b.String()
	if len(base) > 20 {
		base = base[:20]
	}
	if base == "" {
		base = "user"
	}
	return fmt.Sprintf("%s%d", base, i)
}
