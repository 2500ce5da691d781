package papitest

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Fixture describes the state a fake node starts with: its identity, the
// users that can authenticate, and any pre-seeded resources.
type Fixture struct {
	ClusterName string `toml:"cluster_name"`
	Description string `toml:"description"`

	Users     []User     `toml:"users"`
	Resources []Resource `toml:"resources"`
}

// User is a credential pair the fake node accepts.
type User struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// Resource is a pre-seeded entry in one of the service trees. Body is a
// JSON document.
type Resource struct {
	Service string `toml:"service"` // "platform" or "namespace"
	Path    string `toml:"path"`
	Body    string `toml:"body"`
}

// DefaultFixture returns a single-user cluster suitable for most tests.
func DefaultFixture() Fixture {
	return Fixture{
		ClusterName: "joshuatree",
		Description: "test cluster",
		Users: []User{
			{Username: "root", Password: "a"},
		},
	}
}

// LoadFixture reads a fixture definition from a TOML file.
func LoadFixture(path string) (Fixture, error) {
	var f Fixture
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return Fixture{}, errors.Wrap(err, "failed to load fixture")
	}
	return f, nil
}

// authenticate reports whether the credential pair matches a fixture user.
func (f Fixture) authenticate(username, password string) bool {
	for _, u := range f.Users {
		if u.Username == username && u.Password == password {
			return true
		}
	}
	return false
}
