package aurora

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseName(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want parsedName
	}{
		{"nickname form", "Smith, Jane Elizabeth (Janey)", parsedName{Surname: "Smith", GivenName: "Jane Elizabeth", Nickname: "Janey"}},
		{"comma form", "Smith, Jane", parsedName{Surname: "Smith", GivenName: "Jane", Nickname: "Jane"}},
		{"comma with middle", "Smith, Jane E.", parsedName{Surname: "Smith", GivenName: "Jane E.", Nickname: "Jane"}},
		{"single token", "Cher", parsedName{Surname: "Cher"}},
		{"no comma", "Jane Elizabeth Smith", parsedName{Surname: "Smith", GivenName: "Jane Elizabeth", Nickname: "Jane"}},
		{"trailing space", "  Smith, Jane  ", parsedName{Surname: "Smith", GivenName: "Jane", Nickname: "Jane"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, parseName(tc.in))
		})
	}
}

func TestParsedNameCommonName(t *testing.T) {
	assert.Equal(t, "Jane Smith", parsedName{Surname: "Smith", GivenName: "Jane"}.CommonName())
	assert.Equal(t, "Cher", parsedName{Surname: "Cher"}.CommonName())
}

func TestDomainUsernames(t *testing.T) {
	fn := DomainUsernames([]string{"cc.umanitoba.ca"})
	u, ok := fn("jsmith@cc.umanitoba.ca")
	assert.True(t, ok)
	assert.Equal(t, "jsmith", u)

	u, ok = fn("JSmith@CC.UManitoba.CA")
	assert.True(t, ok)
	assert.Equal(t, "jsmith", u)

	_, ok = fn("jsmith@gmail.com")
	assert.False(t, ok)
	_, ok = fn("not-an-email")
	assert.False(t, ok)

	assert.Nil(t, DomainUsernames(nil))
}

func TestDomainEmailTypes(t *testing.T) {
	fn := DomainEmailTypes([]string{"cc.umanitoba.ca"})
	assert.Equal(t, "work", fn("jsmith@cc.umanitoba.ca"))
	assert.Equal(t, "home", fn("jsmith@gmail.com"))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "stat-1000-a01-2026-3", slugify("stat-1000 A01 2026/3"))
	assert.Equal(t, "stat-1000", slugify("STAT 1000"))
	assert.Equal(t, "abc", slugify("--abc--"))
}
