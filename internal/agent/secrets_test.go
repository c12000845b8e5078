package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecrets_Substitute(t *testing.T) {
	s := Secrets{"x_name": "alice", "x_password": "hunter2"}
	in := Params{
		"keys":  "<secret>x_name</secret>:<secret>x_password</secret>",
		"other": "<secret>missing</secret>",
		"index": float64(3),
	}

	out := s.Substitute(in)
	assert.Equal(t, "alice:hunter2", out["keys"])
	assert.Equal(t, "<secret>missing</secret>", out["other"])
	assert.Equal(t, float64(3), out["index"])
	assert.Equal(t, "<secret>x_name</secret>:<secret>x_password</secret>", in["keys"], "input must not be modified")

	assert.Nil(t, Secrets(nil).Substitute(nil))
}

func TestSecrets_Redact(t *testing.T) {
	s := Secrets{"short": "pass", "long": "password1", "empty": ""}
	assert.Equal(t, "user typed <secret>long</secret> and <secret>short</secret>", s.Redact("user typed password1 and pass"))
	assert.Equal(t, "nothing here", s.Redact("nothing here"))
	assert.Equal(t, "pass", Secrets{}.Redact("pass"))
}
