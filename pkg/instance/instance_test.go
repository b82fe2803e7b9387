package instance

import (
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolvePrefersEnvironment(t *testing.T) {
	t.Setenv(envInstanceID, "cron-a")
	assert.Equal(t, "cron-a", resolve())
}

func TestResolveFallsBackToHostAndPid(t *testing.T) {
	t.Setenv(envInstanceID, "")
	got := resolve()
	assert.True(t, strings.HasSuffix(got, "-"+strconv.Itoa(os.Getpid())), got)
}

func TestGetIDIsStable(t *testing.T) {
	assert.Equal(t, GetID(), GetID())
}
