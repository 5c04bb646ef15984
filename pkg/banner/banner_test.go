package banner

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFprintTitleOnly(t *testing.T) {
	var buf bytes.Buffer
	Fprint(&buf, "Register", nil)

	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 2, "title-only banner has a top and bottom border, no separator")
	assert.Contains(t, lines[0], "┌")
	assert.Contains(t, lines[1], "└")
}

func TestFprintWithBody(t *testing.T) {
	var buf bytes.Buffer
	Fprint(&buf, "Register", []string{"technique registered"})

	out := buf.String()
	assert.Contains(t, out, "Register")
	assert.Contains(t, out, "technique registered")
	assert.Equal(t, 4, strings.Count(out, "\n"))
}

func TestFprintWrapsLongLines(t *testing.T) {
	var buf bytes.Buffer
	long := strings.Repeat("x", 200)
	Fprint(&buf, "t", []string{long})

	out := buf.String()
	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, len([]rune(line)), width+4)
	}
}

func TestFailureWritesErrMessage(t *testing.T) {
	var buf bytes.Buffer
	Fprint(&buf, "Register failed", []string{errors.New("boom").Error()})
	assert.Contains(t, buf.String(), "boom")
}
