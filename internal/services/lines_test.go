package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineReaderSkipsOversizedLines(t *testing.T) {
	input := "first\r\n" + strings.Repeat("x", 3*maxLineBytes) + "\n\nlast"
	lines := newLineReader(strings.NewReader(input))

	type line struct {
		no   int
		text string
		err  error
	}
	var got []line
	for lines.Next() {
		got = append(got, line{lines.LineNo(), lines.Text(), lines.LineErr()})
	}
	require.NoError(t, lines.Err())

	assert.Equal(t, []line{
		{1, "first", nil},
		{2, "", errLineTooLong},
		{3, "", nil},
		{4, "last", nil},
	}, got)
}

func TestLineReaderEmptyInput(t *testing.T) {
	lines := newLineReader(strings.NewReader(""))
	assert.False(t, lines.Next())
	assert.NoError(t, lines.Err())
}
