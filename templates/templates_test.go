package templates

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Render_Wraps_Page_In_Base(t *testing.T) {
	var buf bytes.Buffer
	err := New().Render(&buf, "error.html", struct {
		Code    int
		Message string
	}{404, "Question not found"}, nil)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "<title>404 | Polls</title>")
	require.Contains(t, buf.String(), "Question not found")
}

func Test_Render_Unknown_Template(t *testing.T) {
	err := New().Render(&bytes.Buffer{}, "missing.html", nil, nil)
	require.EqualError(t, err, "template not found: missing.html")
}
