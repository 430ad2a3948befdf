package submission_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/osd-exam/backend-registration/internal/submission"
)

func TestInterpretResponseJSONSuccess(t *testing.T) {
	out, err := submission.InterpretResponse(200, []byte(`{"success":true,"message":"报名成功！请查收邮件！"}`))
	require.NoError(t, err)
	require.True(t, out.Success)
	require.Equal(t, "报名成功！请查收邮件！", out.Message)
}

func TestInterpretResponseJSONMessageMarker(t *testing.T) {
	out, err := submission.InterpretResponse(200, []byte(`{"success":false,"message":"Workflow was started"}`))
	require.NoError(t, err)
	require.True(t, out.Success)
}

func TestInterpretResponsePlainTextMarker(t *testing.T) {
	out, err := submission.InterpretResponse(200, []byte("Workflow was started"))
	require.NoError(t, err)
	require.True(t, out.Success)

	out, err = submission.InterpretResponse(200, []byte("operation finished with success"))
	require.NoError(t, err)
	require.True(t, out.Success)
}

func TestInterpretResponseFailures(t *testing.T) {
	_, err := submission.InterpretResponse(500, []byte("boom"))
	require.Error(t, err)

	_, err = submission.InterpretResponse(200, []byte(`{"success":false,"message":"rejected"}`))
	require.Error(t, err)

	_, err = submission.InterpretResponse(200, []byte("<html>it broke</html>"))
	require.Error(t, err)
}
