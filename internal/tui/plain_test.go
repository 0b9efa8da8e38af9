package tui

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iksnae/chef-chat/internal"
	"github.com/iksnae/chef-chat/testutil"
)

func TestRunPlain_StreamsReply(t *testing.T) {
	session, srv := newGuestSession(t, &notices{},
		testutil.Created("resp_1"),
		testutil.Delta("Hello"),
		testutil.FunctionCall("search_chefs", "call_1"),
		testutil.ToolResult("call_1", "search_chefs", nil),
		testutil.Delta("Hello there"),
		testutil.Completed(),
	)

	var out bytes.Buffer
	err := RunPlain(context.Background(), session, strings.NewReader("find a chef\n/quit\n"), &out, internal.TurnInput{Topic: "booking"})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "assistant> Hello")
	assert.Contains(t, text, "… Searching chefs")
	assert.Contains(t, text, "✓ Searching chefs")
	assert.Contains(t, text, " there")
	assert.Equal(t, 1, strings.Count(text, "assistant> "))

	reqs := srv.Requests(internal.DefaultConfig().Endpoints.OnboardingStream)
	require.Len(t, reqs, 1)
	assert.Equal(t, "find a chef", reqs[0].Body["message"])
	assert.Equal(t, "booking", reqs[0].Body["topic"])
}

func TestRunPlain_RenderReplacesStreamedText(t *testing.T) {
	session, _ := newGuestSession(t, &notices{},
		testutil.Delta("draft"),
		testutil.Render("**Final** answer"),
		testutil.Completed(),
	)

	var out bytes.Buffer
	require.NoError(t, RunPlain(context.Background(), session, strings.NewReader("hi\n"), &out, internal.TurnInput{}))
	assert.Contains(t, out.String(), "assistant> draft\n**Final** answer")
}

func TestRunPlain_ReportsFailure(t *testing.T) {
	seen := &notices{}
	session, _ := newGuestSession(t, seen, testutil.StreamError("kitchen closed"))

	var out bytes.Buffer
	require.NoError(t, RunPlain(context.Background(), session, strings.NewReader("hi\n"), &out, internal.TurnInput{}))
	assert.Contains(t, out.String(), internal.ApologyText)
	assert.Equal(t, []string{"kitchen closed"}, seen.All())
}

func TestRunPlain_NewChat(t *testing.T) {
	session, _ := newGuestSession(t, &notices{}, testutil.Created("resp_1"), testutil.Delta("Hi"), testutil.Completed())

	var out bytes.Buffer
	require.NoError(t, RunPlain(context.Background(), session, strings.NewReader("hi\n/new\n"), &out, internal.TurnInput{}))
	assert.Contains(t, out.String(), "Started a new chat.")
	assert.Empty(t, session.Messages())
}
