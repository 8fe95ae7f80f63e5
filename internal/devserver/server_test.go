package devserver

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexnova/lexnova/internal/api"
	"github.com/lexnova/lexnova/internal/call"
	"github.com/lexnova/lexnova/internal/transport/relay"
)

func TestCeremonyEndToEnd(t *testing.T) {
	srv := New(Options{Secret: "e2e", StepDelay: 5 * time.Millisecond, Quiet: true})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.hub.Close()
		ts.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	anon := api.NewClient(ts.URL + "/api")
	require.NoError(t, anon.Register(ctx, api.RegisterRequest{Email: "ann@firm.law", Password: "secret1", Name: "Ann Counsel"}))
	login, err := anon.Login(ctx, "ann@firm.law", "secret1")
	require.NoError(t, err)
	lawyer := anon.WithToken(login.AccessToken)

	me, err := lawyer.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ann Counsel", me.Name)

	sess, err := lawyer.CreateSession(ctx, api.NewSession{GroomName: "Omar Haddad", BrideName: "Layla Nasser"})
	require.NoError(t, err)
	require.NoError(t, lawyer.UploadScript(ctx, sess.ID, "script.txt", strings.NewReader("Do you consent?")))

	sessions, err := lawyer.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, api.StatusReady, sessions[0].Status)

	tokens, err := lawyer.StartSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.LawyerToken)
	assert.True(t, strings.HasSuffix(tokens.URL, "/rtc"))

	joined, err := anon.Join(ctx, api.JoinRequest{
		SessionCode:     sess.SessionCode,
		ParticipantName: "Layla Nasser",
		ParticipantType: api.ParticipantBride,
	})
	require.NoError(t, err)

	tr := relay.New()
	require.NoError(t, tr.Connect(ctx, tokens.URL, joined.Token))
	t.Cleanup(func() { tr.Close() })
	require.NoError(t, tr.SetMicrophone(ctx, false))

	room := call.NewRoom(joined.Token)
	room.BeginConnect()
	room.Connected()
	assert.Equal(t, call.RoleBride, room.LocalRole())

	deadline := time.After(5 * time.Second)
	for len(room.Transcript()) < len(agentLines) {
		select {
		case ev := <-tr.Events():
			room.Apply(ev)
		case <-deadline:
			t.Fatalf("got %d transcript lines", len(room.Transcript()))
		}
	}
	_, ok := room.Agent()
	assert.True(t, ok)
	steps := room.Steps()
	for _, step := range steps[:len(steps)-1] {
		assert.Equal(t, call.StepCompleted, step.Status, step.ID)
	}
	assert.Equal(t, call.StepCurrent, steps[len(steps)-1].Status)

	var rep *api.SessionReport
	require.Eventually(t, func() bool {
		rep, err = lawyer.GetReport(ctx, sess.ID)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, rep.Transcript, len(agentLines))
	assert.False(t, rep.Certified)

	rep, err = lawyer.CertifyReport(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, rep.Certified)
}

func TestRTCRejectsBadToken(t *testing.T) {
	srv := New(Options{Secret: "e2e", Quiet: true})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	tr := relay.New()
	err := tr.Connect(context.Background(), "ws"+strings.TrimPrefix(ts.URL, "http")+"/rtc", "garbage")
	assert.Error(t, err)
}
