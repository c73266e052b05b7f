package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"staffops/internal/app"
	"staffops/internal/config"
	"staffops/internal/modal"
	"staffops/internal/store"
)

func newTestSession(t *testing.T) (*chatSession, *app.Pipeline, *store.FileStore, *bytes.Buffer) {
	t.Helper()
	s, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	doc := modal.NewCompanyRecords("acme")
	doc.PlatformModules = []modal.Module{{ID: "1", Name: "Camera Module"}, {ID: "2", Name: "Fence Inspection"}}
	doc.Clients = []modal.Client{{ID: "1", Name: "ABC Storage", WeeklyHours: 40, HourlyRate: 20, Status: modal.ClientActive}}
	require.NoError(t, s.Save(context.Background(), doc))

	p := app.NewPipeline(config.Default(), s, nil, zap.NewNop())
	out := &bytes.Buffer{}
	return &chatSession{
		assistant: p.Assistant,
		pending:   p.Proposals.Pending,
		companyID: "acme",
		ownerID:   "u1",
		out:       out,
	}, p, s, out
}

func TestChatDeleteThenConfirm(t *testing.T) {
	sess, _, s, out := newTestSession(t)
	in := strings.NewReader("delete the fence inspection module\n/pending\nyes\n/quit\n")
	require.NoError(t, sess.run(context.Background(), in))

	assert.Contains(t, out.String(), "This cannot be undone from chat.")
	doc, err := s.Load(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, doc.PlatformModules, 1)
	assert.Equal(t, "Camera Module", doc.PlatformModules[0].Name)

	backups, err := s.ListBackups(context.Background(), "acme")
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestChatUnrelatedAndUnknownCollection(t *testing.T) {
	sess, _, _, out := newTestSession(t)
	in := strings.NewReader("what's the weather\ndelete everything please\n")
	require.NoError(t, sess.run(context.Background(), in))

	assert.Contains(t, out.String(), "(not a reply to a pending request)")
	assert.Contains(t, out.String(), "error: say which records")
}

func TestChatRateCommandValidatesRate(t *testing.T) {
	sess, p, _, out := newTestSession(t)
	in := strings.NewReader("/rate ABC Storage cheap\n/rate ABC Storage $25\n")
	require.NoError(t, sess.run(context.Background(), in))

	assert.Contains(t, out.String(), `invalid rate "cheap"`)
	pending := p.Proposals.Pending("u1")
	require.Len(t, pending, 1)
	assert.Equal(t, modal.ActionUpdateBillingRate, pending[0].Type)
}

func TestConfirmLoopRejects(t *testing.T) {
	_, p, s, _ := newTestSession(t)
	companyID, ownerID = "acme", "u1"
	t.Cleanup(func() { companyID, ownerID = "", "cli" })

	var out bytes.Buffer
	in := strings.NewReader("the weather is nice\nno\n")
	err := confirmLoop(context.Background(), p.Assistant, modal.AddModule{Module: modal.Module{Name: "Patrol Log"}}, in, &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Please answer yes or no.")
	assert.Contains(t, out.String(), "Cancelled")
	doc, err := s.Load(context.Background(), "acme")
	require.NoError(t, err)
	assert.Len(t, doc.PlatformModules, 2)
}

func TestConfirmLoopWithoutAnswerChangesNothing(t *testing.T) {
	_, p, _, _ := newTestSession(t)
	companyID, ownerID = "acme", "u1"
	t.Cleanup(func() { companyID, ownerID = "", "cli" })

	var out bytes.Buffer
	err := confirmLoop(context.Background(), p.Assistant, modal.AddModule{Module: modal.Module{Name: "Patrol Log"}}, strings.NewReader(""), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "nothing was changed")
}
