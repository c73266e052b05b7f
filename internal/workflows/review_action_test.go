package workflows

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/testsuite"

	"staffops/internal/activities"
	"staffops/internal/modal"
)

type fakeApplier struct {
	calls atomic.Int32
	err   error
}

func (f *fakeApplier) Apply(_ context.Context, a modal.PendingAction) (modal.ExecutionResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return modal.ExecutionResult{}, f.err
	}
	return modal.ExecutionResult{
		ActionID:      a.ID,
		Type:          a.Type,
		Message:       "Deleted employee William Markham.",
		Affected:      []string{"1"},
		BackupCreated: true,
	}, nil
}

type ReviewActionSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env     *testsuite.TestWorkflowEnvironment
	applier *fakeApplier
}

func TestReviewActionSuite(t *testing.T) {
	suite.Run(t, new(ReviewActionSuite))
}

func (s *ReviewActionSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	s.applier = &fakeApplier{}
	s.env.RegisterActivity(&activities.Activities{Executor: s.applier})
}

func (s *ReviewActionSuite) AfterTest(_, _ string) {
	s.env.AssertExpectations(s.T())
}

func reviewRequest() ReviewRequest {
	p := modal.DeleteEmployee{EmployeeID: "1", EmployeeName: "William Markham"}
	return ReviewRequest{
		Action: modal.PendingAction{
			ID:        "act-1",
			Type:      p.ActionType(),
			Payload:   p,
			Status:    modal.StatusPending,
			CompanyID: "acme",
			OwnerID:   "u1",
		},
		MaxAge: time.Hour,
	}
}

func (s *ReviewActionSuite) decide(after time.Duration, actionID string, outcome modal.Outcome) {
	s.env.RegisterDelayedCallback(func() {
		s.env.SignalWorkflow(ActionDecisionSignal, modal.ActionDecision{
			ActionID: actionID,
			Outcome:  outcome,
			Decider:  "ops-lead",
		})
	}, after)
}

func (s *ReviewActionSuite) result() ReviewResult {
	s.Require().True(s.env.IsWorkflowCompleted())
	s.Require().NoError(s.env.GetWorkflowError())
	var res ReviewResult
	s.Require().NoError(s.env.GetWorkflowResult(&res))
	return res
}

func (s *ReviewActionSuite) TestApprovedActionIsExecuted() {
	s.env.RegisterDelayedCallback(func() {
		v, err := s.env.QueryWorkflow(QueryPendingAction)
		s.Require().NoError(err)
		var a modal.PendingAction
		s.Require().NoError(v.Get(&a))
		s.Equal(modal.StatusPending, a.Status)
		s.Equal(modal.DeleteEmployee{EmployeeID: "1", EmployeeName: "William Markham"}, a.Payload)
	}, time.Minute)
	s.decide(2*time.Minute, "act-1", modal.OutcomeApproved)

	s.env.ExecuteWorkflow(ReviewAction, reviewRequest())

	res := s.result()
	s.Equal(modal.StatusExecuted, res.Status)
	s.Require().NotNil(res.Result)
	s.True(res.Result.BackupCreated)
	s.Equal("ops-lead", res.Decision.Decider)
	s.Equal(int32(1), s.applier.calls.Load())
}

func (s *ReviewActionSuite) TestRejectedActionIsNotExecuted() {
	s.decide(time.Minute, "act-1", modal.OutcomeRejected)
	s.env.ExecuteWorkflow(ReviewAction, reviewRequest())

	res := s.result()
	s.Equal(modal.StatusRejected, res.Status)
	s.Nil(res.Result)
	s.Equal(int32(0), s.applier.calls.Load())
}

func (s *ReviewActionSuite) TestExpiresWithoutDecision() {
	s.env.ExecuteWorkflow(ReviewAction, reviewRequest())

	res := s.result()
	s.Equal(modal.StatusExpired, res.Status)
	s.Equal(int32(0), s.applier.calls.Load())
}

func (s *ReviewActionSuite) TestDecisionForAnotherActionIsIgnored() {
	s.decide(time.Minute, "someone-else", modal.OutcomeApproved)
	s.env.RegisterDelayedCallback(func() {
		v, err := s.env.QueryWorkflow(QueryAuditLog)
		s.Require().NoError(err)
		var audit []modal.AuditEvent
		s.Require().NoError(v.Get(&audit))
		s.Require().Len(audit, 2)
		s.Equal("DECISION_IGNORED", audit[1].Kind)
	}, 2*time.Minute)
	s.decide(3*time.Minute, "act-1", modal.OutcomeRejected)

	s.env.ExecuteWorkflow(ReviewAction, reviewRequest())
	s.Equal(modal.StatusRejected, s.result().Status)
}

func (s *ReviewActionSuite) TestMissingTargetDoesNotRetry() {
	s.applier.err = modal.ErrEntityNotFound
	s.decide(time.Minute, "act-1", modal.OutcomeApproved)
	s.env.ExecuteWorkflow(ReviewAction, reviewRequest())

	res := s.result()
	s.Equal(modal.StatusFailed, res.Status)
	s.Contains(res.Error, "entity not found")
	s.Equal(int32(1), s.applier.calls.Load())
}

func TestReviewActionRejectsEmptyRequest(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.ExecuteWorkflow(ReviewAction, ReviewRequest{})
	require.True(t, env.IsWorkflowCompleted())
	assert.Error(t, env.GetWorkflowError())
}
