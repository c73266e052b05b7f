package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"

	"staffops/internal/config"
	"staffops/internal/modal"
	"staffops/internal/workflows"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Hand actions to the durable back-office review",
}

var reviewWait time.Duration

var reviewStartCmd = &cobra.Command{
	Use:   "start <action-type> <payload-json>",
	Short: "Start a review workflow for one action",
	Example: `  staffctl review start -c acme delete_client '{"clientId":"3","clientName":"ABC Storage"}'
  staffctl review start -c acme delete_all_modules '{}' --wait 10m`,
	Args: cobra.ExactArgs(2),
	RunE: runReviewStart,
}

var reviewDecideCmd = &cobra.Command{
	Use:   "decide <workflow-id> <action-id> <approved|rejected>",
	Short: "Approve or reject a running review",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		outcome := modal.Outcome(args[2])
		if !outcome.Valid() {
			return fmt.Errorf("outcome must be approved or rejected, got %q", args[2])
		}
		tc, _, err := dialTemporal()
		if err != nil {
			return err
		}
		defer tc.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		return tc.SignalWorkflow(ctx, args[0], "", workflows.ActionDecisionSignal, modal.ActionDecision{
			ActionID:  args[1],
			Outcome:   outcome,
			Decider:   ownerID,
			DecidedAt: time.Now().UTC(),
		})
	},
}

func init() {
	reviewStartCmd.Flags().DurationVar(&reviewWait, "wait", 0, "Wait this long for the review result")
	reviewCmd.AddCommand(reviewStartCmd, reviewDecideCmd)
}

func dialTemporal() (client.Client, *config.Config, error) {
	cfg, err := config.Load(cfgPath, envFile)
	if err != nil {
		return nil, nil, err
	}
	tc, err := client.Dial(client.Options{HostPort: cfg.Temporal.HostPort, Namespace: cfg.Temporal.Namespace})
	if err != nil {
		return nil, nil, fmt.Errorf("unable to create Temporal client: %w", err)
	}
	return tc, cfg, nil
}

func runReviewStart(cmd *cobra.Command, args []string) error {
	if companyID == "" {
		return fmt.Errorf("--company is required")
	}
	payload, err := modal.DecodePayload(modal.ActionType(args[0]), []byte(args[1]))
	if err != nil {
		return err
	}
	if err := payload.Validate(); err != nil {
		return err
	}
	tc, cfg, err := dialTemporal()
	if err != nil {
		return err
	}
	defer tc.Close()

	action := modal.PendingAction{
		ID:        uuid.NewString(),
		Type:      payload.ActionType(),
		Payload:   payload,
		Status:    modal.StatusPending,
		CompanyID: companyID,
		OwnerID:   ownerID,
		CreatedAt: time.Now().UTC(),
	}
	opts := client.StartWorkflowOptions{
		ID:                                       "review-" + action.ID,
		TaskQueue:                                cfg.Temporal.TaskQueue,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
		WorkflowIDReusePolicy:                    enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	we, err := tc.ExecuteWorkflow(ctx, opts, workflows.ReviewAction, workflows.ReviewRequest{
		Action: action,
		MaxAge: cfg.Proposals.MaxAgeDuration(),
	})
	if err != nil {
		return fmt.Errorf("unable to execute workflow: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "started review: WorkflowID=%s RunID=%s ActionID=%s\n", we.GetID(), we.GetRunID(), action.ID)
	fmt.Fprintf(cmd.OutOrStdout(), "waiting on: %s\n", modal.Describe(action))

	if reviewWait <= 0 {
		return nil
	}
	waitCtx, cancelWait := context.WithTimeout(cmd.Context(), reviewWait)
	defer cancelWait()
	var result workflows.ReviewResult
	if err := we.Get(waitCtx, &result); err != nil {
		return fmt.Errorf("unable to get review result: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "review finished: status=%s\n", result.Status)
	if result.Error != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "error: %s\n", result.Error)
	}
	return nil
}
