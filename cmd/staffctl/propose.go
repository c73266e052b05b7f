package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"staffops/internal/assistant"
	"staffops/internal/modal"
)

var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Propose one change and confirm it",
	Long: `Propose a single record change. The proposal is printed and the
command waits for one reply on stdin, such as "yes", "no" or a correction.`,
}

var (
	moduleDescription string

	employeeRole  string
	employeePhone string
	employeeEmail string
	employeePay   float64

	clientSchedule string
	clientRate     float64
	clientContact  string
)

var proposeModuleCmd = &cobra.Command{
	Use:   "add-module <name>",
	Short: "Add a platform module",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return proposeAndConfirm(cmd, modal.AddModule{Module: modal.Module{
			Name:        strings.Join(args, " "),
			Description: moduleDescription,
		}})
	},
}

var proposeEmployeeCmd = &cobra.Command{
	Use:   "add-employee <name>",
	Short: "Add an employee",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return proposeAndConfirm(cmd, modal.AddEmployee{Employee: modal.Employee{
			Name:    strings.Join(args, " "),
			Role:    employeeRole,
			Phone:   employeePhone,
			Email:   employeeEmail,
			PayRate: employeePay,
		}})
	},
}

var proposeClientCmd = &cobra.Command{
	Use:   "add-client <name>",
	Short: "Add a client",
	Long: `Add a client. Monthly revenue is derived from --schedule, for example
"Mon-Fri 8am-5pm", and --rate.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return proposeAndConfirm(cmd, modal.AddClient{Client: modal.Client{
			Name:        strings.Join(args, " "),
			ContactName: clientContact,
			Schedule:    clientSchedule,
			HourlyRate:  clientRate,
		}})
	},
}

func init() {
	proposeModuleCmd.Flags().StringVar(&moduleDescription, "description", "", "Module description")

	proposeEmployeeCmd.Flags().StringVar(&employeeRole, "role", "", "Role")
	proposeEmployeeCmd.Flags().StringVar(&employeePhone, "phone", "", "Phone number")
	proposeEmployeeCmd.Flags().StringVar(&employeeEmail, "email", "", "Email address")
	proposeEmployeeCmd.Flags().Float64Var(&employeePay, "pay-rate", 0, "Hourly pay rate")

	proposeClientCmd.Flags().StringVar(&clientSchedule, "schedule", "", "Coverage schedule")
	proposeClientCmd.Flags().Float64Var(&clientRate, "rate", 0, "Hourly billing rate")
	proposeClientCmd.Flags().StringVar(&clientContact, "contact", "", "Contact name")

	proposeCmd.AddCommand(proposeModuleCmd, proposeEmployeeCmd, proposeClientCmd)
}

func proposeAndConfirm(cmd *cobra.Command, p modal.Payload) error {
	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()
	return confirmLoop(cmd.Context(), rt.pipeline.Assistant, p, cmd.InOrStdin(), cmd.OutOrStdout())
}

// confirmLoop proposes p and keeps reading replies until the proposal is
// resolved or input ends.
func confirmLoop(ctx context.Context, a *assistant.Assistant, p modal.Payload, in io.Reader, out io.Writer) error {
	reply, err := a.ProposeAction(ctx, companyID, ownerID, p)
	if err != nil {
		return err
	}
	printReply(out, reply)
	if reply.Kind != assistant.ReplyProposed {
		return nil
	}

	sc := bufio.NewScanner(in)
	for sc.Scan() {
		reply, err := a.ResolveMessage(ctx, ownerID, sc.Text())
		if err != nil {
			return err
		}
		switch reply.Kind {
		case assistant.ReplyExecuted, assistant.ReplyRejected, assistant.ReplyAlreadyHandled:
			printReply(out, reply)
			return nil
		case assistant.ReplyUnrelated:
			fmt.Fprintln(out, "Please answer yes or no.")
		default:
			printReply(out, reply)
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	fmt.Fprintln(out, "No answer given; nothing was changed.")
	return nil
}
