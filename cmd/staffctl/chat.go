package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"staffops/internal/assistant"
	"staffops/internal/modal"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant",
	Long: `Start an interactive session. Plain messages are answered as replies to
the most recent pending request.

Commands:
  delete <employee|client|module> [name]   Propose a deletion
  /rate <client> <hourly rate>             Propose a billing rate change
  /status <employee> <status> [reason]     Propose a status change
  /correct <changes>                       Correct the pending new employee
  /pending                                 List pending requests
  /quit                                    Leave`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()

	s := &chatSession{
		assistant: rt.pipeline.Assistant,
		pending:   rt.pipeline.Proposals.Pending,
		companyID: companyID,
		ownerID:   ownerID,
		out:       cmd.OutOrStdout(),
	}
	return s.run(cmd.Context(), cmd.InOrStdin())
}

type chatSession struct {
	assistant *assistant.Assistant
	pending   func(ownerID string) []modal.PendingAction
	companyID string
	ownerID   string
	out       io.Writer
}

func (s *chatSession) run(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	fmt.Fprint(s.out, "> ")
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "/quit" || line == "/exit" {
			return nil
		}
		if line != "" {
			if err := s.handle(ctx, line); err != nil {
				fmt.Fprintf(s.out, "error: %v\n", err)
			}
		}
		fmt.Fprint(s.out, "> ")
	}
	return sc.Err()
}

func (s *chatSession) handle(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	var (
		reply assistant.Reply
		err   error
	)
	switch cmd := strings.ToLower(fields[0]); {
	case cmd == "/pending":
		list := s.pending(s.ownerID)
		if len(list) == 0 {
			fmt.Fprintln(s.out, "Nothing is waiting for approval.")
		}
		for _, a := range list {
			fmt.Fprintf(s.out, "%s  %s\n", a.ID, modal.Describe(a))
		}
		return nil
	case cmd == "/correct":
		reply, err = s.assistant.ApplyCorrection(ctx, s.ownerID, strings.TrimSpace(line[len(fields[0]):]), "")
	case cmd == "/rate":
		if len(fields) < 3 {
			return fmt.Errorf("usage: /rate <client> <hourly rate>")
		}
		rate, perr := strconv.ParseFloat(strings.TrimPrefix(fields[len(fields)-1], "$"), 64)
		if perr != nil {
			return fmt.Errorf("invalid rate %q", fields[len(fields)-1])
		}
		reply, err = s.assistant.RequestRateChange(ctx, s.companyID, s.ownerID, strings.Join(fields[1:len(fields)-1], " "), rate)
	case cmd == "/status":
		if len(fields) < 3 {
			return fmt.Errorf("usage: /status <employee> <status> [reason]")
		}
		reply, err = s.assistant.RequestStatusChange(ctx, s.companyID, s.ownerID, fields[1], fields[2], strings.Join(fields[3:], " "))
	case (cmd == "delete" || cmd == "remove") && len(fields) > 1:
		collection, ok := collectionIn(fields[1:])
		if !ok {
			return fmt.Errorf("say which records: employee, client or module")
		}
		reply, err = s.assistant.RequestDeletion(ctx, s.companyID, s.ownerID, collection, line, "")
	default:
		reply, err = s.assistant.ResolveMessage(ctx, s.ownerID, line)
	}
	if err != nil {
		return err
	}
	printReply(s.out, reply)
	return nil
}

// collectionIn returns the first word naming a record collection.
func collectionIn(words []string) (modal.Collection, bool) {
	for _, w := range words {
		if c, ok := modal.ParseCollection(w); ok {
			return c, true
		}
	}
	return "", false
}

func printReply(out io.Writer, r assistant.Reply) {
	if r.Kind == assistant.ReplyUnrelated {
		fmt.Fprintln(out, "(not a reply to a pending request)")
		return
	}
	fmt.Fprintln(out, r.Text)
	for _, o := range r.Options {
		fmt.Fprintf(out, "  - %s\n", o)
	}
}
