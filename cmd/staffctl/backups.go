package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"staffops/internal/store"
)

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "Inspect pre-deletion backups",
}

var backupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups of a company, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()

		list, err := rt.store.ListBackups(cmd.Context(), companyID)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTYPE\tCREATED\tCHECKSUM\tDESCRIPTION")
		for _, b := range list {
			check := "ok"
			if err := store.VerifyBackup(b); err != nil {
				check = "MISMATCH"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", b.ID, b.BackupType, b.CreatedAt.Format("2006-01-02 15:04"), check, b.Description)
		}
		return tw.Flush()
	},
}

var backupsShowCmd = &cobra.Command{
	Use:   "show <backup-id>",
	Short: "Print the records saved in one backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()

		list, err := rt.store.ListBackups(cmd.Context(), companyID)
		if err != nil {
			return err
		}
		for _, b := range list {
			if b.ID != args[0] {
				continue
			}
			if err := store.VerifyBackup(b); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(b)
		}
		return fmt.Errorf("backup %s not found", args[0])
	},
}

func init() {
	backupsCmd.AddCommand(backupsListCmd, backupsShowCmd)
}
