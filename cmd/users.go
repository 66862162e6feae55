package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage enrolled users",
	Long: `Inspect and edit the stored face templates directly.
With the file backend, stop the server first: it rewrites the snapshot on
every change and would overwrite edits made here.`,
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled users and their template counts",
	Args:  cobra.NoArgs,
	RunE:  runUsersList,
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <user_id>",
	Short: "Delete all face templates of a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersDelete,
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersDeleteCmd)
}

func runUsersList(cmd *cobra.Command, args []string) error {
	a, err := newApp(commandContext(cmd), nil)
	if err != nil {
		return err
	}
	defer a.close()

	snap := a.store.Snapshot()
	out := cmd.OutOrStdout()
	if len(snap) == 0 {
		fmt.Fprintln(out, "No users enrolled.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tTEMPLATES")
	for _, id := range snap.Users() {
		fmt.Fprintf(w, "%s\t%d\n", id, len(snap[id]))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nTotal: %d users, %d templates\n", len(snap), snap.Embeddings())
	return nil
}

func runUsersDelete(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	a, err := newApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.close()

	userID := args[0]
	if !a.store.Delete(ctx, userID) {
		return fmt.Errorf("no face encodings found for user %s", userID)
	}
	// Delete already persisted; Flush retries only if that write failed.
	if err := a.store.Flush(ctx); err != nil {
		return fmt.Errorf("user deleted in memory but not persisted: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Face encodings deleted for user %s\n", userID)
	return nil
}
