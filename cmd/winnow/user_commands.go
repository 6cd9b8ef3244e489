package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"winnow/internal/api"
	"winnow/internal/catalog"
	"winnow/internal/config"
)

func newUserCommand(ctx *commandContext) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	userCmd.AddCommand(newUserAddCommand(ctx))
	userCmd.AddCommand(newUserListCommand(ctx))
	userCmd.AddCommand(newUserRemoveCommand(ctx))

	return userCmd
}

func newUserAddCommand(ctx *commandContext) *cobra.Command {
	var admin bool
	var addJSON bool
	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a user account with a fresh invite token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalogStore(func(_ *config.Config, store *catalog.Store) error {
				result, err := api.UserAdd(cmd.Context(), api.UserAddRequest{
					Store:    store,
					Username: args[0],
					Admin:    admin,
				})
				if err != nil {
					return err
				}
				if addJSON {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Created user %q", result.User.Username)
				if result.User.IsAdmin {
					fmt.Fprint(out, " (admin)")
				}
				fmt.Fprintln(out)
				fmt.Fprintf(out, "Invite token: %s\n", result.User.InviteToken)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&admin, "admin", false, "Grant administrative rights")
	cmd.Flags().BoolVar(&addJSON, "json", false, "Emit result as JSON")
	return cmd
}

func newUserListCommand(ctx *commandContext) *cobra.Command {
	var listJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List user accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalogStore(func(_ *config.Config, store *catalog.Store) error {
				result, err := api.UserList(cmd.Context(), api.UserListRequest{Store: store})
				if err != nil {
					return err
				}
				if listJSON {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				if len(result.Users) == 0 {
					fmt.Fprintln(out, "No user accounts")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Username", "Admin", "Created"},
					buildUserRows(result.Users),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(out, table)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&listJSON, "json", false, "Emit users as JSON")
	return cmd
}

func newUserRemoveCommand(ctx *commandContext) *cobra.Command {
	var removeJSON bool
	cmd := &cobra.Command{
		Use:   "remove <username>",
		Short: "Delete a user account and re-evaluate deletion quorums",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalogStore(func(cfg *config.Config, store *catalog.Store) error {
				result, err := api.UserRemove(cmd.Context(), api.UserRemoveRequest{
					Config:   cfg,
					Store:    store,
					Username: args[0],
				})
				if err != nil {
					return err
				}
				if removeJSON {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Removed user %q\n", args[0])
				if result.Restored > 0 {
					fmt.Fprintf(out, "Returned %d permanent item(s) to the shared library\n", result.Restored)
				}
				if result.Trashed > 0 {
					fmt.Fprintf(out, "%d item(s) reached quorum and moved to trash\n", result.Trashed)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&removeJSON, "json", false, "Emit result as JSON")
	return cmd
}
