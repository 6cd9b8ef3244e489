package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"winnow/internal/api"
	"winnow/internal/catalog"
	"winnow/internal/config"
)

func newMarkCommand(ctx *commandContext) *cobra.Command {
	var username string
	var markJSON bool
	cmd := &cobra.Command{
		Use:   "mark <id>",
		Short: "Vote to delete an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return ctx.withCatalogStore(func(cfg *config.Config, store *catalog.Store) error {
				result, err := api.Mark(cmd.Context(), api.MarkRequest{
					Config:   cfg,
					Store:    store,
					ItemID:   id,
					Username: username,
				})
				if err != nil {
					return err
				}
				if markJSON {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				item := result.Item
				fmt.Fprintf(out, "Marked %q for deletion (%s votes)\n", item.Label, formatVotes(item.MarkCount, item.TotalUsers))
				if result.Trashed {
					fmt.Fprintln(out, "All users agree; item moved to trash")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&username, "user", "u", "", "Acting username (required)")
	cmd.Flags().BoolVar(&markJSON, "json", false, "Emit result as JSON")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newUnmarkCommand(ctx *commandContext) *cobra.Command {
	var username string
	var unmarkJSON bool
	cmd := &cobra.Command{
		Use:   "unmark <id>",
		Short: "Withdraw a deletion vote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return ctx.withCatalogStore(func(cfg *config.Config, store *catalog.Store) error {
				result, err := api.Unmark(cmd.Context(), api.UnmarkRequest{
					Config:   cfg,
					Store:    store,
					ItemID:   id,
					Username: username,
				})
				if err != nil {
					return err
				}
				if unmarkJSON {
					return writeJSON(cmd, result)
				}
				item := result.Item
				fmt.Fprintf(cmd.OutOrStdout(), "Removed deletion vote for %q (%s votes)\n",
					item.Label, formatVotes(item.MarkCount, item.TotalUsers))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&username, "user", "u", "", "Acting username (required)")
	cmd.Flags().BoolVar(&unmarkJSON, "json", false, "Emit result as JSON")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newRescueCommand(ctx *commandContext) *cobra.Command {
	var rescueJSON bool
	cmd := &cobra.Command{
		Use:   "rescue <id>",
		Short: "Restore a trashed item to the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return ctx.withCatalogStore(func(cfg *config.Config, store *catalog.Store) error {
				result, err := api.Rescue(cmd.Context(), api.RescueRequest{
					Config: cfg,
					Store:  store,
					ItemID: id,
				})
				if err != nil {
					return err
				}
				if rescueJSON {
					return writeJSON(cmd, result)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rescued %q back to the library\n", result.Item.Label)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&rescueJSON, "json", false, "Emit result as JSON")
	return cmd
}

func newPersistCommand(ctx *commandContext) *cobra.Command {
	var username string
	var persistJSON bool
	cmd := &cobra.Command{
		Use:   "persist <id>",
		Short: "Protect an item from deletion votes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return ctx.withCatalogStore(func(cfg *config.Config, store *catalog.Store) error {
				result, err := api.Persist(cmd.Context(), api.PersistRequest{
					Config:   cfg,
					Store:    store,
					ItemID:   id,
					Username: username,
				})
				if err != nil {
					return err
				}
				if persistJSON {
					return writeJSON(cmd, result)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Moved %q to permanent storage (owner: %s)\n", result.Item.Label, username)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&username, "user", "u", "", "Acting username (required)")
	cmd.Flags().BoolVar(&persistJSON, "json", false, "Emit result as JSON")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newUnpersistCommand(ctx *commandContext) *cobra.Command {
	var username string
	var unpersistJSON bool
	cmd := &cobra.Command{
		Use:   "unpersist <id>",
		Short: "Return a permanent item to the shared library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return ctx.withCatalogStore(func(cfg *config.Config, store *catalog.Store) error {
				result, err := api.Unpersist(cmd.Context(), api.UnpersistRequest{
					Config:   cfg,
					Store:    store,
					ItemID:   id,
					Username: username,
				})
				if err != nil {
					return err
				}
				if unpersistJSON {
					return writeJSON(cmd, result)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Returned %q to the shared library\n", result.Item.Label)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&username, "user", "u", "", "Acting username (required)")
	cmd.Flags().BoolVar(&unpersistJSON, "json", false, "Emit result as JSON")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
