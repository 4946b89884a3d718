package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"inductionlog/internal/app"
	"inductionlog/internal/domain"
)

func apiKeyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "apikey", Short: "Manage API keys for the HTTP server"}
	cmd.AddCommand(apiKeyCreateCmd())
	cmd.AddCommand(apiKeyListCmd())
	cmd.AddCommand(apiKeyRemoveCmd())
	return cmd
}

func requireAdmin(a *app.Context, what string) error {
	if role := actingRole(a); role != domain.RoleAdmin {
		return fmt.Errorf("role %q may not %s", role, what)
	}
	return nil
}

func apiKeyCreateCmd() *cobra.Command {
	var actor, role, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Mint a key; the plain value is printed once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				if err := requireAdmin(a, "create api keys"); err != nil {
					return err
				}
				plain, key, err := a.Engine.CreateAPIKey(ctx, actor, domain.Role(role), name, actorID())
				if err != nil {
					return err
				}
				out := map[string]any{"key": plain, "id": key.ID, "actor_id": key.ActorID, "role": key.Role}
				return printJSONOrTable(out, func(tw table.Writer) {
					tw.AppendHeader(table.Row{"ID", "Actor", "Role", "Key"})
					tw.AppendRow(table.Row{key.ID, key.ActorID, key.Role, plain})
				})
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor id the key authenticates as")
	cmd.Flags().StringVar(&role, "for-role", string(domain.RoleMentee), "role granted to the key (admin, mentor, mentee)")
	cmd.Flags().StringVar(&name, "name", "", "label")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func apiKeyListCmd() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				if err := requireAdmin(a, "list api keys"); err != nil {
					return err
				}
				keys, err := a.Engine.ListAPIKeys(ctx, actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(keys, func(tw table.Writer) {
					tw.AppendHeader(table.Row{"ID", "Actor", "Role", "Name", "Created"})
					for _, k := range keys {
						tw.AppendRow(table.Row{k.ID, k.ActorID, k.Role, k.Name, k.CreatedAt})
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "only keys of this actor")
	return cmd
}

func apiKeyRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <key-id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				if err := requireAdmin(a, "revoke api keys"); err != nil {
					return err
				}
				if err := a.Engine.RevokeAPIKey(ctx, args[0], actorID()); err != nil {
					return err
				}
				fmt.Println("revoked", args[0])
				return nil
			})
		},
	}
}
