package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"inductionlog/internal/app"
	"inductionlog/internal/config"
	"inductionlog/internal/domain"
	"inductionlog/internal/persist"
	"inductionlog/internal/policy"
	"inductionlog/internal/storage"
)

func policyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "policy", Short: "Inspect field permissions"}
	cmd.AddCommand(policyMatrixCmd())
	cmd.AddCommand(policyCheckCmd())
	return cmd
}

func policyMatrixCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "matrix",
		Short: "Show which fields each role may edit",
		RunE: func(cmd *cobra.Command, args []string) error {
			roles := []domain.Role{domain.RoleAdmin, domain.RoleMentor, domain.RoleMentee}
			if r := viper.GetString("role"); r != "" {
				roles = []domain.Role{domain.ParseRole(r)}
			}
			out := map[domain.Role]map[string]map[string]bool{}
			for _, r := range roles {
				out[r] = policy.Matrix(r)
			}
			return printJSONOrTable(out, func(tw table.Writer) {
				header := table.Row{"Section", "Field"}
				for _, r := range roles {
					header = append(header, string(r))
				}
				tw.AppendHeader(header)
				first := out[roles[0]]
				sections := make([]string, 0, len(first))
				for s := range first {
					sections = append(sections, s)
				}
				sort.Strings(sections)
				for _, s := range sections {
					fields := make([]string, 0, len(first[s]))
					for f := range first[s] {
						fields = append(fields, f)
					}
					sort.Strings(fields)
					for _, f := range fields {
						row := table.Row{s, f}
						for _, r := range roles {
							row = append(row, yesNo(out[r][s][f]))
						}
						tw.AppendRow(row)
					}
				}
			})
		},
	}
}

func policyCheckCmd() *cobra.Command {
	var section, field string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate one permission",
		RunE: func(cmd *cobra.Command, args []string) error {
			role := domain.ParseRole(viper.GetString("role"))
			if viper.GetString("role") == "" {
				cfg, err := loadCLIConfig()
				if err != nil {
					return err
				}
				role = cfg.DefaultRole()
			}
			allowed := policy.CanEdit(role, section, field)
			if viper.GetBool("json") {
				return printJSON(map[string]any{"role": role, "section": section, "field": field, "allowed": allowed})
			}
			fmt.Printf("%s may edit %s.%s: %t\n", role, section, field, allowed)
			return nil
		},
	}
	cmd.Flags().StringVar(&section, "section", "", "section id")
	cmd.Flags().StringVar(&field, "field", "", "field key")
	_ = cmd.MarkFlagRequired("section")
	return cmd
}

func autosaveCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "autosave", Short: "Inspect the autosave snapshot"}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the saved snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				cfg, ok := a.Autosaver().Load(ctx)
				if !ok {
					return fmt.Errorf("no snapshot under %q", a.Config.Storage.Key)
				}
				return printJSONOrTable(cfg, func(tw table.Writer) { renderForm(tw, cfg) })
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete the saved snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				a.Autosaver().ClearSavedData(ctx)
				fmt.Printf("cleared %s (%s)\n", a.Config.Storage.Key, a.Config.Storage.Backend)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Follow snapshot changes made by other processes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				w, ok := a.Store.(storage.Watcher)
				if !ok {
					return fmt.Errorf("the %s backend cannot be watched; use storage.backend: file", a.Config.Storage.Backend)
				}
				events, err := w.Watch(ctx)
				if err != nil {
					return err
				}
				for ev := range events {
					if ev.Key != a.Config.Storage.Key {
						continue
					}
					if ev.Deleted {
						fmt.Println("snapshot cleared")
						continue
					}
					cfg, err := persist.DecodeSnapshot(ev.Value)
					if err != nil {
						fmt.Fprintln(os.Stderr, "unreadable snapshot:", err)
						continue
					}
					fmt.Printf("snapshot saved: inductee=%q role=%s mentor meetings=%d\n",
						cfg.Data.Inductee, cfg.UserRole, len(cfg.Data.MentorMeetings))
				}
				return nil
			})
		},
	})
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Workspace configuration"}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCLIConfig()
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	})
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default inductionlog.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s exists; pass --force to overwrite", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}

func loadCLIConfig() (*config.Config, error) {
	if p := viper.GetString("config"); p != "" {
		return config.FromFile(p)
	}
	return config.LoadOptional(viper.GetString("workspace"))
}
