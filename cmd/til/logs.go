package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"inductionlog/internal/app"
	"inductionlog/internal/domain"
	"inductionlog/internal/engine"
	"inductionlog/internal/htmldoc"
	"inductionlog/internal/ingest"
	"inductionlog/internal/policy"
	"inductionlog/internal/repo"
)

func logCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "log", Short: "Manage induction logs"}
	cmd.AddCommand(logCreateCmd())
	cmd.AddCommand(logListCmd())
	cmd.AddCommand(logShowCmd())
	cmd.AddCommand(logSetCmd())
	cmd.AddCommand(logEntryCmd())
	cmd.AddCommand(logEditCmd())
	cmd.AddCommand(logExportCmd())
	cmd.AddCommand(logImportCmd())
	cmd.AddCommand(logPushCmd())
	cmd.AddCommand(logEventsCmd())
	cmd.AddCommand(logRemoveCmd())
	return cmd
}

func logCreateCmd() *cobra.Command {
	var id, inductee, building string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a blank log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				data := domain.NewFormData()
				data.Inductee = inductee
				data.Building = building
				l, err := a.Engine.CreateLog(ctx, engine.CreateLogOptions{ID: id, Data: &data, ActorID: actorID()})
				if err != nil {
					return err
				}
				return printJSONOrTable(l.Summary(), func(tw table.Writer) {
					renderSummaries(tw, []domain.LogSummary{l.Summary()})
				})
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "log id (default: generated)")
	cmd.Flags().StringVar(&inductee, "inductee", "", "inductee name")
	cmd.Flags().StringVar(&building, "building", "", "building")
	return cmd
}

func logListCmd() *cobra.Command {
	var f repo.LogFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				items, err := a.Engine.ListLogs(ctx, f)
				if err != nil {
					return err
				}
				return printJSONOrTable(items, func(tw table.Writer) { renderSummaries(tw, items) })
			})
		},
	}
	cmd.Flags().StringVar(&f.Inductee, "inductee", "", "inductee substring")
	cmd.Flags().StringVar(&f.Building, "building", "", "building")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "max logs")
	return cmd
}

func renderSummaries(tw table.Writer, items []domain.LogSummary) {
	tw.AppendHeader(table.Row{"ID", "Inductee", "Building", "Year 1", "Updated"})
	for _, s := range items {
		tw.AppendRow(table.Row{s.ID, s.Inductee, s.Building, s.SchoolYearOne, s.UpdatedAt})
	}
}

func logShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <log-id>",
		Short: "Show a log as the acting role sees it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				form, err := a.Engine.LoadForm(ctx, args[0], actingRole(a))
				if err != nil {
					return err
				}
				return printJSONOrTable(form, func(tw table.Writer) { renderForm(tw, form) })
			})
		},
	}
	return cmd
}

func renderForm(tw table.Writer, form domain.FormConfig) {
	d := form.Data
	tw.SetTitle("Teacher Induction Log (%s)", form.UserRole)
	tw.AppendHeader(table.Row{"Section", "Row", "Field", "Value", "Editable"})
	put := func(ref domain.FieldRef, value string, fieldType domain.FieldType) {
		if fieldType == domain.FieldDate {
			value = domain.FormatDate(value)
		}
		row := ""
		if ref.Section != domain.SectionCoverPage && ref.Section != domain.SectionSignatures {
			row = strconv.Itoa(ref.Index)
		}
		tw.AppendRow(table.Row{ref.Section, row, ref.Field, value, yesNo(policy.CanEdit(form.UserRole, ref.Section, ref.Field))})
	}
	for _, f := range domain.CoverPageFields {
		ref := domain.FieldRef{Section: domain.SectionCoverPage, Field: f}
		v, _ := domain.GetField(d, ref)
		put(ref, v, domain.FieldText)
	}
	for _, s := range domain.Sections() {
		tw.AppendSeparator()
		for i := 0; i < s.Kind.Len(d); i++ {
			for _, f := range s.Fields {
				ref := domain.FieldRef{Section: s.ID, Index: i, Field: f.Key}
				v, _ := domain.GetField(d, ref)
				put(ref, v, f.Type)
			}
		}
	}
	tw.AppendSeparator()
	for _, f := range domain.SignatureFields {
		ref := domain.FieldRef{Section: domain.SectionSignatures, Field: f}
		v, _ := domain.GetField(d, ref)
		typ := domain.FieldText
		if f == "date" {
			typ = domain.FieldDate
		}
		put(ref, v, typ)
	}
}

func logSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <log-id> <section.field|section[i].field> <value>",
		Short: "Set one field",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := domain.ParseFieldRef(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				_, err := a.Engine.SetField(ctx, engine.FieldUpdate{
					LogID:   args[0],
					Ref:     ref,
					Value:   args[2],
					Role:    actingRole(a),
					ActorID: actorID(),
				})
				if err != nil {
					return err
				}
				fmt.Printf("%s = %q\n", ref, args[2])
				return nil
			})
		},
	}
	return cmd
}

func logEntryCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "entry", Short: "Add or remove rows of a repeatable section"}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <log-id> <section>",
		Short: "Append an empty row",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := sectionKind(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				l, err := a.Engine.AddEntry(ctx, args[0], k, actingRole(a), actorID())
				if err != nil {
					return err
				}
				fmt.Printf("%s now has %d rows\n", k, k.Len(l.Data))
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rm <log-id> <section> <index>",
		Short: "Remove a row",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := sectionKind(args[1])
			if err != nil {
				return err
			}
			idx, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				l, err := a.Engine.RemoveEntry(ctx, args[0], k, idx, actingRole(a), actorID())
				if err != nil {
					return err
				}
				fmt.Printf("%s now has %d rows\n", k, k.Len(l.Data))
				return nil
			})
		},
	})
	return cmd
}

func sectionKind(id string) (domain.SectionKind, error) {
	k, ok := domain.ParseSectionKind(id)
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrUnknownSection, id)
	}
	return k, nil
}

func logExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [log-id...]",
		Short: "Export logs as a JSON_CLOB array",
		Long:  "Export writes the documents of the named logs, or of every log, as a JSON_CLOB array that 'til log import' reads back.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				ids := args
				if len(ids) == 0 {
					items, err := a.Engine.ListLogs(ctx, repo.LogFilters{Limit: 10000})
					if err != nil {
						return err
					}
					for _, s := range items {
						ids = append(ids, s.ID)
					}
				}
				docs := make([]domain.FormData, 0, len(ids))
				for _, id := range ids {
					l, err := a.Engine.GetLog(ctx, id)
					if err != nil {
						return fmt.Errorf("%s: %w", id, err)
					}
					docs = append(docs, l.Data)
				}
				raw, err := ingest.WrapJSONClob(docs...)
				if err != nil {
					return err
				}
				return printJSON(raw)
			})
		},
	}
	return cmd
}

func logImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [file|-]",
		Short: "Import logs from a form config, a bare document or a JSON_CLOB array",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			raw, err := readInput(path)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				logs, err := a.Engine.ImportLogs(ctx, raw, actorID())
				if err != nil {
					return err
				}
				items := make([]domain.LogSummary, 0, len(logs))
				for _, l := range logs {
					items = append(items, l.Summary())
				}
				return printJSONOrTable(items, func(tw table.Writer) { renderSummaries(tw, items) })
			})
		},
	}
	return cmd
}

func logPushCmd() *cobra.Command {
	var serverURL, remoteID string
	cmd := &cobra.Command{
		Use:   "push <log-id>",
		Short: "Save a local log into a running server through its host page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if remoteID == "" {
				remoteID = args[0]
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				l, err := a.Engine.GetLog(ctx, args[0])
				if err != nil {
					return err
				}
				base := strings.TrimSuffix(serverURL, "/") + a.Config.Server.BasePath
				doc, err := htmldoc.Fetch(ctx, http.DefaultClient, base+"/logs/"+remoteID+"/host", remoteHeaders(actingRole(a)))
				if err != nil {
					return err
				}
				if !a.ManualSaver().Save(ctx, doc, l.Data) {
					return fmt.Errorf("push %s failed, see log output", args[0])
				}
				fmt.Printf("pushed %s to %s\n", args[0], base)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "http://127.0.0.1:8080", "server address")
	cmd.Flags().StringVar(&remoteID, "remote-id", "", "log id on the server (default: same id)")
	return cmd
}

// remoteHeaders authenticates with TIL_TOKEN when set and falls back to
// the development identity headers.
func remoteHeaders(role domain.Role) http.Header {
	h := http.Header{}
	if token := viper.GetString("token"); token != "" {
		h.Set("Authorization", "Bearer "+token)
		return h
	}
	h.Set("X-Actor-Id", actorID())
	h.Set("X-User-Role", string(role))
	return h
}

func logEventsCmd() *cobra.Command {
	var f repo.EventFilters
	cmd := &cobra.Command{
		Use:   "events [log-id]",
		Short: "Show recorded changes, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				f.LogID = args[0]
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				items, err := a.Engine.ListEvents(ctx, f)
				if err != nil {
					return err
				}
				return printJSONOrTable(items, func(tw table.Writer) {
					tw.AppendHeader(table.Row{"ID", "Time", "Type", "Log", "Actor", "Payload"})
					for _, e := range items {
						tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.LogID, e.ActorID, e.Payload})
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().IntVar(&f.Limit, "n", 20, "number of events")
	return cmd
}

func logRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <log-id>",
		Short: "Delete a log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				if err := requireAdmin(a, "delete logs"); err != nil {
					return err
				}
				if err := a.Engine.DeleteLog(ctx, args[0], actorID()); err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "deleted %s\n", args[0])
				return nil
			})
		},
	}
	return cmd
}

// encodeFormData renders d as the payload the submit path expects.
func encodeFormData(d domain.FormData) (string, error) {
	b, err := json.Marshal(d.Normalize())
	if err != nil {
		return "", err
	}
	return string(b), nil
}
