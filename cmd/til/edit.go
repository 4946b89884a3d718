package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"inductionlog/internal/app"
	"inductionlog/internal/domain"
	"inductionlog/internal/persist"
	"inductionlog/internal/policy"
	"inductionlog/internal/session"
)

const editHelp = `commands:
  set <section.field|section[i].field> <value>
  add <section>
  rm <section> <index>
  show
  save      submit the edits to the log and clear the autosave snapshot
  quit      leave; unsaved edits stay in the autosave store`

func logEditCmd() *cobra.Command {
	var resume bool
	cmd := &cobra.Command{
		Use:   "edit <log-id>",
		Short: "Edit a log interactively with autosave",
		Long: "Edit reads commands from stdin. Changes are autosaved to the configured store " +
			"after the autosave delay and written to the log on 'save'.\n\n" + editHelp,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				form, err := a.Engine.LoadForm(ctx, args[0], actingRole(a))
				if err != nil {
					return err
				}
				saver := a.Autosaver()
				saver.LogID = args[0]
				if err := checkPending(ctx, saver, args[0], resume); err != nil {
					return err
				}
				ed := &editor{ctx: ctx, app: a, saver: saver, logID: args[0], s: session.New(form), out: os.Stdout}
				ed.stop = saver.Start(ctx, ed.s)
				defer func() { ed.stop() }()
				// A resumed snapshot keeps its document but not its role.
				if cfg := ed.s.Config(); cfg.UserRole != form.UserRole {
					cfg.UserRole = form.UserRole
					ed.s.SetConfig(cfg)
				}
				return ed.run(os.Stdin)
			})
		},
	}
	cmd.Flags().BoolVar(&resume, "resume", false, "continue from the autosaved snapshot")
	return cmd
}

// checkPending refuses to start over a pending snapshot unless resume is
// set, and never resumes a snapshot taken from another log.
func checkPending(ctx context.Context, saver *persist.Autosaver, logID string, resume bool) error {
	snap, pending := saver.LoadSnapshot(ctx)
	switch {
	case !pending:
		return nil
	case snap.LogID != logID:
		owner := snap.LogID
		if owner == "" {
			owner = "an unknown log"
		}
		return fmt.Errorf("the pending autosaved edit belongs to %s; finish it there or run 'til autosave clear'", owner)
	case !resume:
		return errors.New("an autosaved edit is pending; pass --resume to continue it or run 'til autosave clear'")
	}
	return nil
}

type editor struct {
	ctx   context.Context
	app   *app.Context
	saver *persist.Autosaver
	stop  func()
	logID string
	s     *session.Session
	out   io.Writer
	dirty bool
}

func (e *editor) run(in io.Reader) error {
	fmt.Fprintf(e.out, "editing %s as %s (type 'help')\n", e.logID, e.s.Role())
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(e.out, "> ")
		if !sc.Scan() {
			e.flush()
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		done, err := e.exec(line)
		if err != nil {
			fmt.Fprintln(e.out, "error:", err)
		}
		if done {
			return nil
		}
	}
}

func (e *editor) exec(line string) (bool, error) {
	done, err := e.apply(line)
	if err == nil && !done {
		switch verb, _, _ := strings.Cut(line, " "); verb {
		case "set", "add", "rm":
			e.dirty = true
		}
	}
	return done, err
}

func (e *editor) apply(line string) (bool, error) {
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch verb {
	case "help":
		fmt.Fprintln(e.out, editHelp)
	case "set":
		target, value, _ := strings.Cut(rest, " ")
		ref, err := domain.ParseFieldRef(target)
		if err != nil {
			return false, err
		}
		if isDateRef(ref) && value != "" && !domain.IsDateValue(value) {
			return false, fmt.Errorf("%s: %q is not a date", ref, value)
		}
		return false, e.s.SetField(ref, value)
	case "add":
		k, err := sectionKind(rest)
		if err != nil {
			return false, err
		}
		if err := e.checkResize(k); err != nil {
			return false, err
		}
		return false, e.s.AddEntry(k)
	case "rm":
		id, idxText, _ := strings.Cut(rest, " ")
		k, err := sectionKind(id)
		if err != nil {
			return false, err
		}
		idx, err := strconv.Atoi(strings.TrimSpace(idxText))
		if err != nil {
			return false, fmt.Errorf("index: %w", err)
		}
		if err := e.checkResize(k); err != nil {
			return false, err
		}
		return false, e.s.RemoveEntry(k, idx)
	case "show":
		tw := table.NewWriter()
		tw.SetOutputMirror(e.out)
		tw.SetStyle(table.StyleLight)
		renderForm(tw, e.s.Config())
		tw.Render()
	case "save":
		payload, err := encodeFormData(e.s.Data())
		if err != nil {
			return false, err
		}
		if _, err := e.app.Engine.SubmitForm(e.ctx, e.logID, payload, e.s.Role(), actorID()); err != nil {
			return false, err
		}
		// Restart autosave so a write still pending from before the save
		// cannot bring the snapshot back.
		e.stop()
		e.saver.ClearSavedData(e.ctx)
		e.stop = e.saver.Start(e.ctx, e.s)
		e.dirty = false
		fmt.Fprintln(e.out, "saved")
	case "quit", "exit":
		e.flush()
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q", verb)
	}
	return false, nil
}

func (e *editor) checkResize(k domain.SectionKind) error {
	if !policy.CanResize(e.s.Role(), k.ID()) {
		return policy.ForbiddenFieldError{Role: e.s.Role(), Section: k.ID()}
	}
	return nil
}

// flush writes unsaved edits to the autosave store right away instead of
// leaving them to a pending timer that stop would drop.
func (e *editor) flush() {
	if e.dirty {
		e.saver.SaveNow(e.ctx, e.s.Config())
	}
}

func isDateRef(ref domain.FieldRef) bool {
	if ref.Section == domain.SectionSignatures {
		return ref.Field == "date"
	}
	k, ok := domain.ParseSectionKind(ref.Section)
	if !ok {
		return false
	}
	for _, f := range k.Section().Fields {
		if f.Key == ref.Field {
			return f.Type == domain.FieldDate
		}
	}
	return false
}
