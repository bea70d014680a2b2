package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"labbook/internal/core"
	"labbook/pkg/domain"
)

func newPageCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "page", Short: "Manage protocol, reagent, duty and cell pages"}
	cmd.AddCommand(
		newPageListCommand(a),
		newPageShowCommand(a),
		newPageSaveCommand(a, false),
		newPageSaveCommand(a, true),
		&cobra.Command{
			Use:   "fav <id>",
			Short: "Toggle the favorite flag",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				p, err := a.svc.ToggleFavorite(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s favorite=%s\n", p.ID, yesNo(p.Favorite))
				return nil
			},
		},
		&cobra.Command{
			Use:   "rm <id>",
			Short: "Delete a page; runs that reference it are kept",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.svc.DeletePage(cmd.Context(), args[0])
			},
		},
		newPageLinksCommand(a),
	)
	return cmd
}

func newPageListCommand(a *app) *cobra.Command {
	var pageType string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pages, favorites first then most recently updated",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var t core.PageType
			if pageType != "" {
				parsed, err := domain.ParsePageType(pageType)
				if err != nil {
					return err
				}
				t = parsed
			}
			printPages(a, a.svc.ListPages(cmd.Context(), t))
			return nil
		},
	}
	cmd.Flags().StringVarP(&pageType, "type", "t", "", "only pages of this type (protocol|reagent|duty|cell)")
	return cmd
}

func printPages(a *app, pages []core.Page) {
	tw := newTable(a.out)
	row(tw, "ID", "TYPE", "FAV", "TITLE", "UPDATED")
	for _, p := range pages {
		row(tw, p.ID, string(p.Type()), star(p.Favorite), p.Title, formatAge(p.UpdatedAt))
	}
	_ = tw.Flush()
}

func newPageShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a page with its type-specific details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok := a.svc.GetPage(cmd.Context(), args[0])
			if !ok {
				return domain.NotFoundError{Entity: core.EntityPage, ID: args[0]}
			}
			tw := newTable(a.out)
			field(tw, "id", p.ID)
			field(tw, "type", string(p.Type()))
			field(tw, "title", p.Title)
			field(tw, "aliases", strings.Join(p.Aliases, ", "))
			field(tw, "tags", strings.Join(p.Tags, ", "))
			field(tw, "favorite", yesNo(p.Favorite))
			field(tw, "updated", formatTime(p.UpdatedAt))
			if c, ok := p.Cell(); ok {
				field(tw, "adhesion", string(c.Adhesion))
				field(tw, "medium", c.Medium)
				field(tw, "passage timing", c.PassageTiming)
			}
			_ = tw.Flush()

			if r, ok := p.Reagent(); ok && len(r.Composition) > 0 {
				fmt.Fprintln(a.out, "\ncomposition:")
				tw = newTable(a.out)
				row(tw, "NAME", "AMOUNT", "LOCATION")
				for _, c := range r.Composition {
					row(tw, c.Name, c.Amount, c.Location)
				}
				_ = tw.Flush()
			}
			if c, ok := p.Cell(); ok {
				fmt.Fprintln(a.out, "\npassages:")
				tw = newTable(a.out)
				row(tw, "#", "AT", "NOTE")
				for i, ps := range c.Passages {
					row(tw, fmt.Sprint(i+1), formatTime(ps.At), ps.Note)
				}
				_ = tw.Flush()
				if runs := a.svc.ListRunsByCell(cmd.Context(), p.ID); len(runs) > 0 {
					fmt.Fprintln(a.out, "\nruns:")
					printRuns(a, runs)
				}
			}
			if p.Body != "" {
				fmt.Fprintf(a.out, "\n%s\n", p.Body)
			}
			return nil
		},
	}
}

// pageFlags are the editor form fields shared by page new and page edit.
type pageFlags struct {
	pageType      string
	title         string
	aliases       string
	tags          string
	favorite      bool
	body          string
	bodyFile      string
	components    []string
	adhesion      string
	medium        string
	passageTiming string
}

func (f *pageFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.pageType, "type", "t", "", "page type (protocol|reagent|duty|cell)")
	fl.StringVar(&f.title, "title", "", "page title")
	fl.StringVar(&f.aliases, "aliases", "", "comma-separated aliases")
	fl.StringVar(&f.tags, "tags", "", "comma-separated tags")
	fl.BoolVar(&f.favorite, "fav", false, "mark as favorite")
	fl.StringVar(&f.body, "body", "", "body text; for reagents the preparation method")
	fl.StringVar(&f.bodyFile, "body-file", "", "read the body from a file (- for stdin)")
	fl.StringArrayVar(&f.components, "component", nil, `reagent component "name|amount|location" (repeatable, replaces the composition)`)
	fl.StringVar(&f.adhesion, "adhesion", "", "cell adhesion (adherent|suspension)")
	fl.StringVar(&f.medium, "medium", "", "cell culture medium")
	fl.StringVar(&f.passageTiming, "passage-timing", "", "cell passage timing note")
}

// apply copies the flags the user set onto d.
func (f *pageFlags) apply(cmd *cobra.Command, d *core.PageDraft) error {
	changed := cmd.Flags().Changed
	if changed("type") {
		d.Type = core.PageType(f.pageType)
	}
	if changed("title") {
		d.Title = f.title
	}
	if changed("aliases") {
		d.Aliases = f.aliases
	}
	if changed("tags") {
		d.Tags = f.tags
	}
	if changed("fav") {
		d.Favorite = f.favorite
	}
	if changed("body") {
		d.Body = f.body
	}
	if changed("body-file") {
		var (
			data []byte
			err  error
		)
		if f.bodyFile == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(f.bodyFile)
		}
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		d.Body = string(data)
	}
	if changed("component") {
		d.Composition = nil
		for _, raw := range f.components {
			parts := strings.SplitN(raw, "|", 3)
			for len(parts) < 3 {
				parts = append(parts, "")
			}
			d.Composition = append(d.Composition, core.Component{Name: parts[0], Amount: parts[1], Location: parts[2]})
		}
	}
	if changed("adhesion") {
		d.Adhesion = f.adhesion
	}
	if changed("medium") {
		d.Medium = f.medium
	}
	if changed("passage-timing") {
		d.PassageTiming = f.passageTiming
	}
	return nil
}

func newPageSaveCommand(a *app, edit bool) *cobra.Command {
	f := &pageFlags{}
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a page",
		Args:  cobra.NoArgs,
	}
	if edit {
		cmd.Use = "edit <id>"
		cmd.Short = "Edit a page; only the given fields change"
		cmd.Args = cobra.ExactArgs(1)
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		draft := core.PageDraft{Type: core.PageProtocol}
		if edit {
			p, ok := a.svc.GetPage(cmd.Context(), args[0])
			if !ok {
				return domain.NotFoundError{Entity: core.EntityPage, ID: args[0]}
			}
			draft = core.DraftFromPage(p)
		}
		if err := f.apply(cmd, &draft); err != nil {
			return err
		}
		p, err := a.svc.SavePage(cmd.Context(), draft)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, p.ID)
		return nil
	}
	f.register(cmd)
	return cmd
}

func newPageLinksCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "links <id>",
		Short: "Show the [[links]] a page makes and the pages linking to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := a.svc.OutgoingLinks(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			back, err := a.svc.Backlinks(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, "links:")
			tw := newTable(a.out)
			for _, t := range out {
				if t.Exists {
					row(tw, "  "+t.Title, t.Page.ID, string(t.Type))
				} else {
					row(tw, "  "+t.Title, "(missing)", "new "+string(t.Type))
				}
			}
			_ = tw.Flush()
			fmt.Fprintln(a.out, "backlinks:")
			tw = newTable(a.out)
			for _, p := range back {
				row(tw, "  "+p.Title, p.ID, string(p.Type()))
			}
			_ = tw.Flush()
			return nil
		},
	}
}

func newSearchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search titles, aliases, tags, bodies and reagent compositions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printPages(a, a.svc.Search(cmd.Context(), strings.Join(args, " ")))
			return nil
		},
	}
}

func newResolveCommand(a *app) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "resolve <name>",
		Short: "Resolve a [[name]] link by title or alias",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := a.svc.ResolveLink(cmd.Context(), strings.Join(args, " "), from)
			if t.Exists {
				fmt.Fprintf(a.out, "%s\t%s\t%s\n", t.Page.ID, t.Type, t.Title)
				return nil
			}
			fmt.Fprintf(a.out, "missing\t%s\t%s\n", t.Type, t.Title)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "id of the page the link appears on")
	return cmd
}
