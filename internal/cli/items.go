package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cs2interlink/cs2-int/internal/batch"
	"github.com/cs2interlink/cs2-int/internal/constants"
	"github.com/cs2interlink/cs2-int/internal/inventory"
	"github.com/cs2interlink/cs2-int/internal/progress"
	"github.com/cs2interlink/cs2-int/internal/table"
	"github.com/cs2interlink/cs2-int/internal/tui"
)

// newItemsCmd creates the 'items' command group.
func newItemsCmd() *cobra.Command {
	itemsCmd := &cobra.Command{
		Use:   "items",
		Short: "List, store and retrieve inventory items",
		Long: `Inventory and storage unit commands.

Commands:
  list      - Print inventory or storage unit contents
  store     - Move items into a storage unit
  retrieve  - Move items out of storage units`,
	}

	itemsCmd.AddCommand(newItemsListCmd())
	itemsCmd.AddCommand(newItemsTransferCmd(inventory.ModeStore))
	itemsCmd.AddCommand(newItemsTransferCmd(inventory.ModeRetrieve))

	return itemsCmd
}

type itemRecord struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Wear        string   `json:"wear,omitempty" yaml:"wear,omitempty"`
	Quality     string   `json:"quality,omitempty" yaml:"quality,omitempty"`
	Collection  string   `json:"collection,omitempty" yaml:"collection,omitempty"`
	Float       *float64 `json:"float,omitempty" yaml:"float,omitempty"`
	Seed        *int     `json:"seed,omitempty" yaml:"seed,omitempty"`
	StorageUnit string   `json:"storage_unit,omitempty" yaml:"storage_unit,omitempty"`
}

func newItemRecord(it *inventory.Item) itemRecord {
	return itemRecord{
		ID:          it.RowID(),
		Name:        it.Name,
		Wear:        it.WearName,
		Quality:     strings.TrimSpace(it.QualityName + " " + it.RarityName),
		Collection:  it.Collection,
		Float:       it.Wear,
		Seed:        it.Seed,
		StorageUnit: it.CasketLabel(),
	}
}

func (r itemRecord) cells() []string {
	float, seed := "", ""
	if r.Float != nil {
		float = strconv.FormatFloat(*r.Float, 'f', 8, 64)
	}
	if r.Seed != nil {
		seed = strconv.Itoa(*r.Seed)
	}
	return []string{r.ID, r.Name, r.Wear, r.Quality, r.Collection, float, seed, r.StorageUnit}
}

// listVariant is a plain, searchable view of items for printing.
type listVariant struct {
	tokens []string
	filter *inventory.ItemFilter
}

func (v *listVariant) MaterializeRow(it *inventory.Item) *inventory.Item { return it }
func (v *listVariant) MatchesFilter(it *inventory.Item) bool {
	return v.filter.Matches(it, nil) && table.MatchTokens(it.NameNormalized, v.tokens)
}
func (v *listVariant) RenderFooter(table.Footer) {}

// sortedItems filters rows by query and filter and orders them by columns.
func sortedItems(rows []*inventory.Item, query string, filter *inventory.ItemFilter, columns []string, desc bool) []*inventory.Item {
	v := &listVariant{tokens: table.SearchTokens(query), filter: filter}
	opts := table.Options{ViewportRows: max(1, len(rows)), RowHeight: 1}
	if len(columns) > 0 {
		dir := table.Ascending
		if desc {
			dir = table.Descending
		}
		opts.InitialSort = &table.SortSpec{Columns: columns, Direction: dir}
	}
	t := table.New[*inventory.Item, *inventory.Item](rows, v, opts)
	t.Show()
	return t.Visible()
}

// newItemsListCmd creates the 'items list' command.
func newItemsListCmd() *cobra.Command {
	var (
		unit   string
		search string
		sortBy []string
		desc   bool
		output string
		filter filterFlags
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print inventory or storage unit contents",
		Long: `Print the inventory, or the contents of a storage unit with --unit.
Use --unit all for the contents of every storage unit.

Sort columns: id, name, wear, rarity, quality, collection, seed,
casket_id, casket_name, cosmetics.

Filter terms (--filter or the single flags) are matched against the
types, qualities, rarities and collections present in the listed items.

Examples:
  cs2-int items list --search "ak-47" --sort wear
  cs2-int items list --type AWP --wear FN --float -0.01
  cs2-int items list --unit "Stickers" --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			s, err := newSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			inv, err := s.loadInventory(ctx, unit != "")
			if err != nil {
				return err
			}

			rows := inv.Items
			switch unit {
			case "":
			case "all":
				rows = inv.StoredItems
			default:
				u, err := findUnit(inv, unit)
				if err != nil {
					return err
				}
				rows = inv.StoredIn(u.ID())
			}

			f, err := filter.parse(rows)
			if err != nil {
				return err
			}
			items := sortedItems(rows, search, f, sortBy, desc)
			records := make([]itemRecord, len(items))
			for i, it := range items {
				records[i] = newItemRecord(it)
			}
			headers := []string{"ID", "Name", "Wear", "Quality", "Collection", "Float", "Seed", "Storage Unit"}
			return writeRecords(cmd.OutOrStdout(), output, headers, records, itemRecord.cells)
		},
	}

	cmd.Flags().StringVarP(&unit, "unit", "u", "", "Storage unit id or name, or \"all\"")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Only items whose name contains every word")
	cmd.Flags().StringSliceVar(&sortBy, "sort", nil, "Sort columns, compared in order")
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort descending")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table, json, yaml")
	filter.register(cmd)

	return cmd
}

// newItemsTransferCmd creates 'items store' or 'items retrieve'.
func newItemsTransferCmd(mode inventory.Mode) *cobra.Command {
	var (
		unit        string
		search      string
		selectFirst int
		yes         bool
		filter      filterFlags
	)

	cmd := &cobra.Command{
		Use:   mode.Operation(),
		Short: "Move items into a storage unit",
		Long: `Open a table of moveable inventory items and store the selected ones
into the storage unit given by --unit.

Without --select-first the table is interactive:
  ↑/↓ move, space select, S select range, a select up to the limit,
  d clear, / search, f filter, 1-6 sort by column, enter start, q quit.

With --select-first N the first N items (after --search and the filter
flags) are moved without opening the table.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			if mode == inventory.ModeStore && unit == "" {
				return errors.New("--unit is required")
			}
			if selectFirst == 0 && !progress.IsTerminal(os.Stdout) {
				return errNotTerminal
			}

			s, err := newSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			inv, err := s.loadInventory(ctx, true)
			if err != nil {
				return err
			}

			opts := inventory.ItemTableOptions{
				Mode:         mode,
				ViewportRows: viewportRows(),
				Concurrency:  s.cfg.Transfer.Concurrency,
				Delay:        s.cfg.TransferDelay(),
				SettleDelay:  s.cfg.SettleDelay(),
				MaxAttempts:  s.cfg.Transfer.MaxAttempts,
				Bus:          s.bus,
				Logger:       s.log,
			}
			if unit != "" && unit != "all" {
				if opts.Unit, err = findUnit(inv, unit); err != nil {
					return err
				}
			}

			view := tableView{search: search, filter: filter.expression()}
			if selectFirst > 0 {
				return runTransfer(ctx, s, inv, opts, view, selectFirst, yes)
			}
			return runTransferTable(ctx, s, inv, opts, view)
		},
	}

	if mode == inventory.ModeRetrieve {
		cmd.Short = "Move items out of storage units"
		cmd.Long = `Open a table of stored items and retrieve the selected ones into the
inventory. --unit limits the table to one storage unit; without it the
contents of every unit are listed.

Keys are the same as for 'items store'.`
	}

	cmd.Flags().StringVarP(&unit, "unit", "u", "", "Storage unit id or name")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Initial name search")
	cmd.Flags().IntVar(&selectFirst, "select-first", 0, "Move the first N matching items without the table")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	filter.register(cmd)

	return cmd
}

// tableView is the initial search and filter of an item table.
type tableView struct {
	search string
	filter string
}

func (v tableView) apply(tbl *inventory.ItemTable) error {
	if v.filter != "" {
		if err := tbl.ApplyFilterText(v.filter); err != nil {
			return err
		}
	}
	if v.search != "" {
		tbl.Search(v.search)
	}
	return nil
}

func transferSummary(mode inventory.Mode, n int, unit *inventory.Item) string {
	if mode == inventory.ModeStore {
		return fmt.Sprintf("Stored %d items into %q", n, unit.UnitName())
	}
	return fmt.Sprintf("Retrieved %d items", n)
}

// runTransfer moves the first n matching items with a progress bar.
func runTransfer(ctx context.Context, s *session, inv *inventory.Inventory, opts inventory.ItemTableOptions, view tableView, n int, yes bool) error {
	var bar *progress.Bar
	opts.Progress = func(message string, fraction float64) {
		if bar != nil {
			bar.Update(message, fraction)
		}
	}
	tbl, err := inventory.NewItemTable(inv, s.loader, opts)
	if err != nil {
		return err
	}
	if err := view.apply(tbl); err != nil {
		return err
	}
	ids := tbl.SelectFirst(n)
	if len(ids) == 0 {
		return errors.New("no matching items")
	}
	if f := tbl.Footer(); f.Action != table.ActionReady {
		return fmt.Errorf("%s (%d selected, limit %d)", f.Action.Tooltip(), f.Selected, f.Limit)
	}

	if !yes {
		prompt := fmt.Sprintf("%s %d items", opts.Mode.Verb(), len(ids))
		if opts.Unit != nil {
			prompt += fmt.Sprintf(" (%s)", opts.Unit.UnitName())
		}
		ok, err := confirm(os.Stdin, os.Stdout, prompt+"?")
		if err != nil || !ok {
			return err
		}
	}

	bar = progress.NewBar(os.Stderr, len(ids), opts.Mode.Verb()+" Items")
	res, err := tbl.ProcessSelected(ctx)
	if err != nil {
		bar.Abort(err)
		return err
	}
	bar.Finish()
	s.log.Info().Int("items", res.Processed).Dur("duration", res.Duration).Msg(transferSummary(opts.Mode, res.Processed, opts.Unit))
	return nil
}

// runTransferTable shows the interactive table until the user quits.
func runTransferTable(ctx context.Context, s *session, inv *inventory.Inventory, opts inventory.ItemTableOptions, view tableView) error {
	var sink func(string, float64)
	opts.Progress = func(message string, fraction float64) {
		if sink != nil {
			sink(message, fraction)
		}
	}
	tbl, err := inventory.NewItemTable(inv, s.loader, opts)
	if err != nil {
		return err
	}
	if err := view.apply(tbl); err != nil {
		return err
	}

	model := tui.New[*inventory.Item](ctx, tbl, tui.Options{
		Proceed: func(ctx context.Context) (string, error) {
			res, err := tbl.ProcessSelected(ctx)
			if err != nil {
				return "", err
			}
			return transferSummary(opts.Mode, res.Processed, opts.Unit), nil
		},
		Cancel:       tbl.Cancel,
		Filter:       tbl.ApplyFilterText,
		FilterPrompt: tbl.FilterPrompt,
	})
	sink = model.Progress()

	if err := runProgram(ctx, s, model, func(ctx context.Context) { tbl.WatchStatus(ctx, s.bus) }); err != nil {
		return err
	}
	if msg := model.Status(); msg != "" {
		s.log.Info().Msg(msg)
	}
	if err := model.Err(); err != nil && !errors.Is(err, batch.ErrCancelled) {
		return err
	}
	if tbl.InventoryChanged() {
		s.log.Info().Msg("Inventory changed")
	}
	return nil
}

// runProgram runs model full screen next to the status poller. Log output
// is held back while the screen is owned by the program.
func runProgram(ctx context.Context, s *session, model tea.Model, watch func(context.Context)) error {
	out := s.log.Output()
	s.log.SetOutput(io.Discard)
	defer s.log.SetOutput(out)

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	if watch != nil {
		watch(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stop()
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(gctx))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return s.pollStatus(gctx, constants.StatusPollInterval)
	})
	return g.Wait()
}
