package cli

import (
	"context"
	"fmt"
	"io"
	nethttp "net/http"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cs2interlink/cs2-int/internal/config"
	"github.com/cs2interlink/cs2-int/internal/http"
	"github.com/cs2interlink/cs2-int/internal/inventory"
	"github.com/cs2interlink/cs2-int/internal/logging"
	"github.com/cs2interlink/cs2-int/internal/progress"
	"github.com/cs2interlink/cs2-int/internal/store"
	"github.com/cs2interlink/cs2-int/internal/tui"
	"github.com/cs2interlink/cs2-int/internal/version"
)

// newStoreCmd creates the 'store' command group.
func newStoreCmd() *cobra.Command {
	var (
		priceSheet string
		tournament string
		quantity   int
	)

	storeCmd := &cobra.Command{
		Use:   "store",
		Short: "Browse and buy from the in-game store",
		Long: `Browse the Counter-Strike 2 store in a table and start a purchase.

Without a subcommand the store table opens:
  tab/shift+tab switch tabs, / search names, t search teams (souvenirs),
  space select, enter start the purchase, q quit.

The price sheet and tournament layout come from [store] in the
configuration or from --price-sheet and --tournament (file or URL).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !progress.IsTerminal(os.Stdout) {
				return fmt.Errorf("the store table needs a terminal; use 'store list' and 'store buy'")
			}
			ctx := GetContext()
			s, items, money, err := openStore(ctx, priceSheet, tournament)
			if err != nil {
				return err
			}
			defer s.Close()
			return runStoreTable(ctx, s, items, money, quantity)
		},
	}

	storeCmd.PersistentFlags().StringVar(&priceSheet, "price-sheet", "", "Price sheet file or URL (overrides config)")
	storeCmd.PersistentFlags().StringVar(&tournament, "tournament", "", "Tournament layout file or URL (overrides config)")
	storeCmd.Flags().IntVarP(&quantity, "quantity", "n", 1, "Quantity to buy")

	storeCmd.AddCommand(newStoreListCmd(&priceSheet, &tournament))
	storeCmd.AddCommand(newStoreBuyCmd(&priceSheet, &tournament))

	return storeCmd
}

type storeRecord struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type,omitempty" yaml:"type,omitempty"`
	Price    string `json:"price" yaml:"price"`
	Discount *int   `json:"discount,omitempty" yaml:"discount,omitempty"`
	Stage    string `json:"stage,omitempty" yaml:"stage,omitempty"`
	Teams    string `json:"teams,omitempty" yaml:"teams,omitempty"`
	Owned    int    `json:"owned" yaml:"owned"`
}

func (r storeRecord) cells() []string {
	discount := ""
	if r.Discount != nil {
		discount = fmt.Sprintf("-%d%%", *r.Discount)
	}
	return []string{r.ID, r.Name, r.Type, r.Price, discount, r.Stage, r.Teams, strconv.Itoa(r.Owned)}
}

func newStoreListCmd(priceSheet, tournament *string) *cobra.Command {
	var (
		tab    string
		search string
		output string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the store rows of one tab",
		Long: `Print the store rows of one tab in default order.

Tabs: general, tools, capsules, souvenirs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := store.ParseTab(tab)
			if err != nil {
				return err
			}
			ctx := GetContext()
			s, items, money, err := openStore(ctx, *priceSheet, *tournament)
			if err != nil {
				return err
			}
			defer s.Close()

			tbl := store.NewTable(items, money, store.TableOptions{ViewportRows: len(items)})
			tbl.SetTab(t)
			tbl.Search(search)

			rows := tbl.Visible()
			records := make([]storeRecord, len(rows))
			for i, it := range rows {
				r := storeRecord{
					ID:       it.RowID(),
					Name:     it.Name,
					Type:     it.Type,
					Price:    money.FormatCurrency(it.Price),
					Discount: it.Discount,
					Stage:    it.SectionName,
					Owned:    it.Owned,
				}
				if it.Team1 != "" {
					r.Teams = fmt.Sprintf("%s %d:%d %s", it.Team1, it.Team1Score, it.Team2Score, it.Team2)
				}
				records[i] = r
			}
			headers := []string{"ID", "Name", "Type", "Price", "Sale", "Stage", "Teams", "Owned"}
			return writeRecords(cmd.OutOrStdout(), output, headers, records, storeRecord.cells)
		},
	}

	cmd.Flags().StringVar(&tab, "tab", "general", "Store tab")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Only rows whose name contains every word")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table, json, yaml")

	return cmd
}

func newStoreBuyCmd(priceSheet, tournament *string) *cobra.Command {
	var (
		quantity int
		yes      bool
	)

	cmd := &cobra.Command{
		Use:   "buy <id>",
		Short: "Start a purchase and print the checkout URL",
		Long: `Start a purchase of the row with the given id, as printed by
'store list', and print the checkout URL. Souvenir package ids have the
form <def index>:<match id>.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			s, items, money, err := openStore(ctx, *priceSheet, *tournament)
			if err != nil {
				return err
			}
			defer s.Close()

			var target *store.Item
			for _, it := range items {
				if it.RowID() == args[0] {
					target = it
					break
				}
			}
			if target == nil {
				return fmt.Errorf("store item %q not found", args[0])
			}

			if !yes {
				q := fmt.Sprintf("Buy %d × %s for %s", quantity, target.Name, money.FormatCurrency(target.Price*int64(quantity)))
				ok, err := confirm(os.Stdin, os.Stdout, q+"?")
				if err != nil || !ok {
					return err
				}
			}

			url, err := store.NewPurchaser(s.client, s.bot.ASF.BotName, s.log).InitializePurchase(ctx, target, quantity)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}

	cmd.Flags().IntVarP(&quantity, "quantity", "n", 1, "Quantity to buy")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}

// openStore opens a session and builds the store rows, with owned counts
// from the inventory and every storage unit.
func openStore(ctx context.Context, priceSheet, tournament string) (*session, []*store.Item, *store.Formatter, error) {
	s, err := newSession(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	items, money, err := buildStore(ctx, s, priceSheet, tournament)
	if err != nil {
		s.Close()
		return nil, nil, nil, err
	}
	return s, items, money, nil
}

func buildStore(ctx context.Context, s *session, priceSheet, tournament string) ([]*store.Item, *store.Formatter, error) {
	if priceSheet == "" {
		priceSheet = s.cfg.Store.PriceSheet
	}
	if tournament == "" {
		tournament = s.cfg.Store.Tournament
	}
	if priceSheet == "" {
		return nil, nil, fmt.Errorf("no price sheet configured; set store.price_sheet or use --price-sheet")
	}

	money, err := store.NewFormatter(s.cfg.Store.Currency, s.cfg.Store.Country)
	if err != nil {
		return nil, nil, err
	}

	var sheet *store.PriceSheet
	err = readSource(ctx, s.cfg, s.log, priceSheet, func(r io.Reader) (err error) {
		sheet, err = store.DecodePriceSheet(r)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	var layout *store.Tournament
	if tournament != "" {
		err = readSource(ctx, s.cfg, s.log, tournament, func(r io.Reader) (err error) {
			layout, err = store.DecodeTournament(r)
			return err
		})
		if err != nil {
			return nil, nil, err
		}
	}

	items, err := store.Build(sheet, layout, money.Code())
	if err != nil {
		return nil, nil, err
	}

	inv, err := s.loadInventory(ctx, true)
	if err != nil {
		return nil, nil, err
	}
	store.MatchOwned(items, ownedItems(inv))
	return items, money, nil
}

func ownedItems(inv *inventory.Inventory) []store.OwnedItem {
	owned := make([]store.OwnedItem, 0, len(inv.Items)+len(inv.StoredItems))
	for _, list := range [][]*inventory.Item{inv.Items, inv.StoredItems} {
		for _, it := range list {
			owned = append(owned, store.OwnedItem{
				DefIndex:   it.ItemInfo.DefIndex,
				FullName:   it.FullName,
				Attributes: it.Attributes,
			})
		}
	}
	return owned
}

// readSource opens a local file or fetches an http(s) URL and hands the
// body to decode.
func readSource(ctx context.Context, cfg *config.Config, log *logging.Logger, src string, decode func(io.Reader) error) error {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		f, err := os.Open(src)
		if err != nil {
			return err
		}
		defer f.Close()
		return decode(f)
	}

	client, err := http.NewClient(cfg, log)
	if err != nil {
		return err
	}
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, src, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", src, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != nethttp.StatusOK {
		return fmt.Errorf("failed to fetch %s: %s", src, resp.Status)
	}
	return decode(resp.Body)
}

// runStoreTable shows the store table. Enter starts a purchase of the
// selected row and shows the checkout URL.
func runStoreTable(ctx context.Context, s *session, items []*store.Item, money *store.Formatter, quantity int) error {
	tbl := store.NewTable(items, money, store.TableOptions{ViewportRows: viewportRows()})
	purchaser := store.NewPurchaser(s.client, s.bot.ASF.BotName, s.log)

	tabs := make([]string, len(store.Tabs))
	for i, t := range store.Tabs {
		tabs[i] = t.String()
	}

	model := tui.New[*store.Item](ctx, tbl, tui.Options{
		Proceed: func(ctx context.Context) (string, error) {
			url, err := tbl.Purchase(ctx, purchaser, quantity)
			if err != nil {
				return "", err
			}
			return "Checkout: " + url, nil
		},
		Select:      tbl.Select,
		SearchTeams: tbl.SearchTeams,
		Tabs:        tabs,
		SetTab:      func(i int) { tbl.SetTab(store.Tabs[i]) },
	})

	if err := runProgram(ctx, s, model, nil); err != nil {
		return err
	}
	if msg := model.Status(); msg != "" {
		fmt.Println(msg)
	}
	if tbl.InventoryChanged() {
		s.log.Info().Msg("Purchase started; reload the inventory once it completes")
	}
	return model.Err()
}
