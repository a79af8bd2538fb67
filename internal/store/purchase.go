package store

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/cs2interlink/cs2-int/internal/constants"
	"github.com/cs2interlink/cs2-int/internal/logging"
	"github.com/cs2interlink/cs2-int/internal/worker"
)

var (
	// ErrInvalidQuantity is returned for a quantity outside 1..MaxPurchaseQuantity.
	ErrInvalidQuantity = fmt.Errorf("quantity must be between 1 and %d", constants.MaxPurchaseQuantity)
	// ErrNoPurchaseURL means the interface answered without a checkout URL.
	ErrNoPurchaseURL = errors.New("Failed to get purchase URL")
)

// Sender is the subset of the ASF client a Purchaser uses.
type Sender interface {
	Send(ctx context.Context, operation, path, method, target string, data map[string]string) (json.RawMessage, error)
}

// Purchaser starts store purchases for one bot.
type Purchaser struct {
	svc Sender
	bot string
	log *logging.Logger
}

// NewPurchaser creates a Purchaser. log may be nil.
func NewPurchaser(svc Sender, bot string, log *logging.Logger) *Purchaser {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Purchaser{svc: svc, bot: bot, log: log}
}

type purchaseResponse struct {
	PurchaseURL string `json:"PurchaseUrl"`
}

// InitializePurchase asks the interface to open a checkout for quantity of
// it and returns the checkout URL. The request runs on a one-slot queue so
// a cancelled ctx drops it before it is sent.
func (p *Purchaser) InitializePurchase(ctx context.Context, it *Item, quantity int) (string, error) {
	if quantity < 1 || quantity > constants.MaxPurchaseQuantity {
		return "", ErrInvalidQuantity
	}

	params := map[string]string{
		"itemID":   strconv.Itoa(it.ID),
		"quantity": strconv.Itoa(quantity),
		"cost":     strconv.FormatInt(it.Price*int64(quantity), 10),
	}
	if it.SupplementalData != "" {
		params["supplementalData"] = it.SupplementalData
	}

	var (
		url  string
		werr error
	)
	q := worker.New(worker.Options{Concurrency: worker.Fixed(1), Logger: p.log})
	q.Add(func(ctx context.Context) error {
		raw, err := p.svc.Send(ctx, "CS2Interface", "InitializePurchase", nethttp.MethodGet, p.bot, params)
		if err != nil {
			werr = fmt.Errorf("failed to initialize purchase: %w", err)
			return werr
		}
		var resp purchaseResponse
		if err := json.Unmarshal(raw, &resp); err != nil || resp.PurchaseURL == "" {
			werr = ErrNoPurchaseURL
			return werr
		}
		url = resp.PurchaseURL
		return nil
	})
	q.Run(ctx)
	if err := q.Finish(ctx); err != nil {
		return "", err
	}
	if werr != nil {
		return "", werr
	}
	if url == "" {
		// the queue stopped before the task ran
		return "", ctx.Err()
	}

	p.log.Info().Str("bot", p.bot).Str("item", it.Name).Int("quantity", quantity).Msg("Purchase initialized")
	return url, nil
}
