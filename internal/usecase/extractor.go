package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/user/soldprice-service/internal/adapter/retrying"
	"github.com/user/soldprice-service/internal/entity"
	"github.com/user/soldprice-service/internal/repository"
	"github.com/user/soldprice-service/pkg/money"
	"github.com/user/soldprice-service/pkg/utils"
)

// ErrStructure reports that a results page no longer has the shape the
// selectors expect. It is fatal for the item-variant being extracted.
var ErrStructure = errors.New("unexpected page structure")

// MaxPages bounds pagination when the next-page control misbehaves.
const MaxPages = 100

const saleDateLayout = "2 Jan 2006"

// Selectors locate the marketplace controls and result fields.
type Selectors struct {
	SearchBox     repository.Locator
	SubmitButtons []repository.Locator
	PageSize      repository.Locator
	SoldFilter    repository.Locator
	GradeFilter   repository.Locator
	ResultRows    repository.Locator
	ListingClass  string
	EndOfResults  string
	SaleDate      repository.Locator
	SalePrefix    string
	Title         repository.Locator
	Price         repository.Locator
	Link          repository.Locator
	FormatRow     repository.Locator
	OfferRow      repository.Locator
	NextPage      repository.Locator
}

// DefaultSelectors returns the selectors for the current marketplace markup.
func DefaultSelectors() Selectors {
	return Selectors{
		SearchBox:     "#gh-ac",
		SubmitButtons: []repository.Locator{"#gh-btn", "#gh-search-btn"},
		PageSize:      "#srp-ipp-menu-content li:last-child a",
		SoldFilter:    "input[type=checkbox][aria-label='Sold items']",
		GradeFilter:   "li[name=Grade] input[type=checkbox][aria-label='Not specified']",
		ResultRows:    "ul.srp-results > li",
		ListingClass:  "s-card",
		EndOfResults:  "Results matching fewer words",
		SaleDate:      ".s-card__caption",
		SalePrefix:    "Sold ",
		Title:         "a > div.s-card__title span",
		Price:         ".s-card__price",
		Link:          ".su-card-container__header a",
		FormatRow:     ".su-card-container__attributes__primary .s-card__attribute-row:nth-child(2)",
		OfferRow:      ".su-card-container__attributes__primary .s-card__attribute-row:nth-child(3)",
		NextPage:      "a.pagination__next",
	}
}

// ExtractState is the stage an extraction ended in.
type ExtractState string

const (
	StateSearching    ExtractState = "searching"
	StatePageLoaded   ExtractState = "page_loaded"
	StateFiltering    ExtractState = "filtering"
	StateNextPage     ExtractState = "next_page"
	StateDone         ExtractState = "done"
	StateEarlyStopped ExtractState = "early_stopped"
)

// ExtractorConfig configures an Extractor.
type ExtractorConfig struct {
	BaseURL   string
	Currency  *money.Currency
	Selectors Selectors
	Retry     retrying.Policy
	MaxPages  int
}

// Extraction is the outcome of one item-variant.
type Extraction struct {
	Listings []entity.Listing
	State    ExtractState
	Pages    int
}

// Extractor drives a browser session through the marketplace search for one
// item-variant and classifies the sold listings it finds.
type Extractor struct {
	cfg    ExtractorConfig
	base   *url.URL
	logger *zap.Logger
}

// NewExtractor validates cfg and fills in defaults.
func NewExtractor(cfg ExtractorConfig, logger *zap.Logger) (*Extractor, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid marketplace url %q", cfg.BaseURL)
	}
	if cfg.Currency == nil {
		cfg.Currency = money.GBP
	}
	if cfg.MaxPages <= 0 || cfg.MaxPages > MaxPages {
		cfg.MaxPages = MaxPages
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = retrying.DefaultPolicy
	}
	if cfg.Selectors.SearchBox == "" {
		cfg.Selectors = DefaultSelectors()
	}
	return &Extractor{cfg: cfg, base: base, logger: logger}, nil
}

// Extract searches for item and returns its sold listings newest first. A
// non-nil watermark stops extraction at the first listing sold strictly
// before it.
func (e *Extractor) Extract(ctx context.Context, session repository.Session, item entity.CatalogItem, watermark *time.Time) (*Extraction, error) {
	sel := e.cfg.Selectors
	required := retrying.Wrap(session, e.cfg.Retry)
	log := e.logger.With(zap.String("item", item.Key().String()))

	if err := e.search(ctx, session, required, item.SearchText()); err != nil {
		return nil, err
	}

	out := &Extraction{State: StatePageLoaded}
	for {
		out.Pages++
		rows, err := required.FindAll(ctx, sel.ResultRows)
		if err != nil {
			return nil, fmt.Errorf("result rows: %w", err)
		}

		out.State = StateFiltering
		for _, row := range rows {
			listing, stop, err := e.readRow(ctx, retrying.Unwrap(row), item, watermark, log)
			if err != nil {
				return nil, err
			}
			if stop != "" {
				out.State = stop
				log.Debug("extraction stopped", zap.String("state", string(stop)), zap.Int("listings", len(out.Listings)))
				return out, nil
			}
			if listing != nil {
				out.Listings = append(out.Listings, *listing)
			}
		}

		next, err := session.FindOne(ctx, sel.NextPage)
		if errors.Is(err, repository.ErrElementNotFound) {
			out.State = StateDone
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("next page control: %w", err)
		}
		if out.Pages >= e.cfg.MaxPages {
			log.Warn("pagination limit reached", zap.Int("pages", out.Pages))
			out.State = StateDone
			return out, nil
		}
		out.State = StateNextPage
		if err := next.Click(ctx); err != nil {
			return nil, fmt.Errorf("next page: %w", err)
		}
	}
}

// search types the query, submits it and applies the result filters.
func (e *Extractor) search(ctx context.Context, session, required repository.Session, text string) error {
	sel := e.cfg.Selectors

	if err := session.Navigate(ctx, e.cfg.BaseURL); err != nil {
		return fmt.Errorf("open marketplace: %w", err)
	}
	box, err := required.FindOne(ctx, sel.SearchBox)
	if err != nil {
		return fmt.Errorf("search box: %w", err)
	}
	if err := box.SendKeys(ctx, text); err != nil {
		return fmt.Errorf("type search text: %w", err)
	}

	submitted := false
	for _, loc := range sel.SubmitButtons {
		btn, err := session.FindOne(ctx, loc)
		if errors.Is(err, repository.ErrElementNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("submit button %s: %w", loc, err)
		}
		if err := btn.Click(ctx); err != nil {
			return fmt.Errorf("submit search: %w", err)
		}
		submitted = true
		break
	}
	if !submitted {
		return fmt.Errorf("submit button: %w", repository.ErrElementNotFound)
	}

	if ps, err := session.FindOne(ctx, sel.PageSize); err == nil {
		href, ok, err := ps.Attribute(ctx, "href")
		if err != nil {
			return fmt.Errorf("page size link: %w", err)
		}
		if ok && href != "" {
			if err := session.Navigate(ctx, href); err != nil {
				return fmt.Errorf("page size: %w", err)
			}
		}
	} else if !errors.Is(err, repository.ErrElementNotFound) {
		return fmt.Errorf("page size control: %w", err)
	}

	sold, err := required.FindOne(ctx, sel.SoldFilter)
	if err != nil {
		return fmt.Errorf("sold filter: %w", err)
	}
	if err := sold.Click(ctx); err != nil {
		return fmt.Errorf("apply sold filter: %w", err)
	}

	if grade, err := session.FindOne(ctx, sel.GradeFilter); err == nil {
		if err := grade.Click(ctx); err != nil {
			return fmt.Errorf("apply grade filter: %w", err)
		}
	} else if !errors.Is(err, repository.ErrElementNotFound) {
		return fmt.Errorf("grade filter: %w", err)
	}
	return nil
}

// readRow classifies one result row. It returns a listing to keep, or a
// terminal state when extraction must end at this row.
func (e *Extractor) readRow(ctx context.Context, row repository.Element, item entity.CatalogItem, watermark *time.Time, log *zap.Logger) (*entity.Listing, ExtractState, error) {
	sel := e.cfg.Selectors

	class, ok, err := row.Attribute(ctx, "class")
	if err != nil {
		return nil, "", fmt.Errorf("row class: %w", err)
	}
	if !ok || !hasClass(class, sel.ListingClass) {
		text, err := row.Text(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("row text: %w", err)
		}
		if strings.TrimSpace(text) == sel.EndOfResults {
			return nil, StateDone, nil
		}
		return nil, "", nil
	}

	r := retrying.WrapElement(row, e.cfg.Retry)

	dateText, err := textOf(ctx, r, sel.SaleDate)
	if err != nil {
		return nil, "", fmt.Errorf("sale date: %w", err)
	}
	saleDate, err := time.Parse(saleDateLayout, strings.TrimPrefix(dateText, sel.SalePrefix))
	if err != nil {
		return nil, "", fmt.Errorf("%w: sale date %q: %v", ErrStructure, dateText, err)
	}
	if watermark != nil && saleDate.Before(*watermark) {
		return nil, StateEarlyStopped, nil
	}

	title, err := textOf(ctx, r, sel.Title)
	if err != nil {
		return nil, "", fmt.Errorf("title: %w", err)
	}
	if !TitleMatchesName(title, item.DisplayName) {
		log.Debug("title does not name the item", zap.String("title", title))
		return nil, "", nil
	}
	if !TitleMatchesVariant(title, item.Variant) {
		log.Debug("title names another variant", zap.String("title", title))
		return nil, "", nil
	}

	priceText, err := textOf(ctx, r, sel.Price)
	if err != nil {
		return nil, "", fmt.Errorf("price: %w", err)
	}
	price, err := money.Parse(priceText, e.cfg.Currency)
	if err != nil {
		log.Debug("skipping unparseable price", zap.String("price", priceText), zap.Error(err))
		return nil, "", nil
	}

	link, err := r.FindOne(ctx, sel.Link)
	if err != nil {
		return nil, "", fmt.Errorf("listing link: %w", err)
	}
	href, _, err := link.Attribute(ctx, "href")
	if err != nil {
		return nil, "", fmt.Errorf("listing link: %w", err)
	}
	id, err := utils.ParseListingID(href)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrStructure, err)
	}
	clean, _, _ := strings.Cut(href, "?")
	if abs, err := utils.ToAbsoluteURL(e.base, clean); err == nil {
		clean = abs
	}

	formatText, err := textOf(ctx, r, sel.FormatRow)
	if err != nil {
		return nil, "", fmt.Errorf("buying format: %w", err)
	}
	offerText := ""
	if offer, err := row.FindOne(ctx, sel.OfferRow); err == nil {
		if offerText, err = offer.Text(ctx); err != nil {
			return nil, "", fmt.Errorf("offer row: %w", err)
		}
	} else if !errors.Is(err, repository.ErrElementNotFound) {
		return nil, "", fmt.Errorf("offer row: %w", err)
	}
	format, err := ParseBuyingFormat(formatText, offerText)
	if err != nil {
		return nil, "", err
	}

	return &entity.Listing{
		ExternalID: id,
		Title:      title,
		SaleDate:   saleDate,
		Price:      price,
		URL:        clean,
		Format:     format,
	}, "", nil
}

func textOf(ctx context.Context, root repository.Element, loc repository.Locator) (string, error) {
	el, err := root.FindOne(ctx, loc)
	if err != nil {
		return "", err
	}
	text, err := el.Text(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func hasClass(classAttr, class string) bool {
	for _, c := range strings.Fields(classAttr) {
		if c == class {
			return true
		}
	}
	return false
}

// TitleMatchesName reports whether a listing title names the item, either
// verbatim or by containing every word of its name.
func TitleMatchesName(title, name string) bool {
	t := foldTitle(title)
	n := foldTitle(name)
	if strings.Contains(t, n) {
		return true
	}
	for _, word := range strings.Fields(n) {
		if !strings.Contains(t, word) {
			return false
		}
	}
	return true
}

// TitleMatchesVariant applies the per-variant word rules. A Regular title must
// not mention "reverse". A Reverse Holo title must mention "reverse" or "holo"
// and must not mention "regular". Holo titles are not filtered.
func TitleMatchesVariant(title string, v entity.Variant) bool {
	t := strings.ToLower(title)
	switch v {
	case entity.VariantRegular:
		return !containsAny(t, "reverse holo", "reverse")
	case entity.VariantReverseHolo:
		if strings.Contains(t, "regular") {
			return false
		}
		return containsAny(t, "reverse holo", "holo", "reverse")
	default:
		return true
	}
}

// foldTitle lower-cases s and strips accents, so "Flabebe" matches "Flabébé".
func foldTitle(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// ParseBuyingFormat reads the second attribute row of a listing card. For
// auctions the third row, when present, tells whether an offer was accepted.
func ParseBuyingFormat(primary, secondary string) (entity.BuyingFormat, error) {
	switch strings.TrimSpace(primary) {
	case "Buy It Now":
		return entity.FixedPrice(false, false), nil
	case "or Best Offer":
		return entity.FixedPrice(true, false), nil
	case "Best Offer accepted":
		return entity.FixedPrice(true, true), nil
	}

	fields := strings.Fields(primary)
	if len(fields) == 0 {
		return entity.BuyingFormat{}, fmt.Errorf("%w: empty buying format", ErrStructure)
	}
	bids, err := strconv.Atoi(fields[0])
	if err != nil || bids < 0 {
		return entity.BuyingFormat{}, fmt.Errorf("%w: buying format %q", ErrStructure, primary)
	}
	return entity.Auction(bids, strings.TrimSpace(secondary) == "Best Offer accepted"), nil
}
