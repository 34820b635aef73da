// Package scraper collects products from retail listing pages and indexes
// them into the catalog store.
package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/amansour/techsouk/internal/catalog"
	"github.com/amansour/techsouk/internal/embedder"
)

// Browser-like headers; the retail sites reject default Go client requests.
var defaultHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language": "fr,fr-FR;q=0.8,en-US;q=0.5,en;q=0.3",
}

// SiteProfile describes how to scrape one retail site.
type SiteProfile struct {
	Name      string   // site label, stored as the product brand
	URLs      []string // category listing pages to paginate through
	PageParam string   // pagination query parameter
	Headless  bool     // render pages in a headless browser before parsing

	Container Selector // one product card
	NameSel   Selector // element holding the product name and link
	PriceSel  Selector // element holding the display price
	ImageSel  Selector // product image
}

// DefaultSites returns the scraping profiles for the supported retail sites.
func DefaultSites() []SiteProfile {
	return []SiteProfile{
		{
			Name: "Tunisianet",
			URLs: []string{
				"https://www.tunisianet.com.tn/596-smartphone-tunisie",
				"https://www.tunisianet.com.tn/376-telephonie-tablette",
				"https://www.tunisianet.com.tn/301-pc-portable-tunisie",
				"https://www.tunisianet.com.tn/650-smartwatch",
				"https://www.tunisianet.com.tn/462-telephone-fixe",
			},
			PageParam: "page",
			Container: Selector{Class: "item-product"},
			NameSel:   Selector{Tag: "h2", Class: "product-title"},
			PriceSel:  Selector{Tag: "span", Attrs: map[string]string{"itemprop": "price"}},
			ImageSel:  Selector{Tag: "img"},
		},
		{
			Name: "spacenet",
			URLs: []string{
				"https://spacenet.tn/193-lave-vaisselle-tunisie",
				"https://spacenet.tn/218-accessoires-gamer-tunisie",
				"https://spacenet.tn/221-clavier-gamer",
				"https://spacenet.tn/180-electromenager-cuisine",
				"https://spacenet.tn/8-imprimante-tunisie",
				"https://spacenet.tn/74-pc-portable-tunisie",
				"https://spacenet.tn/148-smartwatch-tunisie",
			},
			PageParam: "page",
			Container: Selector{Class: "product-miniature"},
			NameSel:   Selector{Tag: "a", Class: "product-title"},
			PriceSel:  Selector{Class: "price"},
			ImageSel:  Selector{Tag: "img"},
		},
	}
}

// Config holds the scraper dependencies and tunables.
type Config struct {
	Embedder   embedder.Embedder
	Indexer    catalog.Indexer
	Logger     *slog.Logger
	HTTPClient *http.Client

	// Delay between page fetches. Defaults to 2s.
	Delay time.Duration
	// MaxPages bounds pagination per listing URL. Defaults to 100.
	MaxPages int
	// BackupFile is where scraped products are saved as JSON before upload.
	BackupFile string
	// UpsertBatch is the indexing batch size. Defaults to 100.
	UpsertBatch int
}

// Scraper paginates retail listing pages, extracts products, and indexes
// them with name embeddings.
type Scraper struct {
	embedder   embedder.Embedder
	indexer    catalog.Indexer
	logger     *slog.Logger
	client     *http.Client
	delay      time.Duration
	maxPages   int
	backupFile string
	batchSize  int
}

// New creates a scraper from the given configuration.
func New(cfg Config) *Scraper {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	delay := cfg.Delay
	if delay <= 0 {
		delay = 2 * time.Second
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 100
	}
	backupFile := cfg.BackupFile
	if backupFile == "" {
		backupFile = "products_backup.json"
	}
	batchSize := cfg.UpsertBatch
	if batchSize <= 0 {
		batchSize = 100
	}

	return &Scraper{
		embedder:   cfg.Embedder,
		indexer:    cfg.Indexer,
		logger:     logger,
		client:     client,
		delay:      delay,
		maxPages:   maxPages,
		backupFile: backupFile,
		batchSize:  batchSize,
	}
}

// Run scrapes all sites, saves a JSON backup, and uploads the results.
// Returns the number of products scraped and the number uploaded.
func (s *Scraper) Run(ctx context.Context, sites []SiteProfile) (int, int, error) {
	var all []catalog.Product

	for _, site := range sites {
		products, err := s.ScrapeSite(ctx, site)
		if err != nil {
			return len(all), 0, err
		}
		all = append(all, products...)
	}

	if len(all) == 0 {
		s.logger.Warn("no products scraped")
		return 0, 0, nil
	}

	if err := s.SaveBackup(all); err != nil {
		s.logger.Warn("failed to save backup", slog.String("error", err.Error()))
	}

	uploaded, err := s.Upload(ctx, all)
	return len(all), uploaded, err
}

// ScrapeSite paginates through every listing URL of a site until a page
// yields no products.
func (s *Scraper) ScrapeSite(ctx context.Context, site SiteProfile) ([]catalog.Product, error) {
	var products []catalog.Product

	for _, baseURL := range site.URLs {
		for page := 1; page <= s.maxPages; page++ {
			if err := ctx.Err(); err != nil {
				return products, err
			}

			pageURL := fmt.Sprintf("%s?%s=%d", baseURL, site.PageParam, page)
			s.logger.Info("scraping page",
				slog.String("site", site.Name),
				slog.String("url", pageURL))

			found, err := s.ScrapePage(ctx, pageURL, site)
			if err != nil {
				s.logger.Warn("page fetch failed, stopping pagination",
					slog.String("url", pageURL),
					slog.String("error", err.Error()))
				break
			}
			if len(found) == 0 {
				s.logger.Info("empty page, stopping pagination", slog.String("url", pageURL))
				break
			}

			products = append(products, found...)
			s.logger.Info("page scraped",
				slog.String("site", site.Name),
				slog.Int("page", page),
				slog.Int("products", len(found)),
				slog.Int("total", len(products)))

			select {
			case <-time.After(s.delay):
			case <-ctx.Done():
				return products, ctx.Err()
			}
		}
	}

	return products, nil
}

// ScrapePage fetches one listing page and extracts its products.
func (s *Scraper) ScrapePage(ctx context.Context, pageURL string, site SiteProfile) ([]catalog.Product, error) {
	body, err := s.fetchHTML(ctx, pageURL, site.Headless)
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var products []catalog.Product
	for _, item := range findAll(doc, site.Container) {
		product, ok := extractProduct(item, pageURL, site)
		if !ok {
			continue
		}
		products = append(products, product)
	}

	return products, nil
}

// extractProduct pulls one product out of a listing card. Returns false if
// the card lacks a usable name or link.
func extractProduct(item *html.Node, pageURL string, site SiteProfile) (catalog.Product, bool) {
	nameNode := findFirst(item, site.NameSel)
	if nameNode == nil {
		// Fallback: any link with text
		nameNode = findFirst(item, Selector{Tag: "a"})
	}
	if nameNode == nil {
		return catalog.Product{}, false
	}

	// The name element may wrap the link rather than be one
	link := nameNode
	if link.Data != "a" {
		if link = findFirst(nameNode, Selector{Tag: "a"}); link == nil {
			return catalog.Product{}, false
		}
	}

	name := textContent(nameNode)
	if len(name) < 3 {
		return catalog.Product{}, false
	}
	href := absolutize(attrVal(link, "href"), pageURL)
	if href == "" {
		return catalog.Product{}, false
	}

	displayPrice := "0"
	priceNode := findFirst(item, site.PriceSel)
	if priceNode == nil {
		priceNode = findFirst(item, Selector{Attrs: map[string]string{"itemprop": "price"}})
	}
	if priceNode != nil {
		displayPrice = textContent(priceNode)
	}

	image := ""
	if imgNode := findFirst(item, site.ImageSel); imgNode != nil {
		image = absolutize(imageSrc(imgNode), pageURL)
	}

	product := catalog.Product{
		Name:         name,
		Brand:        site.Name,
		DisplayPrice: displayPrice,
		URL:          href,
		Image:        image,
		Category:     DetectCategory(name),
		Color:        DetectColor(name),
	}
	if price, err := catalog.ParsePrice(displayPrice); err == nil {
		product.Price = price
		product.HasPrice = true
	}
	return product, true
}

// fetchHTML retrieves a page, rendering it in a headless browser when the
// site requires JavaScript.
func (s *Scraper) fetchHTML(ctx context.Context, pageURL string, headless bool) (string, error) {
	if headless {
		return s.fetchRendered(ctx, pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range defaultHeaders {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, pageURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	return string(body), nil
}

// fetchRendered loads the page in headless Chrome and returns the rendered
// document.
func (s *Scraper) fetchRendered(ctx context.Context, pageURL string) (string, error) {
	browserCtx, cancel := chromedp.NewContext(ctx)
	defer cancel()

	headers := make(network.Headers, len(defaultHeaders))
	for key, value := range defaultHeaders {
		headers[key] = value
	}

	var rendered string
	err := chromedp.Run(browserCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(headers),
		chromedp.Navigate(pageURL),
		chromedp.OuterHTML("html", &rendered),
	)
	if err != nil {
		return "", fmt.Errorf("failed to render page: %w", err)
	}
	return rendered, nil
}

// SaveBackup writes the scraped products to the backup JSON file.
func (s *Scraper) SaveBackup(products []catalog.Product) error {
	data, err := json.MarshalIndent(products, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal products: %w", err)
	}
	if err := os.WriteFile(s.backupFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	s.logger.Info("backup saved",
		slog.String("file", s.backupFile),
		slog.Int("products", len(products)))
	return nil
}

// LoadBackup reads products from the backup JSON file, for re-uploading
// without re-scraping.
func (s *Scraper) LoadBackup() ([]catalog.Product, error) {
	data, err := os.ReadFile(s.backupFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}
	var products []catalog.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("failed to unmarshal backup: %w", err)
	}
	return products, nil
}

// Upload embeds product names and indexes the entries. Point IDs derive
// from the product URL, so re-scraping updates in place.
func (s *Scraper) Upload(ctx context.Context, products []catalog.Product) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}

	if err := s.indexer.EnsureCollection(ctx, s.embedder.Dimension()); err != nil {
		return 0, fmt.Errorf("failed to ensure collection: %w", err)
	}

	names := make([]string, len(products))
	for i, p := range products {
		names[i] = p.Name
	}
	vectors, err := s.embedder.EmbedTextBatch(ctx, names)
	if err != nil {
		return 0, fmt.Errorf("failed to embed product names: %w", err)
	}

	entries := make([]catalog.Entry, len(products))
	for i, p := range products {
		entries[i] = catalog.Entry{
			ID:      uuid.NewSHA1(uuid.NameSpaceURL, []byte(p.URL)).String(),
			Vector:  vectors[i],
			Product: p,
		}
	}

	total := 0
	for start := 0; start < len(entries); start += s.batchSize {
		end := start + s.batchSize
		if end > len(entries) {
			end = len(entries)
		}
		if err := s.indexer.Upsert(ctx, entries[start:end]); err != nil {
			return total, fmt.Errorf("failed to upsert batch: %w", err)
		}
		total += end - start
	}

	s.logger.Info("products uploaded", slog.Int("count", total))
	return total, nil
}
