// dropctl is a CLI for exercising a running dropship gateway.
// Each command performs a single call, making it composable for scripts.
//
// Commands:
//
//	dropctl shipping -product ID -country CC [-variant ID]
//	dropctl cart -country CC -item PID[:VID]:QTY:PRICE [-item ...]
//	dropctl stock (-product ID | -variant ID | -sku SKU)
//	dropctl token
//	dropctl import -product ID
//
// Examples:
//
//	dropctl shipping -gateway http://localhost:8080 -product 1424608189734850560 -country US
//	dropctl cart -country DE -item P1:V1:2:10.00 -item P2::1:4.50
//	dropctl stock -sku CJNSSYWY01847-Black-L -q
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dropship-gateway/internal/catalog"
	"dropship-gateway/internal/dropship"
	"dropship-gateway/internal/handler"
	"dropship-gateway/internal/model"
)

var client = &http.Client{Timeout: 2 * time.Minute}

// Global flags (apply to all commands)
var (
	gatewayURL string
	quiet      bool
	noColor    bool
	verbose    bool
)

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
	if env := os.Getenv("DROPCTL_GATEWAY"); env != "" {
		gatewayURL = env
	}
}

func disableColors() {
	colorReset, colorRed, colorGreen, colorYellow = "", "", "", ""
	colorBlue, colorCyan, colorGray, colorBold = "", "", "", ""
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "shipping":
		runShipping(args)
	case "cart":
		runCart(args)
	case "stock":
		runStock(args)
	case "token":
		runToken(args)
	case "import":
		runImport(args)
	case "-h", "-help", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `dropctl - dropship gateway client

Usage:
  dropctl <command> [options]

Commands:
  shipping  Quote shipping for one product to a country
  cart      Group a cart by origin warehouse and price each group
  stock     Show per-warehouse stock for a product, variant or SKU
  token     Show the provider session (token masked)
  import    Import a provider product into the catalog

The gateway URL defaults to $DROPCTL_GATEWAY or http://localhost:8080.
Run 'dropctl <command> -h' for command-specific options.
`)
}

// newFlagSet registers the flags every command shares.
func newFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	defaultURL := gatewayURL
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}
	fs.StringVar(&gatewayURL, "gateway", defaultURL, "Gateway base URL")
	fs.BoolVar(&quiet, "q", false, "Quiet mode - only print the result")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&verbose, "v", false, "Verbose - show full request/response")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: dropctl %s %s\n\nOptions:\n", name, usage)
		fs.PrintDefaults()
	}
	return fs
}

// parseFlags parses args and applies the color setting.
func parseFlags(fs *flag.FlagSet, args []string) {
	fs.Parse(args)
	if noColor {
		disableColors()
	}
}

// =============================================================================
// SHIPPING COMMAND
// =============================================================================

func runShipping(args []string) {
	fs := newFlagSet("shipping", "-product ID -country CC [options]")
	var productID, country, variantID string
	fs.StringVar(&productID, "product", "", "Product ID (required)")
	fs.StringVar(&country, "country", "", "Destination ISO country code (required)")
	fs.StringVar(&variantID, "variant", "", "Variant ID (default: first available)")
	parseFlags(fs, args)

	if productID == "" || country == "" {
		fs.Usage()
		os.Exit(1)
	}

	q := url.Values{}
	q.Set("product_id", productID)
	q.Set("country", strings.ToUpper(country))
	if variantID != "" {
		q.Set("variant_id", variantID)
	}

	var result model.ShippingResult
	if err := doRequest(http.MethodGet, "/shipping/check?"+q.Encode(), nil, &result); err != nil {
		fatal("Shipping check failed: %v", err)
	}

	if !result.Shippable {
		if quiet {
			fmt.Println("not_shippable")
			return
		}
		printWarning("Not shippable: %s", result.Reason)
		return
	}

	cheapest, _ := result.Cheapest()
	if quiet {
		fmt.Printf("%s\t%s\n", cheapest.CarrierName, cheapest.Freight)
		return
	}

	printSuccess("%d shipping option(s)", len(result.Quotes))
	for _, quote := range result.Quotes {
		marker := " "
		if quote == cheapest {
			marker = colorGreen + "*" + colorReset
		}
		fmt.Printf(" %s %-24s %s%10s %s%s  %s\n", marker, quote.CarrierName,
			colorCyan, quote.Freight.StringFixed(2), quote.Currency, colorReset, quote.TransitTime)
		if quote.Warning != "" {
			fmt.Printf("   %s%s%s\n", colorYellow, quote.Warning, colorReset)
		}
	}
}

// =============================================================================
// CART COMMAND
// =============================================================================

// itemList collects repeated -item flags.
type itemList []model.CartItem

func (l *itemList) String() string {
	parts := make([]string, len(*l))
	for i, item := range *l {
		parts[i] = fmt.Sprintf("%s:%s:%d:%s", item.ProductID, item.VariantID, item.Quantity, item.UnitPrice)
	}
	return strings.Join(parts, ",")
}

func (l *itemList) Set(value string) error {
	item, err := parseItem(value)
	if err != nil {
		return err
	}
	*l = append(*l, item)
	return nil
}

// parseItem reads PID:QTY:PRICE or PID:VID:QTY:PRICE. An empty VID is allowed.
func parseItem(value string) (model.CartItem, error) {
	parts := strings.Split(value, ":")
	var item model.CartItem
	switch len(parts) {
	case 3:
		item.ProductID = parts[0]
	case 4:
		item.ProductID, item.VariantID = parts[0], parts[1]
		parts = append(parts[:1], parts[2:]...)
	default:
		return item, fmt.Errorf("item %q: want PID[:VID]:QTY:PRICE", value)
	}
	if item.ProductID == "" {
		return item, fmt.Errorf("item %q: product id is empty", value)
	}

	qty, err := strconv.Atoi(parts[1])
	if err != nil || qty <= 0 {
		return item, fmt.Errorf("item %q: quantity must be a positive integer", value)
	}
	item.Quantity = qty

	price, err := decimal.NewFromString(parts[2])
	if err != nil {
		return item, fmt.Errorf("item %q: invalid price: %w", value, err)
	}
	if price.IsNegative() {
		return item, fmt.Errorf("item %q: price must not be negative", value)
	}
	item.UnitPrice = price
	return item, nil
}

func runCart(args []string) {
	fs := newFlagSet("cart", "-country CC -item PID[:VID]:QTY:PRICE [-item ...]")
	var country string
	var items itemList
	fs.StringVar(&country, "country", "", "Destination ISO country code (required)")
	fs.Var(&items, "item", "Cart line as PID[:VID]:QTY:PRICE (repeatable)")
	parseFlags(fs, args)

	if country == "" || len(items) == 0 {
		fs.Usage()
		os.Exit(1)
	}

	body := handler.ShippingGroupsRequest{Destination: strings.ToUpper(country), Items: items}
	var resp handler.ShippingGroupsResponse
	if err := doRequest(http.MethodPost, "/cart/shipping-groups", body, &resp); err != nil {
		fatal("Grouping failed: %v", err)
	}

	grand := decimal.Zero
	for _, g := range resp.Groups {
		grand = grand.Add(g.Total)
	}

	if quiet {
		for _, g := range resp.Groups {
			fmt.Printf("%s\t%s\t%s\t%s\n", g.OriginCountry, g.Subtotal, g.ShippingCost, g.Total)
		}
		return
	}

	printSuccess("%d origin group(s)", len(resp.Groups))
	for _, g := range resp.Groups {
		fmt.Printf("\n  %sShips from %s%s\n", colorBold, g.OriginCountry, colorReset)
		for _, item := range g.Items {
			fmt.Printf("    %d × %s %s@ %s%s\n", item.Quantity, item.ProductID, colorGray, item.UnitPrice, colorReset)
		}
		fmt.Printf("    Subtotal: %s\n", g.Subtotal.StringFixed(2))
		if !g.Shippable {
			fmt.Printf("    %sNot shippable: %s%s\n", colorYellow, g.Reason, colorReset)
			continue
		}
		carrier := g.Carrier
		if carrier == "" {
			carrier = "local"
		}
		fmt.Printf("    Shipping: %s (%s %s)\n", g.ShippingCost.StringFixed(2), carrier, g.TransitTime)
		fmt.Printf("    Total:    %s%s%s\n", colorCyan, g.Total.StringFixed(2), colorReset)
	}
	fmt.Printf("\n  %sGrand total: %s%s\n", colorBold, grand.StringFixed(2), colorReset)
}

// =============================================================================
// STOCK COMMAND
// =============================================================================

func runStock(args []string) {
	fs := newFlagSet("stock", "(-product ID | -variant ID | -sku SKU) [options]")
	var productID, variantID, sku string
	fs.StringVar(&productID, "product", "", "Product ID")
	fs.StringVar(&variantID, "variant", "", "Variant ID")
	fs.StringVar(&sku, "sku", "", "Variant SKU")
	parseFlags(fs, args)

	switch {
	case productID != "":
		var resp handler.VariantsResponse
		if err := doRequest(http.MethodGet, "/products/"+url.PathEscape(productID)+"/stock", nil, &resp); err != nil {
			fatal("Stock lookup failed: %v", err)
		}
		if !quiet {
			printSuccess("%d variant(s) of %s", len(resp.Variants), resp.ProductID)
		}
		for _, v := range resp.Variants {
			printStock(v.VariantID+" "+v.SKU, v.Stock)
		}
	case variantID != "":
		var stock model.VariantStock
		if err := doRequest(http.MethodGet, "/variants/"+url.PathEscape(variantID)+"/stock", nil, &stock); err != nil {
			fatal("Stock lookup failed: %v", err)
		}
		printStock(variantID, stock)
	case sku != "":
		var stock model.VariantStock
		if err := doRequest(http.MethodGet, "/skus/"+url.PathEscape(sku)+"/stock", nil, &stock); err != nil {
			fatal("Stock lookup failed: %v", err)
		}
		printStock(sku, stock)
	default:
		fs.Usage()
		os.Exit(1)
	}
}

func printStock(label string, stock model.VariantStock) {
	if quiet {
		fmt.Printf("%s\t%d\n", strings.TrimSpace(label), stock.TotalStock)
		return
	}
	color := colorGreen
	if stock.TotalStock == 0 {
		color = colorRed
	}
	fmt.Printf("  %s%s%s: %s%d%s\n", colorBold, strings.TrimSpace(label), colorReset, color, stock.TotalStock, colorReset)
	for _, w := range stock.PerWarehouse {
		verified := ""
		if w.Verified {
			verified = " verified"
		}
		fmt.Printf("    %s %6d %s(provider %d, factory %d%s)%s\n",
			w.CountryCode, w.TotalQty, colorGray, w.ProviderQty, w.FactoryQty, verified, colorReset)
	}
}

// =============================================================================
// TOKEN AND IMPORT COMMANDS
// =============================================================================

func runToken(args []string) {
	fs := newFlagSet("token", "[options]")
	parseFlags(fs, args)

	var status dropship.TokenStatus
	if err := doRequest(http.MethodGet, "/provider/token", nil, &status); err != nil {
		fatal("Token check failed: %v", err)
	}

	if quiet {
		fmt.Println(status.ExpiresAt.Format(time.RFC3339))
		return
	}
	printSuccess("Provider session valid")
	fmt.Printf("  Token:   %s\n", status.Token)
	fmt.Printf("  Tier:    %s\n", status.Tier)
	fmt.Printf("  Expires: %s%s%s (in %s)\n", colorCyan, status.ExpiresAt.Format(time.RFC3339), colorReset,
		time.Until(status.ExpiresAt).Round(time.Minute))
}

func runImport(args []string) {
	fs := newFlagSet("import", "-product ID [options]")
	var productID string
	fs.StringVar(&productID, "product", "", "Provider product ID (required)")
	parseFlags(fs, args)

	if productID == "" {
		fs.Usage()
		os.Exit(1)
	}

	var product catalog.Product
	if err := doRequest(http.MethodPost, "/products/"+url.PathEscape(productID)+"/import", nil, &product); err != nil {
		fatal("Import failed: %v", err)
	}

	if quiet {
		fmt.Println(product.ID)
		return
	}
	printSuccess("Imported %s", product.ID)
	fmt.Printf("  Name:     %s\n", product.Name)
	fmt.Printf("  Origin:   %s\n", catalog.OriginCountry(&product))
	fmt.Printf("  Variants: %d\n", len(product.Variants))
	for _, v := range product.Variants {
		fmt.Printf("    %-24s %s%s%s stock %d\n", v.ID, colorGray, v.SKU, colorReset, v.Stock)
	}
}

// =============================================================================
// HTTP
// =============================================================================

// doRequest sends body as JSON and decodes a 2xx response into out.
// Error responses are reported with the gateway's error code and message.
func doRequest(method, path string, body, out any) error {
	var reqBody io.Reader
	var reqJSON []byte

	if body != nil {
		var err error
		reqJSON, err = json.MarshalIndent(body, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(reqJSON)
	}

	req, err := http.NewRequest(method, strings.TrimSuffix(gatewayURL, "/")+path, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if verbose {
		printRequest(method, path, reqJSON)
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if verbose {
		printResponse(resp.StatusCode, respBody, duration)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error model.APIError `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Code != "" {
			return fmt.Errorf("HTTP %d %s: %s", resp.StatusCode, errResp.Error.Code, errResp.Error.Message)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func printRequest(method, path string, body []byte) {
	fmt.Printf("%s→ %s %s%s\n", colorBlue, method, path, colorReset)
	if len(body) > 0 {
		printJSON(body, "  ")
	}
}

func printResponse(status int, body []byte, duration time.Duration) {
	color := colorGreen
	if status >= 400 {
		color = colorRed
	}
	fmt.Printf("%s← %d%s %s(%s)%s\n", color, status, colorReset, colorGray, duration.Round(time.Millisecond), colorReset)
	printJSON(body, "  ")
}

func printJSON(data []byte, prefix string) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, prefix, "  "); err != nil {
		fmt.Printf("%s%s\n", prefix, string(data))
		return
	}
	fmt.Println(prefix + pretty.String())
}

func printSuccess(format string, args ...any) {
	fmt.Printf("%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
}

func printWarning(format string, args ...any) {
	fmt.Printf("%s! %s%s\n", colorYellow, fmt.Sprintf(format, args...), colorReset)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
	os.Exit(1)
}
