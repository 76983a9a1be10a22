package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shopspring/decimal"

	"futures_go/internal/app"
	"futures_go/internal/domain"
)

// command couples a CLI verb with its runner.
type command struct {
	name    string
	summary string
	run     func(ctx context.Context, b *app.Bootstrap, args []string) error
}

var commands = []command{
	{"place-order", "Submit a new order", runPlaceOrder},
	{"order-status", "Query an order by exchange ID", runOrderStatus},
	{"cancel-order", "Cancel an open order", runCancelOrder},
	{"account-balance", "Show funded asset balances", runAccountBalance},
	{"exchange-info", "Show trading rules for a symbol", runExchangeInfo},
	{"stream", "Follow live order updates", runStream},
}

func main() {
	if len(os.Args) < 2 || os.Args[1] == "help" || os.Args[1] == "-h" || os.Args[1] == "--help" {
		printUsage()
		if len(os.Args) < 2 {
			os.Exit(2)
		}
		return
	}

	name := os.Args[1]
	var cmd *command
	for i := range commands {
		if commands[i].name == name {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", name)
		printUsage()
		os.Exit(2)
	}

	// 1. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Shutdown()

	// 3. Exchange clock sync before any signed call
	bootstrap.StartTimeSync(ctx)

	// 4. Dispatch
	if err := cmd.run(ctx, bootstrap, os.Args[2:]); err != nil {
		slog.Error("❌ Command failed", slog.String("command", name), slog.Any("error", err))
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: futures_go <command> [flags]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-16s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(os.Stderr, "\nRun 'futures_go <command> -h' for command flags.\n")
}

func runPlaceOrder(ctx context.Context, b *app.Bootstrap, args []string) error {
	fs := flag.NewFlagSet("place-order", flag.ExitOnError)
	symbol := fs.String("symbol", "", "trading pair, e.g. BTCUSDT")
	side := fs.String("side", "", "BUY or SELL")
	orderType := fs.String("type", "", "MARKET, LIMIT, STOP_MARKET or STOP_LIMIT")
	quantity := fs.String("quantity", "", "order quantity in base asset")
	price := fs.String("price", "", "limit price (LIMIT and STOP_LIMIT)")
	stopPrice := fs.String("stop-price", "", "trigger price (STOP_MARKET and STOP_LIMIT)")
	tif := fs.String("tif", "", "time in force: GTC, IOC or FOK (default GTC)")
	fs.Parse(args)

	req := &domain.OrderRequest{
		Symbol:      normalize(*symbol),
		Side:        normalize(*side),
		Type:        normalize(*orderType),
		TimeInForce: normalize(*tif),
	}

	qty, err := parseDecimalFlag("quantity", *quantity)
	if err != nil {
		return err
	}
	if qty != nil {
		req.Quantity = *qty
	}
	if req.Price, err = parseDecimalFlag("price", *price); err != nil {
		return err
	}
	if req.StopPrice, err = parseDecimalFlag("stopPrice", *stopPrice); err != nil {
		return err
	}

	order, err := b.Orders.PlaceOrder(ctx, req)
	if err != nil {
		return err
	}
	printOrder(order)
	return nil
}

func runOrderStatus(ctx context.Context, b *app.Bootstrap, args []string) error {
	fs := flag.NewFlagSet("order-status", flag.ExitOnError)
	symbol := fs.String("symbol", "", "trading pair, e.g. BTCUSDT")
	orderID := fs.Int64("order-id", 0, "exchange order ID")
	fs.Parse(args)

	order, err := b.Orders.OrderStatus(ctx, normalize(*symbol), *orderID)
	if err != nil {
		return err
	}
	printOrder(order)
	return nil
}

func runCancelOrder(ctx context.Context, b *app.Bootstrap, args []string) error {
	fs := flag.NewFlagSet("cancel-order", flag.ExitOnError)
	symbol := fs.String("symbol", "", "trading pair, e.g. BTCUSDT")
	orderID := fs.Int64("order-id", 0, "exchange order ID")
	fs.Parse(args)

	order, err := b.Orders.CancelOrder(ctx, normalize(*symbol), *orderID)
	if err != nil {
		return err
	}
	printOrder(order)
	return nil
}

func runAccountBalance(ctx context.Context, b *app.Bootstrap, args []string) error {
	balances, err := b.Orders.AccountBalance(ctx)
	if err != nil {
		return err
	}
	printBalances(balances)
	return nil
}

func runExchangeInfo(ctx context.Context, b *app.Bootstrap, args []string) error {
	fs := flag.NewFlagSet("exchange-info", flag.ExitOnError)
	symbol := fs.String("symbol", "", "trading pair, e.g. BTCUSDT")
	refresh := fs.Bool("refresh", false, "force a refresh of the cached symbol set")
	fs.Parse(args)

	if *refresh {
		count, err := b.Market.Refresh(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Refreshed %d symbols\n", count)
		if *symbol == "" {
			return nil
		}
	}
	if *symbol == "" {
		return domain.NewValidationError("symbol", "symbol is required")
	}

	info, err := b.Market.SymbolInfo(ctx, normalize(*symbol))
	if err != nil {
		return err
	}
	printSymbolInfo(info)
	return nil
}

func runStream(ctx context.Context, b *app.Bootstrap, args []string) error {
	worker := b.NewUserStream(printOrderUpdate)
	if err := worker.Connect(ctx); err != nil {
		return err
	}
	defer worker.Disconnect()

	slog.Info("✨ Streaming order updates. Press Ctrl+C to exit.")
	<-ctx.Done()
	return nil
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// parseDecimalFlag converts a numeric flag, reporting bad input under
// the wire parameter name.
func parseDecimalFlag(name, value string) (*decimal.Decimal, error) {
	if value == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, domain.NewValidationError(name, "not a valid number: "+value)
	}
	return &d, nil
}

func printOrder(order *domain.Order) {
	line := strings.Repeat("=", 60)
	fmt.Println(line)
	fmt.Println("                        ORDER RESULT")
	fmt.Println(line)
	fmt.Printf("  Order ID     : %d\n", order.OrderID)
	fmt.Printf("  Symbol       : %s\n", order.Symbol)
	fmt.Printf("  Side         : %s\n", order.Side)
	fmt.Printf("  Type         : %s\n", order.Type)
	fmt.Printf("  Status       : %s\n", order.Status)
	fmt.Printf("  Quantity     : %s\n", order.Quantity)
	fmt.Printf("  Executed Qty : %s\n", order.ExecutedQty)
	if order.AvgPrice.IsPositive() {
		fmt.Printf("  Avg Price    : %s\n", order.AvgPrice)
	}
	if order.Price.IsPositive() {
		fmt.Printf("  Price        : %s\n", order.Price)
	}
	fmt.Printf("  Time         : %s\n", order.Timestamp.Format("2006-01-02 15:04:05 UTC"))
	fmt.Println(line)
}

func printBalances(balances []domain.BalanceSnapshot) {
	if len(balances) == 0 {
		fmt.Println("No funded assets.")
		return
	}
	fmt.Printf("%-8s %18s %18s\n", "ASSET", "BALANCE", "AVAILABLE")
	for _, b := range balances {
		fmt.Printf("%-8s %18s %18s\n", b.Asset, b.Balance.StringFixed(8), b.AvailableBalance.StringFixed(8))
	}
}

func printSymbolInfo(info *domain.SymbolInfo) {
	fmt.Printf("  Symbol             : %s\n", info.Symbol)
	fmt.Printf("  Status             : %s\n", info.Status)
	fmt.Printf("  Base / Quote       : %s / %s\n", info.BaseAsset, info.QuoteAsset)
	fmt.Printf("  Price Precision    : %d\n", info.PricePrecision)
	fmt.Printf("  Quantity Precision : %d\n", info.QuantityPrecision)
	fmt.Printf("  Tick Size          : %s\n", info.TickSize)
	fmt.Printf("  Step Size          : %s\n", info.StepSize)
	fmt.Printf("  Min Qty            : %s\n", info.MinQty)
}

func printOrderUpdate(update *domain.OrderUpdate) {
	fmt.Printf("[%s] %s %s %s %s  filled %s/%s",
		update.EventTime.Format("15:04:05"),
		update.Symbol, update.Side, update.Type, update.Status,
		update.FilledQty, update.Quantity,
	)
	if update.AvgPrice.IsPositive() {
		fmt.Printf(" @ %s", update.AvgPrice)
	}
	fmt.Println()
}
