package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/khatalens/internal/config"
	"github.com/dvloznov/khatalens/internal/domain"
	"github.com/dvloznov/khatalens/internal/extraction"
	"github.com/dvloznov/khatalens/internal/kvstore"
	"github.com/dvloznov/khatalens/internal/logger"
	"github.com/dvloznov/khatalens/internal/marketing"
	"github.com/dvloznov/khatalens/internal/reports"
	"github.com/dvloznov/khatalens/internal/store"
	"github.com/dvloznov/khatalens/internal/tax"
	"github.com/dvloznov/khatalens/internal/workflow"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "scan":
		runScan(log)
	case "history":
		runHistory(log)
	case "export":
		runExport(log)
	case "poster":
		runPoster(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("KhataLens CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  scan      Digitize a ledger image and save the record")
	fmt.Println("  history   Show saved records for a user")
	fmt.Println("  export    Export the record history as CSV or PDF")
	fmt.Println("  poster    Generate a marketing poster")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// newRecordStore builds the record store from configuration.
func newRecordStore(cfg *config.Config, log zerolog.Logger) (*store.RecordStore, func(), error) {
	if cfg.DatabaseDSN != "" {
		sqliteStore, err := kvstore.OpenSQLite(cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		return store.New(sqliteStore, log), func() { sqliteStore.Close() }, nil
	}

	fileStore, err := kvstore.NewFileStore(cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}
	return store.New(fileStore, log), func() {}, nil
}

func mediaTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	}
	return ""
}

func runScan(log zerolog.Logger) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	imagePath := fs.String("image", "", "Path to the ledger image (jpg, png or pdf)")
	user := fs.String("user", "", "User identity to save the record under")
	shop := fs.String("shop", string(domain.ShopGeneral), "Shop type for extraction context")
	fs.Parse(os.Args[2:])

	if *imagePath == "" || *user == "" {
		fmt.Fprintln(os.Stderr, "scan: -image and -user are required")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	image, err := os.ReadFile(*imagePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *imagePath).Msg("Failed to read image")
	}

	ctx := context.Background()

	records, closeStore, err := newRecordStore(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open record store")
	}
	defer closeStore()

	extractor, err := extraction.NewClient(ctx, cfg.GeminiAPIKey, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create extraction client")
	}

	ctrl := workflow.New(extractor, records, log)

	if _, err := ctrl.Login(*user, "cli"); err != nil {
		log.Fatal().Err(err).Msg("Login failed")
	}
	if err := ctrl.SetShopType(domain.ShopType(*shop)); err != nil {
		log.Fatal().Err(err).Msg("Invalid shop type")
	}
	if err := ctrl.NewScan(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scan")
	}

	err = ctrl.SubmitImage(ctx, image, mediaTypeFor(*imagePath), func(stage workflow.Stage) {
		if msg, ok := workflow.StageMessages[stage]; ok {
			fmt.Println(msg)
		}
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Processing failed")
	}

	items := ctrl.Snapshot().Items
	fmt.Printf("\nExtracted %d items:\n", len(items))
	for _, item := range items {
		fmt.Printf("  %s  %-30s %10.2f\n", item.Date, item.Description, item.Amount)
	}

	breakdown, err := ctrl.ConfirmItems(items)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to confirm items")
	}
	fmt.Printf("\nSubtotal: %.2f\nCGST (9%%): %.2f\nSGST (9%%): %.2f\nTotal: %.2f\n",
		tax.Round2(breakdown.Subtotal), tax.Round2(breakdown.CGST),
		tax.Round2(breakdown.SGST), tax.Round2(breakdown.Total))

	if err := ctrl.AcceptTax(); err != nil {
		log.Fatal().Err(err).Msg("Failed to accept tax")
	}
	history, err := ctrl.Save()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to save record")
	}
	fmt.Printf("\nSaved. %d records on file for %s.\n", len(history), *user)
}

func runHistory(log zerolog.Logger) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	user := fs.String("user", "", "User identity to list records for")
	fs.Parse(os.Args[2:])

	if *user == "" {
		fmt.Fprintln(os.Stderr, "history: -user is required")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	records, closeStore, err := newRecordStore(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open record store")
	}
	defer closeStore()

	history := records.Load(*user)
	if len(history) == 0 {
		fmt.Println("No transactions recorded yet.")
		return
	}

	for _, r := range history {
		fmt.Printf("%s  %s  %d items  total %.2f\n",
			r.CreatedAt.Format("2006-01-02"), r.ID, len(r.Items), tax.Round2(r.Tax.Total))
	}

	summary := reports.Summarize(history, time.Now())
	fmt.Printf("\nTotal revenue: %.2f across %d transactions, GST payable %.2f\n",
		tax.Round2(summary.TotalRevenue), summary.RecordCount, tax.Round2(summary.TaxLiability))
}

func runExport(log zerolog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	user := fs.String("user", "", "User identity to export records for")
	format := fs.String("format", "csv", "Export format: csv or pdf")
	out := fs.String("out", "", "Output file (default: stdout for csv)")
	shop := fs.String("shop", string(domain.ShopGeneral), "Shop type shown on the PDF report")
	fs.Parse(os.Args[2:])

	if *user == "" {
		fmt.Fprintln(os.Stderr, "export: -user is required")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	records, closeStore, err := newRecordStore(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open record store")
	}
	defer closeStore()

	history := records.Load(*user)

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatal().Err(err).Str("path", *out).Msg("Failed to create output file")
		}
		defer f.Close()
		w = f
	}

	switch *format {
	case "csv":
		err = reports.WriteCSV(w, history)
	case "pdf":
		if *out == "" {
			fmt.Fprintln(os.Stderr, "export: -out is required for pdf")
			os.Exit(1)
		}
		err = reports.WritePDF(w, history, domain.ShopType(*shop), time.Now())
	default:
		fmt.Fprintf(os.Stderr, "export: unknown format %q\n", *format)
		os.Exit(1)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}
}

func runPoster(log zerolog.Logger) {
	fs := flag.NewFlagSet("poster", flag.ExitOnError)
	topic := fs.String("topic", "", "What to promote")
	shop := fs.String("shop", string(domain.ShopGeneral), "Shop type for the poster")
	out := fs.String("out", "poster.jpg", "Output file for the generated image")
	fs.Parse(os.Args[2:])

	if *topic == "" {
		fmt.Fprintln(os.Stderr, "poster: -topic is required")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := context.Background()
	marketer, err := marketing.NewClient(ctx, cfg.GeminiAPIKey, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create marketing client")
	}

	poster, err := marketer.GeneratePoster(ctx, *topic, domain.ShopType(*shop))
	if err != nil {
		log.Fatal().Err(err).Msg("Poster generation failed")
	}

	fmt.Printf("%s\n%s\n\n%s\n\nColor theme: %s\n",
		poster.Headline, poster.Subline, poster.Body, poster.ColorTheme)

	if len(poster.ImageData) > 0 {
		if err := os.WriteFile(*out, poster.ImageData, 0o644); err != nil {
			log.Fatal().Err(err).Msg("Failed to write poster image")
		}
		fmt.Printf("Image written to %s\n", *out)
	} else {
		fmt.Println("No image was generated.")
	}
}
