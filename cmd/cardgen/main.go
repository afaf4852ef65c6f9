package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/alovak/cardgen-bot/internal/binlookup"
	"github.com/alovak/cardgen-bot/internal/cardgen"
	"github.com/alovak/cardgen-bot/internal/expiry"
	"golang.org/x/exp/slog"
)

type options struct {
	bin     string
	count   int
	lookup  string
	json    bool
	masked  bool
	timeout time.Duration
}

type output struct {
	BIN    string           `json:"bin"`
	Cards  []string         `json:"cards"`
	Record binlookup.Record `json:"record"`
}

func main() {
	must(run(context.Background(), os.Args[1:], os.Stdout))
}

func run(ctx context.Context, args []string, w io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	if err := cardgen.ValidatePrefix(opts.bin); err != nil {
		return err
	}
	if opts.count <= 0 {
		return fmt.Errorf("-count must be positive")
	}

	cards, err := cardgen.NewGenerator(cardgen.DefaultMaxAttempts).Batch(opts.bin, opts.count)
	if err != nil {
		return err
	}

	var remote binlookup.Fetcher
	if opts.lookup != "" {
		remote = binlookup.NewClient(opts.lookup, &http.Client{Timeout: opts.timeout})
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	rec := binlookup.NewResolver(logger, nil, nil, remote, opts.timeout).Lookup(ctx, opts.bin)

	out := output{BIN: opts.bin, Record: rec}
	for _, c := range cards {
		if opts.masked {
			c.Number = cardgen.MaskPAN(c.Number)
		}
		out.Cards = append(out.Cards, c.String())
	}

	if opts.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	for i, c := range cards {
		fmt.Fprintf(w, "%s   EXP(card-face): %s\n", out.Cards[i], expiry.CardFace(c.ExpiryMonth, c.ExpiryYear))
	}
	fmt.Fprintf(w, "\nBank: %s\nCountry: %s %s\nScheme: %s\nType: %s\nLevel: %s\n",
		rec.Bank, rec.Country, rec.CountryEmoji, rec.Scheme, rec.CardType, rec.Level)
	return nil
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("cardgen", flag.ContinueOnError)
	fs.StringVar(&opts.bin, "bin", "515462", "6-15 digit BIN prefix")
	fs.IntVar(&opts.count, "count", 10, "number of cards to generate")
	fs.StringVar(&opts.lookup, "lookup", "", "remote BIN lookup base URL (empty: curated table only)")
	fs.BoolVar(&opts.json, "json", false, "print JSON")
	fs.BoolVar(&opts.masked, "mask", false, "mask card numbers")
	fs.DurationVar(&opts.timeout, "timeout", 5*time.Second, "remote lookup timeout")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

func must(err error) {
	if err != nil {
		fail("%v", err)
	}
}

func fail(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
