package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"marinehub/pkg/domain"
	"marinehub/pkg/repairclient"
)

const usage = `usage: repairctl [-api URL] [-token TOKEN] <command> [args]

commands:
  list                 list your repair requests
  get <id>             show one request
  booking <bookingId>  look a request up by booking id
  cancel <id>          cancel a request
  delete <id>          delete a request unless its appointment is within 3 days
  pdf <id> <file>      export a request as PDF
  export <file.xlsx>   write your requests to a spreadsheet

MARINEHUB_API_URL and MARINEHUB_TOKEN are used when the flags are omitted;
a .env file in the working directory is read first.
`

func main() {
	_ = godotenv.Load()
	fs := flag.NewFlagSet("repairctl", flag.ExitOnError)
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	apiURL := fs.String("api", os.Getenv("MARINEHUB_API_URL"), "repair API base URL")
	token := fs.String("token", os.Getenv("MARINEHUB_TOKEN"), "bearer token")
	timeout := fs.Duration("timeout", 30*time.Second, "request timeout")
	_ = fs.Parse(os.Args[1:])

	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		os.Exit(2)
	}
	if strings.TrimSpace(*apiURL) == "" {
		exitErr(errors.New("api URL required (-api or MARINEHUB_API_URL)"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	client := repairclient.NewClient(*apiURL)
	if err := run(ctx, client, *token, args, os.Stdout); err != nil {
		exitErr(err)
	}
}

func run(ctx context.Context, client *repairclient.Client, token string, args []string, out io.Writer) error {
	cmd, rest := args[0], args[1:]
	need := func(n int) error {
		if len(rest) != n {
			return fmt.Errorf("%s: expected %d argument(s), got %d", cmd, n, len(rest))
		}
		return nil
	}
	switch cmd {
	case "list":
		reqs, err := client.ListMine(ctx, token)
		if err != nil {
			return err
		}
		return printTable(out, reqs)
	case "get", "booking":
		if err := need(1); err != nil {
			return err
		}
		var (
			req domain.RepairRequest
			err error
		)
		if cmd == "get" {
			req, err = client.Get(ctx, token, rest[0])
		} else {
			req, err = client.GetByBookingID(ctx, token, rest[0])
		}
		if err != nil {
			return err
		}
		return printJSON(out, req)
	case "cancel":
		if err := need(1); err != nil {
			return err
		}
		req, err := client.CustomerCancel(ctx, token, rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "cancelled %s (status %s)\n", req.ID, req.Status)
		return nil
	case "delete":
		if err := need(1); err != nil {
			return err
		}
		req, err := client.Get(ctx, token, rest[0])
		if err != nil {
			return err
		}
		if err := client.DeleteGuarded(ctx, token, req, time.Now()); err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted %s\n", req.ID)
		return nil
	case "pdf":
		if err := need(2); err != nil {
			return err
		}
		doc, err := client.ExportPDF(ctx, token, rest[0])
		if err != nil {
			return err
		}
		if err := os.WriteFile(rest[1], doc.Data, 0o644); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
		fmt.Fprintf(out, "wrote %s (%d pages)\n", rest[1], doc.Pages)
		return nil
	case "export":
		if err := need(1); err != nil {
			return err
		}
		reqs, err := client.ListMine(ctx, token)
		if err != nil {
			return err
		}
		if err := writeWorkbook(rest[0], reqs, time.Now()); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %d requests to %s\n", len(reqs), rest[0])
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printTable(out io.Writer, reqs []domain.RepairRequest) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tBOOKING\tSERVICE\tSTATUS\tSCHEDULED")
	for _, r := range reqs {
		scheduled := "-"
		if r.ScheduledDateTime != nil {
			scheduled = r.ScheduledDateTime.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.BookingID, r.ServiceType, r.Status, scheduled)
	}
	return tw.Flush()
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "repairctl: %v\n", err)
	os.Exit(1)
}
