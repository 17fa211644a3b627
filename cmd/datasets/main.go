package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"datapulse/internal/storage"

	// register all backends with the storage factory.
	_ "datapulse/internal/storage/all"
)

const usage = `usage: datasets [-store kind] [-dsn dsn] <command> [args]

commands:
  list              list all datasets, newest first
  show <id>         print one dataset record
  profile <id>      print the stored profile document
  delete <id>       delete a dataset and its profile
`

// main is the entry point for the datasets binary, the operator-facing CRUD
// tool for stored datasets.
func main() {
	var (
		storeKind string
		dsn       string
	)
	flag.StringVar(&storeKind, "store", "sqlite", "storage backend kind (memory, sqlite, postgres, mssql)")
	flag.StringVar(&dsn, "dsn", "", "storage DSN (overrides env DATASETS_DSN)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if dsn == "" {
		dsn = os.Getenv("DATASETS_DSN")
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()

	store, err := storage.New(ctx, storage.Config{Kind: storeKind, DSN: dsn})
	if err != nil {
		fatalf("storage: %v", err)
	}
	defer store.Close()

	if err := run(ctx, store, args); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			fatalf("dataset not found")
		}
		fatalf("%v", err)
	}
}

func run(ctx context.Context, store storage.Repository, args []string) error {
	switch cmd, rest := args[0], args[1:]; cmd {
	case "list":
		return list(ctx, store)
	case "show":
		id, err := oneID(cmd, rest)
		if err != nil {
			return err
		}
		return show(ctx, store, id)
	case "profile":
		id, err := oneID(cmd, rest)
		if err != nil {
			return err
		}
		doc, err := store.GetProfile(ctx, id)
		if err != nil {
			return err
		}
		fmt.Println(string(doc))
		return nil
	case "delete":
		id, err := oneID(cmd, rest)
		if err != nil {
			return err
		}
		return store.DeleteDataset(ctx, id)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func oneID(cmd string, rest []string) (string, error) {
	if len(rest) != 1 {
		return "", fmt.Errorf("%s takes exactly one dataset id", cmd)
	}
	return rest[0], nil
}

func list(ctx context.Context, store storage.Repository) error {
	datasets, err := store.ListDatasets(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFILENAME\tFORMAT\tSTATUS\tROWS\tCOLS\tUPLOADED")
	for _, d := range datasets {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			d.ID, d.Filename, d.Format, d.Status, d.RowCount, d.ColumnCount,
			d.UploadTime.Format(time.RFC3339))
	}
	return w.Flush()
}

func show(ctx context.Context, store storage.Repository, id string) error {
	d, err := store.GetDataset(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("id:                  %s\n", d.ID)
	fmt.Printf("filename:            %s\n", d.Filename)
	fmt.Printf("file_size:           %d\n", d.FileSize)
	fmt.Printf("format:              %s\n", d.Format)
	fmt.Printf("status:              %s\n", d.Status)
	fmt.Printf("upload_time:         %s\n", d.UploadTime.Format(time.RFC3339Nano))
	fmt.Printf("row_count:           %d\n", d.RowCount)
	fmt.Printf("column_count:        %d\n", d.ColumnCount)
	fmt.Printf("processing_seconds:  %.3f\n", d.ProcessingSeconds)
	return nil
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
