package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"datapulse/internal/ingest"
	"datapulse/internal/metrics"
	"datapulse/internal/metrics/datadog"
	"datapulse/internal/pipeline"
	"datapulse/internal/storage"
	"datapulse/internal/summarizer"

	// register all backends with the storage factory.
	// flags specify which to use but we need to build in support for all of them.
	_ "datapulse/internal/storage/all"
)

// main is the entry point for the profile binary. It reads one dataset file,
// runs the full profiling pipeline against the configured store, and prints
// the resulting profile document to stdout.
func main() {
	var (
		filePath          string
		format            string
		storeKind         string
		dsn               string
		summarizerURL     string
		summarizerModel   string
		summarizerTimeout time.Duration
		metricsBackendFlg string
	)

	flag.StringVar(&filePath, "file", "", "path to the CSV or JSON dataset to profile")
	flag.StringVar(&format, "format", "", "declared format (csv or json); empty means detect")
	flag.StringVar(&storeKind, "store", "memory", "storage backend kind (memory, sqlite, postgres, mssql)")
	flag.StringVar(&dsn, "dsn", "", "storage DSN (ignored by the memory backend)")
	flag.StringVar(&summarizerURL, "summarizer-url", "", "summarizer base URL (overrides env SUMMARIZER_URL)")
	flag.StringVar(&summarizerModel, "summarizer-model", "", "summarizer model name")
	flag.DurationVar(&summarizerTimeout, "timeout", summarizer.DefaultTimeout, "summarizer request timeout")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (datadog, none)")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	if filePath == "" {
		fatalf("missing -file")
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		fatalf("read dataset: %v", err)
	}

	stopMetrics := setupMetrics(metricsBackendFlg, *verbose)
	defer stopMetrics()

	ctx := context.Background()

	store, err := storage.New(ctx, storage.Config{Kind: storeKind, DSN: dsn})
	if err != nil {
		fatalf("storage: %v", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		fatalf("storage: ensure schema: %v", err)
	}

	runner := &pipeline.Runner{Store: store}
	// A nil *Client must stay out of the interface field, or the nil check in
	// the insight layer stops working.
	if s := buildSummarizer(summarizerURL, summarizerModel, summarizerTimeout, *verbose); s != nil {
		runner.Summarizer = s
	}

	start := time.Now()
	d, err := runner.ProfileUpload(ctx, ingest.Upload{
		Filename: filepath.Base(filePath),
		Format:   format,
		Data:     data,
	})
	if err != nil {
		log.Fatalf("profile: %v", err)
	}

	doc, err := store.GetProfile(ctx, d.ID)
	if err != nil {
		log.Fatalf("load profile: %v", err)
	}
	fmt.Println(string(doc))

	if *verbose {
		log.Printf("dataset %s: %d rows, %d columns, completed in %s",
			d.ID, d.RowCount, d.ColumnCount, time.Since(start).Truncate(time.Millisecond))
	}
}

// buildSummarizer wires the narrative client. Resolution is flag → env →
// default; without an API key the pipeline runs with the narrative marked
// unavailable.
func buildSummarizer(baseURL, model string, timeout time.Duration, verbose bool) *summarizer.Client {
	apiKey := os.Getenv("SUMMARIZER_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		if verbose {
			log.Printf("summarizer: no api key configured; narrative will be unavailable")
		}
		return nil
	}
	if baseURL == "" {
		baseURL = os.Getenv("SUMMARIZER_URL")
	}
	return summarizer.New(summarizer.Config{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Model:   model,
		Timeout: timeout,
	})
}

// setupMetrics decides the metrics backend: flag → env → default (none).
// The returned func is the shutdown path; call it once before exit.
func setupMetrics(backendName string, verbose bool) func() {
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "datadog":
		// Datadog backend:
		//   - buffers metrics and submits periodically (default once per minute)
		//   - submits one final time at shutdown (Close())
		extraTags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))

		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName: "datapulse_profile",
			Tags:    extraTags,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return func() {}
		}
		if verbose {
			log.Printf("metrics: backend=%v tags=%v", backendName, extraTags)
		}
		metrics.SetBackend(b)

		// Close() stops the periodic flush loop and then performs a final
		// Flush(). This is the clean shutdown path for the Datadog backend.
		return func() {
			if err := b.Close(); err != nil {
				log.Printf("metrics: datadog close/flush error: %v", err)
			}
		}

	case "", "none":
		// metrics disabled; nop backend remains
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}
	return func() {}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
