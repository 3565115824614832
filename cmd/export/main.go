package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/arbscan/flash-searcher/internal/config"
	"github.com/arbscan/flash-searcher/internal/storage"
)

// ParquetScan is one exported scan row. Timestamps are unix milliseconds,
// quotes stay as the JSON blob the database holds.
type ParquetScan struct {
	Id           int64   `parquet:"name=id, type=INT64"`
	Timestamp    int64   `parquet:"name=timestamp, type=INT64"`
	Quotes       string  `parquet:"name=quotes, type=BYTE_ARRAY, convertedtype=UTF8"`
	SpreadPct    float64 `parquet:"name=spread_pct, type=DOUBLE"`
	PriceChanged bool    `parquet:"name=price_changed, type=BOOLEAN"`
}

// export scan history to a parquet file for offline analysis
func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	outFile := flag.String("out", "scans.parquet", "output parquet file")
	limit := flag.Int("limit", 100000, "max rows to export, newest first")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("no database url configured")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	sink, err := storage.NewSink(ctx, cfg.Database.URL, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer sink.Close()

	rows, err := sink.ScanHistory(ctx, *limit)
	if err != nil {
		log.Fatalf("failed to read scan history: %v", err)
	}
	if len(rows) == 0 {
		fmt.Println("nothing to export")
		return
	}

	fw, err := local.NewLocalFileWriter(*outFile)
	if err != nil {
		log.Fatalf("failed to create %s: %v", *outFile, err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(ParquetScan), 4)
	if err != nil {
		log.Fatalf("failed to create parquet writer: %v", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	start := time.Now()
	for _, row := range rows {
		rec := ParquetScan{
			Id:           row.ID,
			Timestamp:    row.Timestamp.UnixMilli(),
			Quotes:       row.Quotes,
			SpreadPct:    row.SpreadPct,
			PriceChanged: row.PriceChanged,
		}
		if err := pw.Write(rec); err != nil {
			log.Fatalf("failed to write row %d: %v", row.ID, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		log.Fatalf("failed to finalize parquet file: %v", err)
	}

	fmt.Printf("exported %d scans to %s in %s\n", len(rows), *outFile, time.Since(start).Round(time.Millisecond))
}
