package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/dvloznov/spend-insights/internal/gcsuploader"
)

// readInput loads a file from a local path or a gs:// URI.
func readInput(ctx context.Context, storage gcsuploader.StorageService, src string) ([]byte, error) {
	if strings.HasPrefix(src, "gs://") {
		data, err := storage.FetchFromGCS(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", src, err)
		}
		return data, nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src, err)
	}
	return data, nil
}

// decodeTransactions accepts either a JSON array of transactions or the
// backend's {"transactions": [...]} envelope.
func decodeTransactions(data []byte) ([]domain.Transaction, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("input is empty")
	}

	var txns []domain.Transaction
	if trimmed[0] == '{' {
		var envelope struct {
			Transactions []domain.Transaction `json:"transactions"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("decode transactions: %w", err)
		}
		txns = envelope.Transactions
	} else if err := json.Unmarshal(trimmed, &txns); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}

	if txns == nil {
		txns = []domain.Transaction{}
	}
	return txns, nil
}

// sourceName is the file name of a local path or gs:// URI, for logging.
func sourceName(src string) string {
	if strings.HasPrefix(src, "gs://") {
		return gcsuploader.ExtractFilenameFromGCSURI(src)
	}
	return filepath.Base(src)
}

func loadTransactions(ctx context.Context, storage gcsuploader.StorageService, src string) ([]domain.Transaction, error) {
	data, err := readInput(ctx, storage, src)
	if err != nil {
		return nil, err
	}
	return decodeTransactions(data)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTransactions writes a human readable listing.
func printTransactions(w io.Writer, txns []domain.Transaction, now time.Time) {
	fmt.Fprintf(w, "\n=== Transactions (%d) ===\n", len(txns))
	for i, txn := range txns {
		name := txn.MerchantName
		if name == "" {
			name = txn.Description
		}
		fmt.Fprintf(w, "\n%d. %s\n", i+1, name)

		date := txn.PostedAt
		if ts, err := time.Parse(time.RFC3339, txn.PostedAt); err == nil {
			date = fmt.Sprintf("%s (%s)", ts.Format("2006-01-02"), humanize.RelTime(ts, now, "ago", "from now"))
		}
		fmt.Fprintf(w, "   Date:     %s\n", date)

		amount, _ := txn.Amount.Float64()
		fmt.Fprintf(w, "   Amount:   %s\n", humanize.FormatFloat("#,###.##", amount))
		if txn.Category != "" {
			fmt.Fprintf(w, "   Category: %s\n", txn.Category)
		}
	}
	fmt.Fprintln(w)
}
