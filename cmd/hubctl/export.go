package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"crosshub/core/types"
	"crosshub/native/escrow"
)

const exportPageSize = 100

type escrowRow struct {
	Token      string `parquet:"name=token, type=BYTE_ARRAY, convertedtype=UTF8"`
	ChainUID   string `parquet:"name=chain_uid, type=BYTE_ARRAY, convertedtype=UTF8"`
	Balance    string `parquet:"name=balance, type=BYTE_ARRAY, convertedtype=UTF8"`
	ExportedAt string `parquet:"name=exported_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func runExportEscrows(ctx context.Context, c *client, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("export-escrows", stderr)
	out := fs.String("out", "escrows.parquet", "destination parquet file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	rows, err := collectEscrows(ctx, c)
	if err != nil {
		return fail(stderr, err)
	}
	if err := writeEscrowParquet(*out, rows); err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintf(stdout, "Wrote %d escrow balances to %s\n", len(rows), *out)
	return 0
}

// collectEscrows walks every token with an escrow entry and then every
// chain balance of that token.
func collectEscrows(ctx context.Context, c *client) ([]escrowRow, error) {
	var tokens []types.Token
	seen := make(map[types.Token]bool)
	for skip := uint32(0); ; skip += exportPageSize {
		var page struct {
			Tokens []escrow.TokenChain `json:"tokens"`
		}
		req := types.Pagination[types.Token]{Skip: skip, Limit: exportPageSize}
		if err := c.hub(ctx, http.MethodPost, "/v1/tokens/list", req, &page); err != nil {
			return nil, fmt.Errorf("list tokens: %w", err)
		}
		for _, entry := range page.Tokens {
			if !seen[entry.Token] {
				seen[entry.Token] = true
				tokens = append(tokens, entry.Token)
			}
		}
		if len(page.Tokens) < exportPageSize {
			break
		}
	}

	stamp := nowFn().UTC().Format(time.RFC3339)
	var rows []escrowRow
	for _, token := range tokens {
		for skip := uint32(0); ; skip += exportPageSize {
			var page struct {
				Escrows []escrow.ChainBalance `json:"escrows"`
			}
			req := map[string]interface{}{
				"token":      token,
				"pagination": types.Pagination[types.ChainUID]{Skip: skip, Limit: exportPageSize},
			}
			if err := c.hub(ctx, http.MethodPost, "/v1/escrows/list", req, &page); err != nil {
				return nil, fmt.Errorf("list escrows of %s: %w", token, err)
			}
			for _, entry := range page.Escrows {
				rows = append(rows, escrowRow{
					Token:      string(token),
					ChainUID:   string(entry.ChainUID),
					Balance:    types.CloneAmount(entry.Balance).Dec(),
					ExportedAt: stamp,
				})
			}
			if len(page.Escrows) < exportPageSize {
				break
			}
		}
	}
	return rows, nil
}

func writeEscrowParquet(path string, rows []escrowRow) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(escrowRow), 1)
	if err != nil {
		file.Close()
		return fmt.Errorf("export: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i := range rows {
		if err := pw.Write(rows[i]); err != nil {
			pw.WriteStop()
			file.Close()
			return fmt.Errorf("export: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return fmt.Errorf("export: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("export: close parquet file: %w", err)
	}
	return nil
}
