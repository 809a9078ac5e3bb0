package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	bolt "go.etcd.io/bbolt"

	"crosshub/native/factory"
)

var bucketReceipts = []byte("receipts")

// historyEntry is the local record of one accepted factory request.
type historyEntry struct {
	TxID        string    `json:"txId"`
	Kind        string    `json:"kind"`
	Sequence    uint64    `json:"sequence"`
	Requester   string    `json:"requester"`
	Channel     string    `json:"channel"`
	ExpiresAt   uint64    `json:"expiresAt"`
	Factory     string    `json:"factory"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// history keeps submitted receipts in a Bolt file next to the profile so
// operators can find their tx ids again.
type history struct {
	db *bolt.DB
}

func openHistory(path string) (*history, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketReceipts)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &history{db: db}, nil
}

func (h *history) Close() error {
	if h == nil || h.db == nil {
		return nil
	}
	return h.db.Close()
}

// Record appends entry. Keys sort by submission time.
func (h *history) Record(entry historyEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	key := []byte(fmt.Sprintf("%020d/%s", entry.SubmittedAt.UnixNano(), entry.TxID))
	return h.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketReceipts).Put(key, raw)
	})
}

// List returns up to limit entries, newest first, optionally restricted to
// one tx id.
func (h *history) List(txID string, limit int) ([]historyEntry, error) {
	out := make([]historyEntry, 0)
	err := h.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketReceipts).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var entry historyEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("history entry %s: %w", k, err)
			}
			if txID != "" && entry.TxID != txID {
				continue
			}
			out = append(out, entry)
			if limit > 0 && len(out) >= limit {
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (c *client) remember(receipt factory.Receipt, stderr io.Writer) {
	if c.historyPath == "" {
		return
	}
	h, err := openHistory(c.historyPath)
	if err != nil {
		fmt.Fprintf(stderr, "Warning: receipt not saved to history: %v\n", err)
		return
	}
	defer h.Close()
	entry := historyEntry{
		TxID:        receipt.TxID,
		Kind:        receipt.Kind,
		Sequence:    receipt.Packet.Sequence,
		Requester:   receipt.Packet.Sender.Address,
		Channel:     receipt.Packet.Channel,
		ExpiresAt:   receipt.Packet.ExpiresAt,
		Factory:     c.cfg.FactoryURL,
		SubmittedAt: nowFn().UTC(),
	}
	if err := h.Record(entry); err != nil {
		fmt.Fprintf(stderr, "Warning: receipt not saved to history: %v\n", err)
	}
}

func runHistory(ctx context.Context, c *client, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("history", stderr)
	txID := fs.String("tx-id", "", "only show this tx id")
	limit := fs.Int("limit", 20, "maximum entries to show")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	h, err := openHistory(c.historyPath)
	if err != nil {
		return fail(stderr, err)
	}
	defer h.Close()
	entries, err := h.List(*txID, *limit)
	if err != nil {
		return fail(stderr, err)
	}
	return printJSON(stdout, stderr, map[string]interface{}{"receipts": entries})
}
