package main

import (
	"chat-live/repositories"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	// msg: by default, tok: and member: are secondary indexes
	prefix := flag.String("prefix", "msg:", "Prefix to scan (msg: or chat:)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "ID", "Room", "Author", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())

			err := item.Value(func(v []byte) error {
				row, err := toRow(key, v)
				if err != nil {
					// Keep scanning, one broken record should not hide the others
					fmt.Printf("Error decoding key %s: %v\n", key, err)
					return nil
				}
				table.Append(row)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func toRow(key string, v []byte) ([]string, error) {
	switch {
	case strings.HasPrefix(key, "msg:"):
		m, err := repositories.DecodeMessage(v)
		if err != nil {
			return nil, err
		}
		detail := m.Text
		if m.ImageName != "" {
			detail = strings.TrimSpace(fmt.Sprintf("%s [%s %s]", detail, m.ImageName, m.ImageMime))
		}
		return []string{key, "MESSAGE", m.At.Format(time.TimeOnly), shortID(m.ID.String()), m.Room, m.Author, detail}, nil
	case strings.HasPrefix(key, "chat:"):
		c, err := repositories.DecodeChat(v)
		if err != nil {
			return nil, err
		}
		return []string{key, "CHAT", c.CreatedAt.Format(time.TimeOnly), shortID(c.ID), c.ID, "-",
			fmt.Sprintf("%s: %s", c.Name, strings.Join(c.Participants, ", "))}, nil
	default:
		return []string{key, "RAW", "--:--:--", "--------", "-", "-", fmt.Sprintf("Size: %d bytes", len(v))}, nil
	}
}

// shortID keeps the first 8 characters for readability.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)

	db, err := badger.Open(opts)
	if err != nil {
		// A crash can leave a log that needs a truncate, only possible in write mode
		if strings.Contains(err.Error(), "Log truncate required") {
			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).WithBypassLockGuard(true)

			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}
			_ = db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
