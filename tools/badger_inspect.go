package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

// Minimal mirrors of the stored JSON shapes; only the fields shown in the
// table are decoded.
type storedMessage struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	AuthorID  string `json:"author_id"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
	EditedAt  *int64 `json:"edited_at"`
}

type storedChannel struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	IsPublic  bool     `json:"is_public"`
	CreatorID string   `json:"creator_id"`
	Members   []string `json:"members"`
}

type storedUser struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

func main() {
	dbPath := flag.String("db", "/tmp/chat-relay-badger", "Path to badger DB")
	// Par défaut on scanne "msg:" pour éviter de percuter les index idx:
	prefix := flag.String("prefix", "msg:", "Prefix to scan (msg:, channel:, user:)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "Entity ID", "Detail"})
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

			// Sécurité : on ignore explicitement les index secondaires
			if strings.HasPrefix(key, "idx:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				table.Append(toRow(key, v))
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

func toRow(key string, val []byte) []string {
	switch {
	case strings.HasPrefix(key, "msg:"):
		var m storedMessage
		if err := json.Unmarshal(val, &m); err != nil {
			return rawRow(key, val)
		}
		detail := m.Content
		if m.EditedAt != nil {
			detail += " (edited)"
		}
		return []string{
			key, "MSG",
			time.Unix(0, m.CreatedAt).Format("15:04:05"),
			shortID(m.ID),
			detail,
		}
	case strings.HasPrefix(key, "channel:"):
		var c storedChannel
		if err := json.Unmarshal(val, &c); err != nil {
			return rawRow(key, val)
		}
		kind := "CHANNEL"
		if !c.IsPublic {
			kind = "PRIVATE"
		}
		detail := fmt.Sprintf("%s (creator:%s members:%d)", c.Name, shortID(c.CreatorID), len(c.Members))
		return []string{key, kind, "--:--:--", shortID(c.ID), detail}
	case strings.HasPrefix(key, "user:"):
		var u storedUser
		if err := json.Unmarshal(val, &u); err != nil {
			return rawRow(key, val)
		}
		detail := fmt.Sprintf("%s <%s> %s", u.Username, u.Email, u.DisplayName)
		return []string{key, "USER", "--:--:--", shortID(u.ID), detail}
	default:
		return rawRow(key, val)
	}
}

func rawRow(key string, val []byte) []string {
	return []string{key, "RAW", "--:--:--", "--------", fmt.Sprintf("Size: %d bytes", len(val))}
}

// shortID affiche les 8 premiers caractères pour la lisibilité
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
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	db, err := badger.Open(opts)
	if err != nil {
		// Si corruption détectée, essaie un open en write pour truncate
		if strings.Contains(err.Error(), "Log truncate required") {
			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).WithBypassLockGuard(true)

			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}

			// Ferme et réouvre en read-only
			db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
