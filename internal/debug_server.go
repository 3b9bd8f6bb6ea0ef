// Package internal hosts the key-space inspector, a small HTML view over
// the live Badger store for debugging sessions.
package internal

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var templatesFS embed.FS

type InspectRow struct {
	Key       string
	Type      string
	Timestamp string
	EntityID  string
	Namespace string
	Detail    string
}

type RowMapper func(key string, val []byte) InspectRow
type StatsProvider func() map[string]any

type PageData struct {
	Prefix string
	Items  []InspectRow
	Stats  map[string]any
}

// StartDebugServer binds the inspector on its own port, away from the API
// listener. Pass a nil mapper to use the default key-layout decoding.
func StartDebugServer(db *badger.DB, port int, endpoint string, mapper RowMapper, statsProvider StatsProvider) {
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))

	if mapper == nil {
		mapper = DefaultMapper
	}

	mux.HandleFunc(endpoint, func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "msg:"
		}

		data := PageData{
			Prefix: prefix,
			Stats:  make(map[string]any),
		}

		// Récupération des statistiques dynamiques pour le dashboard
		if statsProvider != nil {
			data.Stats = statsProvider()
		}

		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				_ = item.Value(func(val []byte) error {
					data.Items = append(data.Items, mapper(string(item.Key()), val))
					return nil
				})
			}
			return nil
		})

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})

	go func() {
		// Écoute sur toutes les interfaces pour permettre l'accès réseau
		_ = http.ListenAndServe(fmt.Sprintf("0.0.0.0:%d", port), mux)
	}()
}

// DefaultMapper decodes the relay's key layout:
//
//	user:{userID}
//	channel:{channelID}
//	msg:{channelID}:{paddedNano}:{id}
//	idx:...
func DefaultMapper(key string, val []byte) InspectRow {
	row := InspectRow{
		Key:       key,
		Type:      "RAW",
		Timestamp: "--:--:--",
		EntityID:  "--------",
		Namespace: "default",
		Detail:    "Size: " + strconv.Itoa(len(val)) + " bytes",
	}

	parts := strings.Split(key, ":")
	row.Namespace = parts[0]

	switch {
	case strings.HasPrefix(key, "msg:") && len(parts) >= 4:
		row.Type = "MESSAGE"
		row.EntityID = shorten(parts[3])
		if tsNano, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
			row.Timestamp = time.Unix(0, tsNano).Format("15:04:05")
		}
		row.Detail = summarize(val, "content")
	case strings.HasPrefix(key, "channel:") && len(parts) >= 2:
		row.Type = "CHANNEL"
		row.EntityID = shorten(parts[1])
		row.Detail = summarize(val, "name")
	case strings.HasPrefix(key, "user:") && len(parts) >= 2:
		row.Type = "USER"
		row.EntityID = shorten(parts[1])
		row.Detail = summarize(val, "username")
	case strings.HasPrefix(key, "idx:"):
		row.Type = "INDEX"
		row.Detail = string(val)
	}
	return row
}

// summarize pulls one field out of a stored JSON value.
func summarize(val []byte, field string) string {
	var decoded map[string]any
	if err := json.Unmarshal(val, &decoded); err != nil {
		return "Size: " + strconv.Itoa(len(val)) + " bytes"
	}
	if v, ok := decoded[field]; ok {
		return fmt.Sprintf("%s=%v", field, v)
	}
	return "Size: " + strconv.Itoa(len(val)) + " bytes"
}

func shorten(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
