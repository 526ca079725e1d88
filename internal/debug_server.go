package internal

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"quiz-lab/domain"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var templatesFS embed.FS

const defaultPrefix = "room:"

type InspectRow struct {
	Key       string
	Type      string
	Timestamp string
	EntityID  string
	Namespace string
	Detail    string
	Scores    string
}

type RowMapper func(key string, val []byte) InspectRow
type StatsProvider func() map[string]any

type PageData struct {
	Prefix string
	Items  []InspectRow
	Stats  map[string]any
}

// StartDebugServer serves an HTML view of the Badger keys under a prefix,
// along with live statistics, until ctx is done.
func StartDebugServer(ctx context.Context, log *slog.Logger, db *badger.DB, port int, endpoint string,
	mapper RowMapper, statsProvider StatsProvider) *http.Server {
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))
	if mapper == nil {
		mapper = DefaultMapper
	}

	mux := http.NewServeMux()
	mux.HandleFunc(endpoint, func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = defaultPrefix
		}
		data := PageData{Prefix: prefix, Stats: make(map[string]any)}
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
		if err := tmpl.Execute(w, data); err != nil {
			log.Warn("Failed to render inspector", "error", err)
		}
	})

	srv := &http.Server{Addr: fmt.Sprintf("0.0.0.0:%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Debug server stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info("Debug inspector listening", "url", fmt.Sprintf("http://localhost:%d%s", port, endpoint))
	return srv
}

// DefaultMapper shows keys shaped like "namespace:id" without decoding values.
func DefaultMapper(key string, val []byte) InspectRow {
	parts := strings.SplitN(key, ":", 2)
	row := InspectRow{
		Key:       key,
		Type:      "RAW",
		Timestamp: "--:--:--",
		EntityID:  "--------",
		Namespace: "default",
		Detail:    "Size: " + strconv.Itoa(len(val)) + " bytes",
		Scores:    "-",
	}
	if len(parts) == 2 {
		row.Namespace = parts[0]
		row.EntityID = parts[1]
	}
	return row
}

// SnapshotMapper decodes room snapshots and shows their status, players and
// the leader.
func SnapshotMapper(key string, val []byte) InspectRow {
	var snap domain.Snapshot
	if err := json.Unmarshal(val, &snap); err != nil {
		return DefaultMapper(key, val)
	}
	connected := 0
	best := "-"
	bestScore := -1
	for _, p := range snap.Players {
		if p.IsConnected {
			connected++
		}
		if !p.IsHost && p.Score > bestScore {
			bestScore = p.Score
			best = fmt.Sprintf("%s (%d)", p.DisplayName, p.Score)
		}
	}
	return InspectRow{
		Key:       key,
		Type:      string(snap.Status),
		Timestamp: snap.LastActivityAt.Format("15:04:05"),
		EntityID:  string(snap.Code),
		Namespace: string(snap.Phase),
		Detail: fmt.Sprintf("question %d/%d, %d/%d players connected, skipped %v",
			snap.CurrentQuestionIndex+1, snap.TotalQuestions, connected, len(snap.Players), snap.SkippedQuestionIndices),
		Scores: best,
	}
}
