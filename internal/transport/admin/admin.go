package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/gorilla/mux"

	"ledgerpolice.dipix.pw/internal/archive"
	"ledgerpolice.dipix.pw/internal/ledger"
	"ledgerpolice.dipix.pw/internal/notify"
	"ledgerpolice.dipix.pw/internal/police"
	"ledgerpolice.dipix.pw/internal/world"
)

// Deps are the components the admin API reports on. Ledger, Archive, Notify
// and Sessions are optional.
type Deps struct {
	Police   *police.Service
	Ledger   interface{ Stats() ledger.Stats }
	Archive  *archive.Mirror
	Notify   *notify.KafkaPublisher
	Sessions func() int64
	// EnableAdmin mounts /admin/v1; health and metrics are always served.
	EnableAdmin bool
}

func NewRouter(d Deps) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/metrics", func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, d)
	}).Methods(http.MethodGet)

	if !d.EnableAdmin {
		return r
	}
	a := r.PathPrefix("/admin/v1").Subrouter()
	a.Use(loopbackOnly)
	a.HandleFunc("/policing", func(rw http.ResponseWriter, _ *http.Request) {
		ids := d.Police.Flags().Snapshot()
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			out = append(out, id.String())
		}
		writeJSON(rw, http.StatusOK, map[string]any{"count": len(out), "users": out})
	}).Methods(http.MethodGet)
	a.HandleFunc("/lookup/{world}/{x}/{y}/{z}", func(rw http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		pos, err := parsePos(vars["x"], vars["y"], vars["z"])
		if err != nil {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}
		q, res, err := d.Police.Lookup(r.Context(), vars["world"], pos)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, world.ErrUnknownWorld) {
				status = http.StatusNotFound
			}
			writeJSON(rw, status, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "query": q, "results": res})
	}).Methods(http.MethodGet)
	return r
}

func parsePos(x, y, z string) (cube.Pos, error) {
	var pos cube.Pos
	for i, s := range []string{x, y, z} {
		n, err := strconv.Atoi(s)
		if err != nil {
			return cube.Pos{}, fmt.Errorf("bad coordinate %q", s)
		}
		pos[i] = n
	}
	return pos, nil
}

func loopbackOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(rw, r)
	})
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeMetrics(w io.Writer, d Deps) {
	metric(w, "ledgerpolice_policing_users", "gauge", "Users currently in police mode.", int64(d.Police.Flags().Len()))
	if d.Sessions != nil {
		metric(w, "ledgerpolice_sessions", "gauge", "Connected player sessions.", d.Sessions())
	}
	if d.Ledger != nil {
		s := d.Ledger.Stats()
		metric(w, "ledgerpolice_ledger_queue_depth", "gauge", "Pending ledger writes.", int64(s.QueueDepth))
		metric(w, "ledgerpolice_ledger_queue_capacity", "gauge", "Ledger write queue capacity.", int64(s.QueueCapacity))
		metric(w, "ledgerpolice_ledger_written_total", "counter", "Actions written to the ledger.", int64(s.WrittenTotal))
		metric(w, "ledgerpolice_ledger_dropped_total", "counter", "Actions dropped because the write queue was full.", int64(s.DroppedTotal))
		metric(w, "ledgerpolice_ledger_searches_total", "counter", "Ledger searches started.", int64(s.SearchesTotal))
		metric(w, "ledgerpolice_ledger_searching", "gauge", "Ledger searches in progress.", s.Searching)
	}
	if d.Notify != nil {
		s := d.Notify.Stats()
		metric(w, "ledgerpolice_kafka_published_total", "counter", "Lookup events delivered to Kafka.", int64(s.PublishedTotal))
		metric(w, "ledgerpolice_kafka_failed_total", "counter", "Lookup events Kafka rejected.", int64(s.FailedTotal))
	}
	if d.Archive != nil {
		s := d.Archive.Stats()
		metric(w, "ledgerpolice_archive_queue_depth", "gauge", "Current archive queue depth.", int64(s.QueueDepth))
		metric(w, "ledgerpolice_archive_queue_capacity", "gauge", "Archive queue capacity.", int64(s.QueueCapacity))
		metric(w, "ledgerpolice_archive_enqueued_total", "counter", "Total archive enqueue attempts.", int64(s.EnqueuedTotal))
		metric(w, "ledgerpolice_archive_dropped_total", "counter", "Total files dropped because the queue stayed saturated.", int64(s.DroppedTotal))
		metric(w, "ledgerpolice_archive_upload_success_total", "counter", "Total successful uploads.", int64(s.UploadSuccessTotal))
		metric(w, "ledgerpolice_archive_upload_fail_total", "counter", "Total failed uploads after retry.", int64(s.UploadFailTotal))
		metric(w, "ledgerpolice_archive_last_success_unix", "gauge", "Unix timestamp of the last successful upload.", s.LastSuccessUnix)
	}
}

func metric(w io.Writer, name, typ, help string, v int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, typ)
	fmt.Fprintf(w, "%s %d\n", name, v)
}
