package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const defaultRotateLayout = "2006-01-02-15"

type WriterOptions struct {
	// RotateLayout is the time layout naming each segment; a new file starts
	// whenever the formatted time changes. Defaults to hourly.
	RotateLayout string
	// OnRotate receives the path of every segment after it is closed.
	OnRotate func(path string)
	Now      func() time.Time
}

// JSONLWriter appends zstd compressed JSON lines into time-rotated segments.
type JSONLWriter struct {
	baseDir string
	prefix  string
	opts    WriterOptions

	mu      sync.Mutex
	curSeg  string
	curPath string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLWriter(baseDir, prefix string, opts WriterOptions) *JSONLWriter {
	if opts.RotateLayout == "" {
		opts.RotateLayout = defaultRotateLayout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &JSONLWriter{baseDir: baseDir, prefix: prefix, opts: opts}
}

func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	seg := w.opts.Now().UTC().Format(w.opts.RotateLayout)
	if seg != w.curSeg {
		if err := w.rotateLocked(seg); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLWriter) rotateLocked(seg string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForSegment(seg)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curSeg = seg
	w.curPath = path
	return nil
}

func (w *JSONLWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	if w.curPath != "" && w.opts.OnRotate != nil {
		w.opts.OnRotate(w.curPath)
	}
	w.curPath = ""
	w.curSeg = ""
	return err1
}

func (w *JSONLWriter) pathForSegment(seg string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, seg))
}

// AuditLog writes ledger actions as compressed JSONL under <worldDir>/audit.
type AuditLog struct{ w *JSONLWriter }

func NewAuditLog(dir string, opts WriterOptions) *AuditLog {
	return &AuditLog{w: NewJSONLWriter(filepath.Join(dir, "audit"), "audit", opts)}
}

func (l *AuditLog) Record(a Action) error { return l.w.Write(a) }
func (l *AuditLog) Close() error          { return l.w.Close() }

// ReadAuditLog scans every audit segment under dir in name order and returns
// the actions matching q, newest first.
func ReadAuditLog(dir string, q Query) ([]Action, error) {
	auditDir := filepath.Join(dir, "audit")
	ents, err := os.ReadDir(auditDir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "audit-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var out []Action
	for _, name := range names {
		got, err := readSegment(filepath.Join(auditDir, name), q)
		if err != nil {
			return nil, err
		}
		out = append(out, got...)
	}
	// Stable keeps read order for equal timestamps before the reversal.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func readSegment(path string, q Query) ([]Action, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []Action
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var a Action
		if err := json.Unmarshal(sc.Bytes(), &a); err != nil {
			return nil, fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if q.Matches(a) {
			out = append(out, a)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return out, nil
}
