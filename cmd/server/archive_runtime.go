package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"ledgerpolice.dipix.pw/internal/archive"
)

type archiveRuntime struct {
	enabled      bool
	rotateLayout string
	mirror       *archive.Mirror
}

func buildArchiveRuntime(dataDir string, logger *log.Logger) (*archiveRuntime, error) {
	if !envBool("LP_ARCHIVE", false) {
		return &archiveRuntime{enabled: false}, nil
	}

	endpoint := strings.TrimSpace(os.Getenv("LP_ARCHIVE_ENDPOINT"))
	bucket := strings.TrimSpace(os.Getenv("LP_ARCHIVE_BUCKET"))
	accessKeyID := strings.TrimSpace(os.Getenv("LP_ARCHIVE_ACCESS_KEY_ID"))
	secretAccessKey := strings.TrimSpace(os.Getenv("LP_ARCHIVE_SECRET_ACCESS_KEY"))
	prefix := strings.TrimSpace(os.Getenv("LP_ARCHIVE_PREFIX"))

	if endpoint == "" || bucket == "" || accessKeyID == "" || secretAccessKey == "" {
		return nil, fmt.Errorf("LP_ARCHIVE=true but LP_ARCHIVE_ENDPOINT/LP_ARCHIVE_BUCKET/LP_ARCHIVE_ACCESS_KEY_ID/LP_ARCHIVE_SECRET_ACCESS_KEY are not fully set")
	}

	client, err := archive.New(endpoint, bucket, accessKeyID, secretAccessKey)
	if err != nil {
		return nil, err
	}

	mirror := archive.NewMirror(client, dataDir, archive.Options{
		Prefix:      prefix,
		Workers:     envInt("LP_ARCHIVE_UPLOAD_WORKERS", 2),
		EnqueueWait: time.Duration(envInt("LP_ARCHIVE_ENQUEUE_WAIT_MS", 25)) * time.Millisecond,
		Logger:      logger,
	})
	return &archiveRuntime{
		enabled:      true,
		rotateLayout: "2006-01-02-15-04", // 1-minute segments to lower RPO.
		mirror:       mirror,
	}, nil
}

func (r *archiveRuntime) Close() {
	if r == nil || r.mirror == nil {
		return
	}
	r.mirror.Close()
}

func (r *archiveRuntime) Enqueue(localPath string) {
	if r == nil || !r.enabled || r.mirror == nil {
		return
	}
	r.mirror.Enqueue(localPath)
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
