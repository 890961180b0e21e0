package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func policingCmd(args []string) {
	fs := flag.NewFlagSet("policing", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	get(strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/admin/v1/policing")
}

// lookupCmd asks a running server for the police lookup of one block.
func lookupCmd(args []string) {
	fs := flag.NewFlagSet("lookup", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	worldID := fs.String("world", "minecraft:overworld", "world id")
	pos := fs.String("pos", "", "block position x,y,z (required)")
	_ = fs.Parse(args)

	v, err := parseVec3(*pos)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad -pos:", err)
		os.Exit(2)
	}
	get(fmt.Sprintf("%s/admin/v1/lookup/%s/%d/%d/%d",
		strings.TrimRight(strings.TrimSpace(*baseURL), "/"), url.PathEscape(*worldID), v[0], v[1], v[2]))
}

func get(u string) {
	cl := &http.Client{Timeout: 10 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
