// cmd/preflight/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/camwatch/camwatch/internal/config"
	"github.com/camwatch/camwatch/internal/domain"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to the stream config file")
	flag.Parse()

	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fail("config: " + err.Error())
	}
	ok(fmt.Sprintf("config %s loads and validates", *cfgPath))

	if len(cfg.Streams) == 0 {
		warn("no streams configured — the monitor will idle until a reload adds some")
	}
	var rtsp, httpN int
	for _, s := range cfg.Streams {
		if domain.FamilyOf(s.URL) == domain.FamilyRTSP {
			rtsp++
		} else {
			httpN++
		}
	}
	ok(fmt.Sprintf("%d streams (%d rtsp, %d http), heartbeat %ds, max %d workers per lane",
		len(cfg.Streams), rtsp, httpN, cfg.HeartbeatSeconds, cfg.MaxWorkers))

	if cfg.DatabaseURL == "" {
		warn("database_url empty — results go to the in-memory sink and are lost on restart")
	} else if !strings.HasPrefix(cfg.DatabaseURL, "postgres://") {
		warn("database_url does not look like a postgres DSN")
	} else {
		ok("database_url present")
	}

	if strings.TrimSpace(cfg.Addr) == "" {
		warn("addr is empty; the status API will not start")
	} else {
		ok("addr=" + cfg.Addr)
	}

	ok("preflight passed")
}
