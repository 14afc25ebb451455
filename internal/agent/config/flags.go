package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/cardsync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-m string      schedule mode: scheduled or smart
//	-d string      card mount directory to scan
//	-e string      remote endpoint URL
//	-addr string   status endpoint listen address
//
// Only these flags are parsed here; flagx.FilterArgs keeps other components'
// flags out of the way.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-m", "-d", "-e", "-addr"})

	fs := flag.NewFlagSet("agent", flag.ContinueOnError)

	fs.StringVar(&cfg.ScheduleMode, "m", cfg.ScheduleMode, "schedule mode (scheduled|smart)")
	fs.StringVar(&cfg.SourceDir, "d", cfg.SourceDir, "card mount directory")
	fs.StringVar(&cfg.Endpoint, "e", cfg.Endpoint, "remote endpoint URL")
	fs.StringVar(&cfg.StatusAddr, "addr", cfg.StatusAddr, "status endpoint listen address")

	_ = fs.Parse(args)
}
