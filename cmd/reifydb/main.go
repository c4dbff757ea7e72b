// Command reifydb is a minimal REPL over the embedded engine: it reads
// semicolon-terminated RQL statements from stdin, one per line, and prints
// each statement's result rows.
package main

import (
	"bufio"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/reifydb/reifydb-sub032"
	"github.com/reifydb/reifydb-sub032/internal/boot"
)

func main() {
	var cfg boot.Config
	cfg.Bind(pflag.CommandLine)
	pflag.Parse()

	if err := cfg.Preflight(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	db, err := reifydb.Open(reifydb.Config{
		DataDir:          cfg.DataDir,
		InMemory:         cfg.InMemory,
		FlowPollInterval: cfg.FlowPollInterval,
	})
	if err != nil {
		log.WithError(err).Fatal("could not open engine")
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.WithError(err).Error("error closing engine")
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		results, err := db.Execute(line)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		for _, r := range results {
			for _, row := range r.Rows {
				fmt.Println(row)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		log.WithError(err).Fatal("error reading stdin")
	}
}
