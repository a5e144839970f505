// timebase is an interactive shell for inspecting and maintaining a
// timebase database: appending measurements, querying ranges and
// statistics, running compression, and moving data in and out of files.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/c-bata/go-prompt"
	"golang.org/x/term"

	"github.com/xtxerr/timebase/internal/config"
	"github.com/xtxerr/timebase/internal/logging"
	"github.com/xtxerr/timebase/internal/storage"
)

func main() {
	cfgPath := flag.String("config", "timebase.yaml", "config file path")
	dbPath := flag.String("db", "", "database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg = config.DefaultConfig()
		} else {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	// Keep the REPL output clean; commands report their own results.
	logging.Init(slog.LevelWarn, false)

	// The shell never runs the background scheduler.
	cfg.Compression.Enabled = false

	svc, err := storage.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open storage: %v\n", err)
		os.Exit(1)
	}
	defer svc.Stop()

	sh := &shell{svc: svc, out: os.Stdout}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Printf("timebase shell - db %s (type 'help' for commands)\n", describePath(cfg.Database.Path))
		p := prompt.New(
			sh.execute,
			completer,
			prompt.OptionTitle("timebase"),
			prompt.OptionPrefix("timebase> "),
			prompt.OptionSetExitCheckerOnInput(func(in string, breakline bool) bool {
				cmd := strings.TrimSpace(in)
				return breakline && (cmd == "exit" || cmd == "quit")
			}),
		)
		p.Run()
		return
	}

	// Piped input: execute each line, no prompt.
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "exit" || line == "quit" {
			continue
		}
		sh.execute(line)
	}
}

func describePath(path string) string {
	if path == "" {
		return "(in-memory)"
	}
	return path
}

var commands = []prompt.Suggest{
	{Text: "series", Description: "List series present in the store"},
	{Text: "append", Description: "append <name> <type> <value> [ts] - store a measurement"},
	{Text: "latest", Description: "latest <name> - newest measurement of a series"},
	{Text: "range", Description: "range <name|*> [from] [to] - list measurements"},
	{Text: "stats", Description: "stats <name> [from] [to] - count/sum/min/max/avg"},
	{Text: "count", Description: "count <name> - number of rows"},
	{Text: "values", Description: "values <name> - decoded values, newest first"},
	{Text: "compress", Description: "compress [from] [to] - roll raw data up to hourly"},
	{Text: "hourly", Description: "hourly <name> [from] [to] - list hourly rollups"},
	{Text: "delete", Description: "delete <name>... - remove series from the raw table"},
	{Text: "seed", Description: "seed [days] - generate demo temperature data"},
	{Text: "export", Description: "export parquet|csv <path> [name]"},
	{Text: "import", Description: "import parquet|csv <path>"},
	{Text: "sql", Description: "sql <query> - run raw SQL against the store"},
	{Text: "help", Description: "Show available commands"},
	{Text: "exit", Description: "Leave the shell"},
}

func completer(d prompt.Document) []prompt.Suggest {
	if d.TextBeforeCursor() != d.GetWordBeforeCursor() {
		// Only the command word is completed.
		return nil
	}
	return prompt.FilterHasPrefix(commands, d.GetWordBeforeCursor(), true)
}
