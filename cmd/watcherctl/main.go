// Command watcherctl is the operator-facing control CLI for a watcherd
// instance. Since spec.md defines no RPC surface of the watcher's own,
// the daemon and this CLI share state the only way a single-process
// deployment can: the same on-disk persistent store. Grounded on
// cmd/lncli's command-table convention using the pack's same CLI
// library.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli"

	"github.com/crosslink-network/watcher/chain"
	"github.com/crosslink-network/watcher/store"
)

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[watcherctl] %v\n", err)
	os.Exit(1)
}

var statusCommand = cli.Command{
	Name:      "status",
	Usage:     "report, for each named store scope, the recorded update with the highest previous root",
	ArgsUsage: "contract-name [contract-name...]",
	Action:    statusAction,
}

func statusAction(ctx *cli.Context) error {
	names := ctx.Args()
	if len(names) == 0 {
		return cli.NewExitError("at least one contract name is required", 1)
	}

	dbPath := filepath.Join(ctx.GlobalString("datadir"), "watcher.db")
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open store at %s: %w", dbPath, err)
	}
	defer db.Close()

	for _, name := range names {
		scoped := db.Scope(name)

		var latest *chain.SignedUpdate
		err := scoped.ForEach(func(update *chain.SignedUpdate) error {
			latest = update
			return nil
		})
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}

		if latest == nil {
			fmt.Printf("%s: no updates recorded\n", name)
			continue
		}
		fmt.Printf("%s: previous_root=%s new_root=%s\n", name, latest.PreviousRoot, latest.NewRoot)
	}

	return nil
}

func main() {
	app := cli.NewApp()
	app.Name = "watcherctl"
	app.Usage = "control plane for watcherd"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "datadir",
			Value: "data",
			Usage: "watcherd's data directory, must match the running daemon's",
		},
	}
	app.Commands = []cli.Command{
		statusCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}
