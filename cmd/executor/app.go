package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"go.dedis.ch/executor"
	"go.dedis.ch/executor/cli"
	"go.dedis.ch/executor/cli/ucli"
	"go.dedis.ch/executor/config"
	"go.dedis.ch/executor/core/journal"
	"go.dedis.ch/executor/core/store/kv"
	"golang.org/x/xerrors"
)

type app struct {
	logger zerolog.Logger
	out    io.Writer

	// In production, the executor is stopped via SIGTERM. In case of testing,
	// the signal is sent through the channel.
	enableSignal bool
	sigs         chan os.Signal
}

// newApp returns the command line application of the executor. When the
// channel is nil, the executor stops on SIGINT and SIGTERM.
func newApp(sigs chan os.Signal, out io.Writer) cli.Application {
	a := &app{
		logger:       executor.Logger,
		out:          out,
		enableSignal: sigs == nil,
		sigs:         sigs,
	}

	if a.enableSignal {
		a.sigs = make(chan os.Signal, 1)
	}

	return a.build()
}

func (a *app) build() cli.Application {
	builder := ucli.NewBuilder("executor", nil)
	builder.SetUsage("off-chain executor of cross-chain transactions")
	builder.SetWriter(a.out)

	start := builder.SetCommand("start")
	start.SetDescription("start the executor")
	start.SetFlags(cli.StringFlag{
		Name:  "config",
		Usage: "path to the configuration file",
		Value: "executor.yaml",
	})
	start.SetAction(a.start)

	list := builder.SetCommand("journal")
	list.SetDescription("list the side effects of the journal")
	list.SetFlags(
		cli.StringFlag{
			Name:  "db",
			Usage: "path to the database of the journal",
			Value: "executor.db",
		},
		cli.StringFlag{
			Name:  "sfx",
			Usage: "only show the side effect with this identifier",
		},
	)
	list.SetAction(a.listJournal)

	return builder.Build()
}

func (a *app) start(flags cli.Flags) error {
	if a.enableSignal {
		signal.Notify(a.sigs, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(a.sigs)
	}

	cfg, err := config.Load(flags.Path("config"))
	if err != nil {
		return xerrors.Errorf("failed to load config: %v", err)
	}

	logger := a.logger.With().Str("session", xid.New().String()).Logger()

	n, err := newNode(cfg, logger)
	if err != nil {
		return xerrors.Errorf("failed to create node: %v", err)
	}

	err = n.Start()
	if err != nil {
		n.Close()
		return xerrors.Errorf("failed to start node: %v", err)
	}

	logger.Info().
		Str("signer", cfg.Signer).
		Int("gateways", len(cfg.Gateways)).
		Msg("executor started")

	<-a.sigs

	err = n.Close()
	if err != nil {
		return xerrors.Errorf("failed to stop node: %v", err)
	}

	logger.Info().Msg("executor stopped")

	return nil
}

func (a *app) listJournal(flags cli.Flags) error {
	db, err := kv.New(flags.Path("db"))
	if err != nil {
		return xerrors.Errorf("failed to open journal: %v", err)
	}

	defer db.Close()

	jrnl := journal.New(db)

	var records []journal.Record

	id := flags.String("sfx")
	if id != "" {
		record, err := jrnl.Get(id)
		if err != nil {
			return err
		}

		records = append(records, record)
	} else {
		records, err = jrnl.All()
		if err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "SFX\tXTX\tTARGET\tSTATUS\tHEIGHT\tBIDS\tLAST BID\tUPDATED")

	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n", r.SfxID, r.XtxID,
			r.Target, r.Status, r.Height, r.Bids, r.LastBid,
			r.UpdatedAt.Format("2006-01-02 15:04:05"))
	}

	return w.Flush()
}
