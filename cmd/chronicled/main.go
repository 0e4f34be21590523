// Command chronicled wires together the pipeline, ledger, projection, and
// keystore into a single running node: thin CLI plumbing, not a
// reimplementation of a production Sawtooth validator or a query-service
// front end (Non-goals).
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"google.golang.org/grpc"

	"github.com/chronicle-ledger/chronicle-lib/common/vocab"
	"github.com/chronicle-ledger/chronicle-lib/keystore"
	"github.com/chronicle-ledger/chronicle-lib/log"
	"github.com/chronicle-ledger/chronicle/ledger/grpcledger"
	"github.com/chronicle-ledger/chronicle/ledger/memledger"
	"github.com/chronicle-ledger/chronicle/pipeline"
	"github.com/chronicle-ledger/chronicle/projection"
	"github.com/chronicle-ledger/chronicle/prov"
)

var logger = log.New("chronicled")

func main() {
	app := &cli.App{
		Name:  "chronicled",
		Usage: "a content-addressed provenance ledger node",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "namespace", Value: "default", Usage: "namespace this node operates against"},
			&cli.StringFlag{Name: "db", Value: "chronicle.db", Usage: "path to the query projection's SQLite database"},
			&cli.StringFlag{Name: "keystore", Value: "./keys", Usage: "directory holding per-agent signing keys"},
		},
		Commands: []*cli.Command{
			serveCommand,
			namespaceCommand,
			agentCommand,
			activityCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		logger.Errorw("chronicled exited with error", "error", err)
		os.Exit(1)
	}
}

// openNode wires a Pipeline against a local memledger.Ledger and a
// SQLite-backed projection, the default single-node configuration.
func openNode(ctx context.Context, c *cli.Context) (*pipeline.Pipeline, *projection.Projection, error) {
	proj, err := projection.Open(ctx, c.String("db"))
	if err != nil {
		return nil, nil, err
	}
	keys, err := keystore.NewDirectory(c.String("keystore"))
	if err != nil {
		return nil, nil, err
	}
	ns := namespaceID(c.String("namespace"))
	l := memledger.New()
	p := pipeline.New(ns, l, proj, keys)
	go func() {
		if err := p.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Errorw("pipeline stopped", "error", err)
		}
	}()
	return p, proj, nil
}

// namespaceID derives a stable namespace identifier from its human name,
// so repeated invocations of the CLI against the same --namespace value
// resolve to the same identifier without a side-channel lookup.
func namespaceID(name string) vocab.ID {
	return vocab.Namespace(name, uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)))
}

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "run a gRPC-exposed ledger processor for other replicas to submit against",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "listen", Value: ":7070"},
	},
	Action: func(c *cli.Context) error {
		lis, err := net.Listen("tcp", c.String("listen"))
		if err != nil {
			return err
		}
		backing := memledger.New()
		srv := grpc.NewServer()
		grpcledger.NewServer(backing).Register(srv)
		logger.Infow("serving ledger processor", "address", c.String("listen"))
		return srv.Serve(lis)
	},
}

var namespaceCommand = &cli.Command{
	Name:  "namespace",
	Usage: "namespace operations",
	Subcommands: []*cli.Command{
		{
			Name:  "create",
			Usage: "create the node's configured namespace",
			Action: func(c *cli.Context) error {
				ctx := context.Background()
				p, proj, err := openNode(ctx, c)
				if err != nil {
					return err
				}
				defer proj.Close()
				ns := namespaceID(c.String("namespace"))
				txID, err := p.Submit(ctx, pipeline.CreateNamespace{Name: c.String("namespace"), UUID: ns.UUID})
				if err != nil {
					return err
				}
				fmt.Println(txID)
				return nil
			},
		},
	},
}

var agentCommand = &cli.Command{
	Name:  "agent",
	Usage: "agent operations",
	Subcommands: []*cli.Command{
		{
			Name:  "create",
			Usage: "create a new agent",
			Flags: []cli.Flag{&cli.StringFlag{Name: "name", Required: true}},
			Action: func(c *cli.Context) error {
				return submitOne(c, pipeline.CreateAgent{Name: c.String("name")})
			},
		},
		{
			Name:  "register-key",
			Usage: "generate and register a new signing key for an agent",
			Flags: []cli.Flag{&cli.StringFlag{Name: "name", Required: true}},
			Action: func(c *cli.Context) error {
				return submitOne(c, pipeline.RegisterKey{
					AgentName:  c.String("name"),
					Kind:       prov.RegisterKeyGenerated,
					Registered: time.Now().UTC(),
				})
			},
		},
	},
}

var activityCommand = &cli.Command{
	Name:  "activity",
	Usage: "activity operations",
	Subcommands: []*cli.Command{
		{
			Name:  "create",
			Usage: "create a new activity",
			Flags: []cli.Flag{&cli.StringFlag{Name: "name", Required: true}},
			Action: func(c *cli.Context) error {
				return submitOne(c, pipeline.CreateActivity{Name: c.String("name")})
			},
		},
		{
			Name:  "start",
			Usage: "start an activity as the current (or named) agent",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "name", Required: true},
				&cli.StringFlag{Name: "agent"},
			},
			Action: func(c *cli.Context) error {
				return submitOne(c, pipeline.StartActivity{
					ActivityName: c.String("name"),
					AgentName:    c.String("agent"),
					Time:         time.Now().UTC(),
				})
			},
		},
		{
			Name:  "end",
			Usage: "end an activity as the current (or named) agent",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "name", Required: true},
				&cli.StringFlag{Name: "agent"},
			},
			Action: func(c *cli.Context) error {
				return submitOne(c, pipeline.EndActivity{
					ActivityName: c.String("name"),
					AgentName:    c.String("agent"),
					Time:         time.Now().UTC(),
				})
			},
		},
	},
}

func submitOne(c *cli.Context, cmd pipeline.Command) error {
	ctx := context.Background()
	p, proj, err := openNode(ctx, c)
	if err != nil {
		return err
	}
	defer proj.Close()
	txID, err := p.Submit(ctx, cmd)
	if err != nil {
		return err
	}
	fmt.Println(txID)
	return nil
}
