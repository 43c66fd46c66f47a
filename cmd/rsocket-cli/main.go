package main

import (
	"log"
	"os"
	"time"

	"github.com/rsocket/rsocket-engine/rx"
	"github.com/urfave/cli"
)

func main() {
	r := &Runner{}
	app := cli.NewApp()
	app.Name = "rsocket-cli"
	app.Usage = "talk to RSocket servers or serve as one"
	app.UsageText = "rsocket-cli [options] URI"
	app.ArgsUsage = "URI"
	app.Version = "0.1.0"
	app.Flags = append(append(interactionFlags(r), payloadFlags(r)...), connectionFlags(r)...)
	app.Action = func(c *cli.Context) error {
		if c.NArg() != 1 {
			cli.ShowAppHelpAndExit(c, 1)
		}
		r.URI = c.Args().First()
		r.Headers = c.StringSlice("header")
		r.TransportHeaders = c.StringSlice("transport-header")
		return r.Run()
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// interactionFlags select what the client sends, request-response by default.
func interactionFlags(r *Runner) []cli.Flag {
	return []cli.Flag{
		cli.BoolFlag{Name: "request", Usage: "send request-response", Destination: &r.Request},
		cli.BoolFlag{Name: "stream", Usage: "send request-stream", Destination: &r.Stream},
		cli.BoolFlag{Name: "channel", Usage: "send request-channel, one payload per input line", Destination: &r.Channel},
		cli.BoolFlag{Name: "fnf", Usage: "send fire-and-forget", Destination: &r.FNF},
		cli.BoolFlag{Name: "metadataPush", Usage: "send metadata-push", Destination: &r.MetadataPush},
		cli.BoolFlag{Name: "server, s", Usage: "serve on URI, echoing requests", Destination: &r.ServerMode},
		cli.IntFlag{Name: "ops, o", Usage: "times the interaction is sent", Value: 1, Destination: &r.Ops},
		cli.IntFlag{Name: "requestn, r", Usage: "items requested from streams and channels", Value: rx.RequestMax, Destination: &r.N},
		cli.DurationFlag{Name: "timeout", Usage: "give up after the timeout", Destination: &r.Timeout},
	}
}

// payloadFlags describe data and metadata.
func payloadFlags(r *Runner) []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{Name: "input, i", Usage: "data: a string, - for stdin or @file", Destination: &r.Input},
		cli.StringFlag{Name: "metadata, m", Usage: "metadata: a string or @file", Destination: &r.Metadata},
		cli.StringSliceFlag{Name: "header, H", Usage: "metadata header name=value, encoded by metadataFormat"},
		cli.StringFlag{Name: "route", Usage: "route of requests, sent in composite metadata", Destination: &r.Route},
		cli.StringFlag{Name: "metadataFormat", Usage: "json, cbor, binary, text or a mime type", Value: "json", Destination: &r.MetadataFormat},
		cli.StringFlag{Name: "dataFormat", Usage: "json, cbor, binary, text or a mime type", Value: "binary", Destination: &r.DataFormat},
		cli.StringFlag{Name: "setup", Usage: "setup data: a string or @file", Destination: &r.Setup},
	}
}

// connectionFlags tune the session.
func connectionFlags(r *Runner) []cli.Flag {
	return []cli.Flag{
		cli.StringSliceFlag{Name: "transport-header, T", Usage: "websocket handshake header name=value"},
		cli.DurationFlag{Name: "keepalive, k", Usage: "keepalive interval", Value: 20 * time.Second, Destination: &r.Keepalive},
		cli.BoolFlag{Name: "resume", Usage: "resume sessions after the transport is lost", Destination: &r.Resume},
		cli.BoolFlag{Name: "lease", Usage: "honour leases, or issue them in server mode", Destination: &r.Lease},
		cli.IntFlag{Name: "leaseRequests", Usage: "requests allowed by every issued lease", Value: 100, Destination: &r.LeaseRequests},
		cli.DurationFlag{Name: "leaseInterval", Usage: "interval and time to live of issued leases", Value: 10 * time.Second, Destination: &r.LeaseInterval},
		cli.BoolFlag{Name: "debug, d", Usage: "log frames and payloads", Destination: &r.Debug},
	}
}
