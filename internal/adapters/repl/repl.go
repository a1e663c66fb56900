// Package repl is a line-oriented scan session. Handheld scanners type the
// code followed by Enter, so every scan arrives as one line.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"warehouse-ops/internal/app"
	"warehouse-ops/internal/core"
)

var errExit = errors.New("exit")

// session holds the state of one operator at one terminal.
type session struct {
	ctx   context.Context
	svc   app.ApplicationService
	actor core.Actor
	out   io.Writer
	mode  scanMode
}

// Run reads lines from in until /exit or EOF. Slash commands are dispatched
// deterministically; any other line is a scan handled by the current mode.
func Run(ctx context.Context, svc app.ApplicationService, actor core.Actor, in io.Reader, out io.Writer) error {
	s := &session{ctx: ctx, svc: svc, actor: actor, out: out, mode: idleMode{}}

	fmt.Fprintln(out, "Warehouse Scanner")
	fmt.Fprintf(out, "Warehouse: %s  Operator: %s (%s)\n", actor.WarehouseID, actor.Name(), actor.Role)
	fmt.Fprintln(out, "Use /putaway, /pickup or /dispatch to start scanning, /help for commands.")
	fmt.Fprintln(out, strings.Repeat("-", 70))

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprintf(out, "\n%s> ", s.mode.prompt())
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		input := strings.TrimSpace(sc.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if err := s.dispatchSlash(input); err != nil {
				if errors.Is(err, errExit) {
					fmt.Fprintln(out, "Goodbye!")
					return nil
				}
				printError(out, err)
			}
			continue
		}

		next, err := s.mode.scan(s, input)
		if err != nil {
			printError(out, err)
		}
		s.mode = next
	}
}

func (s *session) dispatchSlash(input string) error {
	tokens := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(tokens) == 0 {
		return nil
	}
	cmd := strings.ToLower(tokens[0])
	args := tokens[1:]

	switch cmd {
	case "putaway", "put":
		s.mode = &putawayMode{}
		if len(args) > 0 {
			next, err := s.mode.scan(s, args[0])
			s.mode = next
			return err
		}
		fmt.Fprintln(s.out, "Scan a bin.")

	case "pickup", "pick":
		s.mode = &pickupMode{}
		fmt.Fprintln(s.out, "Scan a package, then scan it again to confirm.")

	case "dispatch":
		s.mode = &dispatchMode{}
		fmt.Fprintln(s.out, "Scan a bin, then scan it again to dispatch its picked packages.")

	case "single":
		s.mode = &singleMode{}
		fmt.Fprintln(s.out, "Scan a package, then scan it again to dispatch it.")

	case "done", "cancel":
		s.mode = idleMode{}
		fmt.Fprintln(s.out, "Scanning stopped.")

	case "bin":
		if len(args) < 1 {
			fmt.Fprintln(s.out, "Usage: /bin <bin-code>")
			return nil
		}
		res, err := s.svc.BinContents(s.ctx, s.actor, args[0])
		if err != nil {
			return err
		}
		printBinContents(s.out, res)

	case "bins":
		res, err := s.svc.ListBins(s.ctx, s.actor)
		if err != nil {
			return err
		}
		printBins(s.out, res)

	case "search", "find":
		if len(args) < 1 {
			fmt.Fprintln(s.out, "Usage: /search <tracking-id>")
			return nil
		}
		sh, err := s.svc.SearchShipment(s.ctx, s.actor, args[0])
		if err != nil {
			return err
		}
		printShipment(s.out, sh)

	case "stats":
		res, err := s.svc.WarehouseStats(s.ctx, s.actor)
		if err != nil {
			return err
		}
		printStats(s.out, res)

	case "operators":
		res, err := s.svc.ListOperators(s.ctx, s.actor)
		if err != nil {
			return err
		}
		printOperators(s.out, res)

	case "help", "h":
		printHelp(s.out)

	case "exit", "quit", "e", "q":
		return errExit

	default:
		fmt.Fprintf(s.out, "Unknown command: /%s  (type /help for all commands)\n", cmd)
	}
	return nil
}
