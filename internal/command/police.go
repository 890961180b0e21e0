package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/buildkite/shellwords"
	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/spf13/cobra"

	"ledgerpolice.dipix.pw/internal/ledger"
	"ledgerpolice.dipix.pw/internal/police"
)

const (
	PermPolice = "ledger.commands.police"
	PermSearch = "ledger.commands.police.search"

	permAnnotation = "permission"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrNoPermission   = errors.New("you do not have permission to use this command")
)

// Dispatch runs one chat command line for src. Lines are tokenized with POSIX
// shell rules and a leading slash is ignored.
func Dispatch(ctx context.Context, svc *police.Service, src police.Source, line string) error {
	line = strings.TrimPrefix(strings.TrimSpace(line), "/")
	args, err := shellwords.SplitPosix(line)
	if err != nil {
		return fmt.Errorf("parse command: %w", err)
	}
	if len(args) == 0 || !strings.EqualFold(args[0], "police") {
		return ErrUnknownCommand
	}
	root := NewPoliceCommand(svc, src)
	root.SetArgs(args[1:])
	return root.ExecuteContext(ctx)
}

// NewPoliceCommand builds the police command tree bound to src. Trees are
// cheap and carry per-invocation state, so build one per command line.
func NewPoliceCommand(svc *police.Service, src police.Source) *cobra.Command {
	out := &messageWriter{src: src}
	root := &cobra.Command{
		Use:   "police [<x> <y> <z>]",
		Short: "Toggle police mode or look up one block",
		// Negative coordinates would otherwise parse as flags.
		DisableFlagParsing: true,
		Args:               cobra.ArbitraryArgs,
		SilenceUsage:       true,
		SilenceErrors:      true,
		Annotations:        map[string]string{permAnnotation: PermPolice},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			for c := cmd; c != nil; c = c.Parent() {
				if perm := c.Annotations[permAnnotation]; perm != "" && !src.HasPermission(perm) {
					return ErrNoPermission
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch len(args) {
			case 0:
				svc.Toggle(src)
				return nil
			case 3:
				pos, err := parsePos(args, src.Position())
				if err != nil {
					return err
				}
				svc.PoliceBlock(cmd.Context(), src, src.World(), pos)
				return nil
			}
			return fmt.Errorf("usage: %s", cmd.UseLine())
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(out)
	root.SetErr(out)

	root.AddCommand(&cobra.Command{
		Use:   "on",
		Short: "Enable police mode",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			svc.On(src)
			return nil
		},
	}, &cobra.Command{
		Use:   "off",
		Short: "Disable police mode",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			svc.Off(src)
			return nil
		},
	}, &cobra.Command{
		Use:                "search <params...>",
		Short:              "Search the ledger, limited to the fingerprint age",
		DisableFlagParsing: true,
		Args:               cobra.MinimumNArgs(1),
		Annotations:        map[string]string{permAnnotation: PermSearch},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := svc.Config()
			q, err := ledger.ParseParams(strings.Join(args, " "), src.Position(), svc.Now(), cfg.Police.SearchMaxRange)
			if err != nil {
				return err
			}
			if err := svc.Search(cmd.Context(), src, q); err != nil && !errors.Is(err, ledger.ErrEmptyQuery) {
				return err
			}
			return nil
		},
	})
	return root
}

func parsePos(args []string, origin cube.Pos) (cube.Pos, error) {
	var pos cube.Pos
	for i, a := range args {
		v, err := parseCoord(a, origin[i])
		if err != nil {
			return cube.Pos{}, err
		}
		pos[i] = v
	}
	return pos, nil
}

// parseCoord reads an absolute coordinate or a "~" / "~N" offset from base.
func parseCoord(s string, base int) (int, error) {
	if rest, ok := strings.CutPrefix(s, "~"); ok {
		if rest == "" {
			return base, nil
		}
		n, err := strconv.Atoi(rest)
		if err != nil {
			return 0, fmt.Errorf("bad coordinate %q", s)
		}
		return base + n, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad coordinate %q", s)
	}
	return n, nil
}

// messageWriter forwards cobra help and usage output to the source line by
// line.
type messageWriter struct {
	src police.Source
}

func (w *messageWriter) Write(p []byte) (int, error) {
	sc := bufio.NewScanner(strings.NewReader(string(p)))
	for sc.Scan() {
		if line := strings.TrimRight(sc.Text(), " "); line != "" {
			w.src.SendMessage(police.Info("%s", line))
		}
	}
	return len(p), nil
}

var _ io.Writer = (*messageWriter)(nil)
