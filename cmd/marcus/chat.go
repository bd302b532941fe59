package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nugget/marcus/internal/session"
)

// chatLoop reads lines from in and answers each on out until EOF,
// /quit, or ctx is cancelled. Lines starting with / are commands:
//
//	/report   generate, save, and load a fresh trend report
//	/latest   print the report currently loaded into the session
//	/quit     leave
func chatLoop(ctx context.Context, in io.Reader, out io.Writer, h *session.Host) error {
	fmt.Fprintln(out, "Marcus is ready. Commands: /report, /latest, /quit")

	lines := bufio.NewScanner(in)
	lines.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		fmt.Fprint(out, "\nyou> ")
		if !lines.Scan() {
			fmt.Fprintln(out)
			return lines.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(lines.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/latest":
			if r := h.LatestReport(); r != nil {
				fmt.Fprintf(out, "\n%s\n", r.Markdown())
			} else {
				fmt.Fprintln(out, "No report loaded yet. Use /report to generate one.")
			}
			continue
		case "/report":
			fmt.Fprintln(out, "Researching current trends, this can take a few minutes...")
			r, err := h.GenerateReport(ctx)
			if err != nil {
				if errors.Is(err, session.ErrReportFailed) {
					fmt.Fprintf(out, "Report failed: %v\n", err)
					continue
				}
				// The session keeps working when the report cannot be saved.
				fmt.Fprintf(out, "Report could not be saved: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "\n%s\n\nSaved to %s\n", r.Markdown(), r.Path)
			continue
		}

		if strings.HasPrefix(line, "/") {
			fmt.Fprintf(out, "Unknown command %s. Commands: /report, /latest, /quit\n", line)
			continue
		}

		reply, err := h.Send(ctx, line)
		if err != nil {
			return fmt.Errorf("chat: %w", err)
		}
		fmt.Fprintf(out, "\nmarcus> %s\n", reply)
	}
}
