package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hwfinder/internal/domain"
	domdialogue "github.com/kailas-cloud/hwfinder/internal/domain/dialogue"
	"github.com/kailas-cloud/hwfinder/internal/usecase/dialogue"
)

// Chat commands typed at the prompt.
const (
	cmdSearch = "/search"
	cmdReset  = "/reset"
	cmdQuit   = "/quit"
)

type chatConversations interface {
	Start() (string, dialogue.Reply)
	Send(ctx context.Context, id string, ev dialogue.Event) (dialogue.Reply, error)
	End(id string) error
}

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive recommendation session",
		Long: `Describe what you need; the assistant asks about missing details,
then shows a short list. Pick products by number (e.g. "1,3" or "2 4")
to fetch their full details.

Commands: /search (search now), /reset (start over), /quit.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := buildRuntime(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Search mode: %s\n", svc.mode.Label())
			c := &chat{
				in:            bufio.NewScanner(cmd.InOrStdin()),
				out:           cmd.OutOrStdout(),
				conversations: svc.registry,
				details:       svc.details,
				concurrency:   a.cfg.Batch.Concurrency,
				logger:        a.logger,
			}
			return c.run(ctx)
		},
	}
}

// chat drives stage one (dialogue) and stage two (detail lookup) on a terminal.
type chat struct {
	in            *bufio.Scanner
	out           io.Writer
	conversations chatConversations
	details       detailResolver
	concurrency   int
	logger        *zap.Logger
}

func (c *chat) run(ctx context.Context) error {
	id, greeting := c.conversations.Start()
	c.say(greeting.Text)

	for {
		line, ok := c.prompt("You: ")
		if !ok {
			_ = c.conversations.End(id)
			return ctx.Err()
		}
		if line == "" {
			continue
		}

		reply, err := c.conversations.Send(ctx, id, chatEvent(line))
		switch {
		case errors.Is(err, context.Canceled):
			_ = c.conversations.End(id)
			return nil
		case errors.Is(err, domain.ErrConversationClosed):
			id, greeting = c.restart(id)
			c.say(greeting.Text)
			continue
		case err != nil:
			c.logger.Warn("Turn failed", zap.Error(err))
			c.say("Sorry, something went wrong. Please try again.")
			continue
		}
		c.say(reply.Text)

		if len(reply.Shortlist) > 0 {
			c.stageTwo(ctx, reply.Shortlist)
			if !c.confirm("Search for something else? (y/N): ") {
				_ = c.conversations.End(id)
				c.say(dialogue.GoodbyeText)
				return nil
			}
			id, greeting = c.restart(id)
			c.say(greeting.Text)
			continue
		}
		if reply.Status == domdialogue.StatusCompleted {
			_ = c.conversations.End(id)
			return nil
		}
	}
}

// stageTwo lets the user pick shortlist entries and prints their full details.
func (c *chat) stageTwo(ctx context.Context, shortlist []domdialogue.Recommendation) {
	for {
		line, ok := c.prompt("Enter product numbers for details (e.g. 1,3), or press Enter to skip: ")
		if !ok || line == "" {
			return
		}
		picks, err := parseSelection(line, len(shortlist))
		if err != nil {
			c.say(err.Error())
			continue
		}

		names := make([]string, len(picks))
		for i, n := range picks {
			names[i] = shortlist[n-1].Name
		}
		for _, d := range resolveAll(ctx, c.details, names, c.concurrency) {
			fmt.Fprintln(c.out, formatDetail(d))
		}
		return
	}
}

func (c *chat) restart(id string) (string, dialogue.Reply) {
	_ = c.conversations.End(id)
	return c.conversations.Start()
}

func (c *chat) prompt(label string) (string, bool) {
	fmt.Fprint(c.out, label)
	if !c.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.in.Text()), true
}

func (c *chat) confirm(label string) bool {
	line, ok := c.prompt(label)
	if !ok {
		return false
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func (c *chat) say(text string) {
	if text != "" {
		fmt.Fprintf(c.out, "Assistant: %s\n", text)
	}
}

func chatEvent(line string) dialogue.Event {
	switch strings.ToLower(line) {
	case cmdSearch:
		return dialogue.SearchNow{}
	case cmdReset:
		return dialogue.Reset{}
	case cmdQuit:
		return dialogue.Exit{}
	default:
		return dialogue.UserMessage{Text: line}
	}
}
