package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kokoro/pkg/service/worker"
	"github.com/secmon-lab/kokoro/pkg/usecase"
	"github.com/secmon-lab/kokoro/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const consoleConversationID = "console"

func cmdChat() *cli.Command {
	var userName string
	var agentCfg agentConfig

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user-name",
			Aliases:     []string{"u"},
			Usage:       "Name the agent calls you by",
			Value:       "user",
			Sources:     cli.EnvVars("KOKORO_USER_NAME"),
			Destination: &userName,
		},
	}
	flags = append(flags, agentCfg.Flags()...)

	return &cli.Command{
		Name:    "chat",
		Aliases: []string{"c"},
		Usage:   "Talk with the agent on the console",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, repo, err := agentCfg.setup(ctx)
			if err != nil {
				return err
			}
			defer closeRepository(repo)

			aggregationWorker := worker.NewAffinityAggregationWorker(uc, agentCfg.agent.AggregationInterval())
			if err := aggregationWorker.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start affinity aggregation worker")
			}
			defer aggregationWorker.Stop()

			return runChat(ctx, uc.Chat, os.Stdin, os.Stdout, userName)
		},
	}
}

// runChat reads one utterance per line until EOF or "exit". Every line is
// addressed to the agent so that each one gets a reply.
func runChat(ctx context.Context, chat *usecase.ChatUseCase, in io.Reader, out io.Writer, userName string) error {
	prompt := color.New(color.FgCyan, color.Bold)
	agent := color.New(color.FgMagenta)
	failure := color.New(color.FgRed)

	scanner := bufio.NewScanner(in)
	for {
		if _, err := prompt.Fprintf(out, "%s> ", userName); err != nil {
			return goerr.Wrap(err, "failed to write prompt")
		}
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		resp, err := chat.HandleMessage(ctx, &usecase.ChatMessage{
			ChannelID:   consoleConversationID,
			UserID:      userName,
			UserName:    userName,
			Text:        line,
			MentionsBot: true,
		})
		if err != nil {
			logging.From(ctx).Error("failed to handle message", "error", err)
			if _, err := failure.Fprintln(out, "(failed to reply, see log)"); err != nil {
				return goerr.Wrap(err, "failed to write error")
			}
			continue
		}
		if resp == nil || resp.Text == "" {
			continue
		}
		if _, err := agent.Fprintln(out, resp.Text); err != nil {
			return goerr.Wrap(err, "failed to write reply")
		}

		if ctx.Err() != nil {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return goerr.Wrap(err, "failed to read console input")
	}
	return nil
}
