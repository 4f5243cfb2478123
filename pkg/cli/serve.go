package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/kokoro/pkg/cli/config"
	httpctrl "github.com/secmon-lab/kokoro/pkg/controller/http"
	"github.com/secmon-lab/kokoro/pkg/domain/interfaces"
	"github.com/secmon-lab/kokoro/pkg/service/worker"
	"github.com/secmon-lab/kokoro/pkg/usecase"
	"github.com/secmon-lab/kokoro/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// agentConfig bundles the flag groups every conversational command needs
type agentConfig struct {
	repo    config.Repository
	llm     config.LLM
	persona config.Persona
	agent   config.Agent
}

func (x *agentConfig) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, x.repo.Flags()...)
	flags = append(flags, x.llm.Flags()...)
	flags = append(flags, x.persona.Flags()...)
	flags = append(flags, x.agent.Flags()...)
	return flags
}

// setup builds the repository and the use cases. The caller closes the
// returned repository.
func (x *agentConfig) setup(ctx context.Context, opts ...usecase.Option) (*usecase.UseCases, interfaces.Repository, error) {
	logging.From(ctx).Info("Agent configuration",
		slog.Any("repository", slog.GroupValue(x.repo.LogAttrs()...)),
		slog.Any("llm", slog.GroupValue(x.llm.LogAttrs()...)),
		slog.Any("persona", slog.GroupValue(x.persona.LogAttrs()...)),
		slog.Any("agent", slog.GroupValue(x.agent.LogAttrs()...)),
	)

	ucCfg, err := x.agent.Configure()
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to configure agent")
	}

	persona, err := x.persona.Configure(ctx)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to load persona")
	}

	client, err := x.llm.Configure(ctx)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to configure llm")
	}

	repo, err := x.repo.Configure(ctx)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to initialize repository")
	}

	opts = append([]usecase.Option{
		usecase.WithPersona(persona),
		usecase.WithConfig(ucCfg),
	}, opts...)
	uc := usecase.New(repo, client, opts...)

	if _, err := uc.EnsureCredential(ctx, x.llm.APIKey()); err != nil {
		closeRepository(repo)
		return nil, nil, goerr.Wrap(err, "failed to record master credential")
	}

	return uc, repo, nil
}

func closeRepository(repo interfaces.Repository) {
	if err := repo.Close(); err != nil {
		logging.Default().Error("failed to close repository", "error", err.Error())
	}
}

func cmdServe() *cli.Command {
	var addr string
	var agentCfg agentConfig
	var slackCfg config.Slack

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("KOKORO_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, agentCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server receiving Slack events",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logging.Default().Info("Slack configuration",
				slog.Any("slack", slog.GroupValue(slackCfg.LogAttrs()...)))

			slackSvc, err := slackCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to configure slack")
			}

			var ucOpts []usecase.Option
			if slackSvc != nil {
				ucOpts = append(ucOpts, usecase.WithSlackService(slackSvc))
				logging.Default().Info("Slack service enabled")
			} else {
				logging.Default().Info("Slack Bot Token not configured, Slack surface is disabled")
			}

			uc, repo, err := agentCfg.setup(ctx, ucOpts...)
			if err != nil {
				return err
			}
			defer closeRepository(repo)

			aggregationWorker := worker.NewAffinityAggregationWorker(uc, agentCfg.agent.AggregationInterval())
			if err := aggregationWorker.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start affinity aggregation worker")
			}

			httpOpts := []httpctrl.Options{
				httpctrl.WithStats(uc.Stats),
			}
			if slackCfg.IsWebhookConfigured() && uc.Slack != nil {
				httpOpts = append(httpOpts, httpctrl.WithSlackWebhook(
					httpctrl.NewSlackWebhookHandler(uc.Slack), slackCfg.SigningSecret()))
				logging.Default().Info("Slack webhook handler enabled")
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(httpOpts...),
				ReadHeaderTimeout: 30 * time.Second,
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				aggregationWorker.Stop()
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					aggregationWorker.Stop()
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				// Stopped after the server so that affinity of in-flight turns is flushed
				aggregationWorker.Stop()

				logging.Default().Info("Server shutdown completed", "stats", uc.Stats())
				return nil
			}
		},
	}
}
