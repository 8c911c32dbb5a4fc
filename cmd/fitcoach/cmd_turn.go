package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lexcodex/fitcoach/agent"
	"github.com/lexcodex/fitcoach/backend"
	"github.com/lexcodex/fitcoach/llm"
	"github.com/lexcodex/fitcoach/telemetry"
)

func newTurnCmd() *cobra.Command {
	var prompt string
	cmd := &cobra.Command{
		Use:   "turn",
		Short: "Run a single coaching turn and print the answer",
		RunE: func(cmd *cobra.Command, args []string) error {
			if prompt == "" {
				return errors.New("prompt is required")
			}
			orc, cleanup, err := buildOrchestrator()
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := orc.RunTurn(cmd.Context(), prompt)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Answer)
			if len(result.ToolsInvoked) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "tools: %s (rounds=%d, model=%s)\n",
					strings.Join(result.ToolsInvoked, ", "), result.Rounds, result.Model)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "User message for this turn")
	return cmd
}

// buildOrchestrator wires the gateway, the record client, and the shared
// telemetry sink from the resolved config. The returned cleanup closes the
// telemetry trace file, if one was opened.
func buildOrchestrator() (*agent.Orchestrator, func(), error) {
	sink, cleanup, err := buildTelemetry()
	if err != nil {
		return nil, nil, err
	}

	gateway := llm.NewGateway(cfg.Model.Endpoint, cfg.Model.APIKey, cfg.Model.Models()...)
	gateway.Temperature = cfg.Model.Temperature
	gateway.Attempts = cfg.Model.AttemptPolicy()
	gateway.Debug = cfg.Logging.Debug
	gateway.Telemetry = sink

	store := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Token)
	store.Poll = cfg.Backend.PollPolicy()
	store.Debug = cfg.Logging.Debug
	store.Telemetry = sink

	orc := agent.NewOrchestrator(llm.NewInstrumentedCaller(gateway, sink, cfg.Logging.Debug), store)
	orc.Config = agent.Config{
		MaxToolRounds: cfg.Agent.MaxToolRounds,
		SystemPrompt:  cfg.Agent.SystemPrompt,
	}
	orc.Debug = cfg.Logging.Debug
	orc.Telemetry = sink
	return orc, cleanup, nil
}

func buildTelemetry() (telemetry.Telemetry, func(), error) {
	var sinks []telemetry.Telemetry
	cleanup := func() {}
	if cfg.Logging.Debug {
		sinks = append(sinks, telemetry.NewLoggerTelemetry(log.New(os.Stderr, "trace ", log.LstdFlags)))
	}
	if cfg.Logging.TelemetryFile != "" {
		file, err := telemetry.NewJSONFileTelemetry(cfg.Logging.TelemetryFile)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, file)
		cleanup = func() { _ = file.Close() }
	}
	switch len(sinks) {
	case 0:
		return telemetry.NoopTelemetry{}, cleanup, nil
	case 1:
		return sinks[0], cleanup, nil
	default:
		return telemetry.NewMultiplexTelemetry(sinks...), cleanup, nil
	}
}
