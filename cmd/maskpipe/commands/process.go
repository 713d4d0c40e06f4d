package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/maskpipe/maskpipe/internal/logger"
	"github.com/maskpipe/maskpipe/internal/output"
	"github.com/maskpipe/maskpipe/internal/process"
	"github.com/maskpipe/maskpipe/internal/segment"
	"github.com/maskpipe/maskpipe/internal/shutdown"
	"github.com/maskpipe/maskpipe/internal/transport"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the processing process",
	Long: `Run the inference-facing process: accept the capture connection,
remove the background from each frame, and write one JPEG per processed
frame into the output directory, named by sequence number.

An interrupt propagates a stop to the capture side; frames already
buffered still get processed before the process exits.`,
	Example: `  # Process into the default output directory
  maskpipe process

  # Process into a run-specific directory
  maskpipe process --output-dir runs/2024-05-11`,
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().String("output-dir", "", "directory for processed frames")

	viper.BindPFlag("output_dir", processCmd.Flags().Lookup("output-dir"))
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if dir := viper.GetString("output_dir"); dir != "" {
		cfg.Process.OutputDir = dir
	}

	log := logger.WithComponent("process-cmd")

	coord := shutdown.New()
	coord.NotifySignals()

	seg, err := segment.NewColorKey(cfg.Segment)
	if err != nil {
		return fmt.Errorf("failed to initialize segmenter: %w", err)
	}

	sink, err := output.NewSink(cfg.Process.OutputDir, cfg.Process.JPEGQuality)
	if err != nil {
		return fmt.Errorf("failed to prepare output: %w", err)
	}

	recv, err := transport.Listen(cfg.Transport.Addr, cfg.Transport.Capacity)
	if err != nil {
		return fmt.Errorf("failed to start frame link: %w", err)
	}

	// A local interrupt propagates to the capture side and triggers
	// the drain.
	go func() {
		<-coord.Done()
		recv.RequestStop()
	}()

	consumer := process.NewConsumer(recv, seg, sink, coord, cfg.Process)
	runErr := consumer.Run()

	recv.Close()

	if runErr != nil {
		return runErr
	}
	log.Info().
		Uint64("written", sink.Written()).
		Str("dir", cfg.Process.OutputDir).
		Msg("Processing stopped cleanly")
	return nil
}
