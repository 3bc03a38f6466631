// Package args parses the command line into a generation request.
package args

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/markis/learnpath/internal/config"
)

// minTopicLength is the shortest topic the service accepts.
const minTopicLength = 5

// Arguments represents the command-line arguments structure.
type Arguments struct {
	Topic        string
	Endpoint     string
	Timeout      time.Duration
	UsePlainText bool
	Verbose      bool
}

// ParseArgs parses command-line arguments and stdin input, returning an
// Arguments struct. The topic comes from the first positional argument or,
// when input is piped, from stdin.
func ParseArgs(cfg config.Config) (Arguments, error) {
	args := Arguments{}

	rootCmd := &cobra.Command{
		Use:   "learnpath [flags] [topic]",
		Short: "Stream an AI-generated learning path for a topic to your terminal",
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			if len(cmdArgs) > 0 {
				args.Topic = cmdArgs[0]
			}
			return nil
		},
		SilenceErrors: true, // We'll handle error reporting
		SilenceUsage:  true, // We'll handle usage display
	}

	rootCmd.PersistentFlags().StringVar(&args.Endpoint, "endpoint", cfg.Endpoint, "The generation endpoint to request")
	rootCmd.PersistentFlags().DurationVar(&args.Timeout, "timeout", 5*time.Minute, "Bound on one whole generation run")
	rootCmd.PersistentFlags().BoolVar(&args.UsePlainText, "plain", shouldUsePlainText(cfg), "Disable markdown rendering")
	rootCmd.PersistentFlags().BoolVar(&args.Verbose, "verbose", false, "Enable debug logging")

	// Read from stdin if available
	if stat, err := os.Stdin.Stat(); err == nil && (stat.Mode()&os.ModeCharDevice) == 0 {
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024) // 1MB max buffer
		var buf strings.Builder
		for scanner.Scan() {
			buf.WriteString(scanner.Text())
			buf.WriteByte('\n')
		}
		if err := scanner.Err(); err != nil {
			return Arguments{}, fmt.Errorf("failed to read stdin: %w", err)
		}
		args.Topic = strings.TrimSpace(buf.String())
	}

	if err := rootCmd.Execute(); err != nil {
		return Arguments{}, err
	}

	if err := ValidateTopic(args.Topic); err != nil {
		return Arguments{}, err
	}

	return args, nil
}

// ValidateTopic rejects topics the service would refuse outright.
func ValidateTopic(topic string) error {
	if topic == "" {
		return errors.New("no topic provided")
	}
	if utf8.RuneCountInString(topic) < minTopicLength {
		return fmt.Errorf("topic must be at least %d characters", minTopicLength)
	}
	return nil
}

// shouldUsePlainText determines if plain text output should be used based on environment and terminal settings.
func shouldUsePlainText(cfg config.Config) bool {
	// Check if the rendering format is set to plain
	if cfg.Render.Format == "plain" {
		return true
	}
	if cfg.Render.Format == "markdown" {
		return false
	}

	// Check if output is being redirected
	if fileInfo, _ := os.Stdout.Stat(); fileInfo != nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			return true
		}
	}

	// Check for NO_COLOR environment variable
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return true
	}

	// Check for TERM=dumb
	if term := os.Getenv("TERM"); term == "dumb" {
		return true
	}

	return false
}
