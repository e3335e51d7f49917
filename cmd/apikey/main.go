package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"promptsmith/internal/infra"
	"promptsmith/internal/infra/credentials"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "apikey",
		Short: "Manage the stored Gemini API key",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SilenceUsage = true
		},
	}

	var keyFlag string
	setCmd := &cobra.Command{
		Use:   "set [key]",
		Short: "Store an API key (reads stdin when no key is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := keyFlag
			if len(args) == 1 {
				key = args[0]
			}
			if strings.TrimSpace(key) == "" {
				key = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
			}
			if key == "" {
				read, err := readKey(cmd.InOrStdin())
				if err != nil {
					return err
				}
				key = read
			}
			if key == "" {
				return errors.New("an API key is required as an argument, via --key, GEMINI_API_KEY or stdin")
			}
			return withStore(cmd, func(ctx context.Context, store *credentials.Store) error {
				if err := store.Set(ctx, key); err != nil {
					return fmt.Errorf("persist api key: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored %s\n", credentials.Mask(key))
				return nil
			})
		},
	}
	setCmd.Flags().StringVar(&keyFlag, "key", "", "API key to store")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the stored API key, masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, store *credentials.Store) error {
				masked := store.Masked(ctx)
				if masked == "" {
					fmt.Fprintln(cmd.OutOrStdout(), "no API key stored")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), masked)
				return nil
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, store *credentials.Store) error {
				if err := store.Set(ctx, ""); err != nil {
					return fmt.Errorf("clear api key: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "API key cleared")
				return nil
			})
		},
	}

	root.AddCommand(setCmd, showCmd, clearCmd)
	return root
}

func withStore(cmd *cobra.Command, fn func(ctx context.Context, store *credentials.Store) error) error {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.CredentialBackend == infra.CredentialBackendMemory {
		return errors.New("CREDENTIAL_BACKEND=memory does not persist; use file or postgres")
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "apikey").Logger()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	store, closeStore, err := credentials.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(ctx, store)
}

func readKey(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
