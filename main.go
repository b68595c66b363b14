package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	tele "gopkg.in/telebot.v3"

	"modrelay/modbot"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var cfgErr *modbot.ConfigError
		if errors.As(err, &cfgErr) {
			fmt.Fprintln(os.Stderr, "Please update the .env file or set environment variables.")
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string
	var lockFile string
	var isVerbose bool

	cmd := &cobra.Command{
		Use:           "modrelay",
		Short:         "Telegram bot that routes photo submissions through owner approval to a channel",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var envFiles []string
			if envFile != "" {
				envFiles = append(envFiles, envFile)
			}
			cfg, err := modbot.LoadConfig(envFiles...)
			if err != nil {
				return err
			}
			if lockFile != "" {
				cfg.LockFile = lockFile
			}
			return run(cfg, isVerbose)
		},
	}

	cmd.Flags().StringVar(&envFile, "env", "", "path to a .env file (default ./.env)")
	cmd.Flags().StringVar(&lockFile, "lock-file", "", "lock file guarding against a second instance with the same token")
	cmd.Flags().BoolVar(&isVerbose, "verbose", false, "run tg bot in verbose mode")
	return cmd
}

func run(cfg modbot.Config, isVerbose bool) error {
	lock := flock.New(cfg.LockFile)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", cfg.LockFile, err)
	}
	if !locked {
		return fmt.Errorf("another instance already holds %s", cfg.LockFile)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Printf("failed to release lock: %s", err.Error())
		}
	}()

	bot, err := modbot.NewBot(cfg, tele.Settings{
		Token:       cfg.Token,
		Poller:      &tele.LongPoller{Timeout: time.Second * 60},
		Synchronous: true,
		Verbose:     isVerbose,
		ParseMode:   "",
		OnError:     nil,
	})
	if err != nil {
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signals
		log.Printf("shutting down...")
		bot.Stop()
	}()

	bot.Start()
	return nil
}
