// Command chatcli drives one chat session from the terminal: log in, send
// messages, optionally export the transcript, then close the browser.
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

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/chat-relay/backend/internal/app"
	"github.com/zhouzirui/chat-relay/backend/internal/config"
	"github.com/zhouzirui/chat-relay/backend/internal/logging"
	"github.com/zhouzirui/chat-relay/backend/internal/service/chat"
)

type options struct {
	email    string
	password string
	messages []string
	export   bool
	driver   string
	headless bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "chatcli",
		Short: "Drive a web chat session from the terminal",
		Long: `chatcli launches a browser, optionally signs in, sends each --message
(or every line read from stdin when none is given) and prints the replies.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.email, "email", "", "account email; skip to use an already signed-in profile")
	f.StringVar(&opts.password, "password", "", "account password")
	f.StringArrayVarP(&opts.messages, "message", "m", nil, "message to send (repeatable)")
	f.BoolVar(&opts.export, "export", false, "export the transcript to CSV before closing")
	f.StringVar(&opts.driver, "driver", "", "browser driver override (chromedp or rod)")
	f.BoolVar(&opts.headless, "headless", false, "run the browser headless")

	return cmd
}

func run(ctx context.Context, opts *options, in io.Reader, out io.Writer) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if opts.driver != "" {
		cfg.Browser.Driver = config.Driver(opts.driver)
	}
	if opts.headless {
		cfg.Browser.Headless = true
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	svc, err := app.NewChatService(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.CloseChat(context.Background()); err != nil {
			logger.Warn("close chat failed", zap.Error(err))
		}
	}()

	if opts.email != "" {
		res, err := svc.Login(ctx, opts.email, opts.password)
		if err != nil {
			return err
		}
		if !res.Success {
			return fmt.Errorf("login failed: %s", res.Error)
		}
		fmt.Fprintln(out, "logged in")
	}

	if len(opts.messages) > 0 {
		for _, m := range opts.messages {
			if err := send(ctx, svc, out, m); err != nil {
				return err
			}
		}
	} else if err := sendLines(ctx, svc, in, out); err != nil {
		return err
	}

	if opts.export {
		path, err := svc.ExportChatHistory()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "exported to %s\n", path)
	}
	return nil
}

func sendLines(ctx context.Context, svc *chat.Service, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := send(ctx, svc, out, line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func send(ctx context.Context, svc *chat.Service, out io.Writer, message string) error {
	fmt.Fprintf(out, "> %s\n", message)
	reply, err := svc.SendMessage(ctx, message)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("send %q: %w", message, err)
	}
	fmt.Fprintf(out, "< %s\n", reply)
	return nil
}
