package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/beka-birhanu/keymaze/client"
	"github.com/beka-birhanu/keymaze/config"
	"github.com/beka-birhanu/keymaze/logging"
	"github.com/beka-birhanu/keymaze/transport"
	"github.com/beka-birhanu/keymaze/tui"
	"github.com/gdamore/tcell/v2"
)

func main() {
	os.Exit(run())
}

func run() int {
	clientLogger, flush := logging.NewFile(config.Envs.ClientLog, "CLIENT")
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := transport.Dial(ctx, config.Envs.ServerAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s[CLIENT]%s %v\n", config.ColorRed, config.ColorReset, err)
		return 1
	}
	defer conn.Close()
	clientLogger.Info(fmt.Sprintf("connected to %s", conn.RemoteAddr()))

	ts, err := tcell.NewScreen()
	if err == nil {
		err = ts.Init()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s[CLIENT]%s opening terminal: %v\n", config.ColorRed, config.ColorReset, err)
		return 1
	}
	screen := tui.New(ts)
	screen.Start()

	c := client.New(&client.Config{Conn: conn, Screen: screen, Logger: clientLogger})
	outcome, err := c.Run(ctx)
	if outcome == client.Won {
		screen.Banner("Well done! You have found all the keys!\nPress an arrow key or Escape to exit.")
		_, _ = screen.Direction(context.Background())
	}
	screen.Close()

	if err != nil {
		clientLogger.Error(fmt.Sprintf("session failed: %v", err))
		fmt.Fprintf(os.Stderr, "%s[CLIENT]%s %v\n", config.ColorRed, config.ColorReset, err)
		var te *client.TaskError
		if errors.As(err, &te) {
			_, _ = os.Stderr.Write(te.Stack)
		}
		return 1
	}

	clientLogger.Info(fmt.Sprintf("session ended: %s", outcome))
	switch outcome {
	case client.Won:
		fmt.Println("You found all the keys together. Well done!")
		return 0
	case client.Quit:
		fmt.Println("Bye!")
		return 0
	}
	fmt.Fprintf(os.Stderr, "%s[CLIENT]%s lost connection to the server\n", config.ColorRed, config.ColorReset)
	return 1
}
