package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"lyricsync/internal/config"
	"lyricsync/internal/lyrics"
	"lyricsync/internal/player"
	"lyricsync/internal/synchronizer"
	"lyricsync/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		socketFlag = flag.String("socket", "", "Daemon socket (default from config)")
		lrcFlag    = flag.String("lrc", "", "Play a local .lrc file with a simulated clock instead of connecting")
		lengthFlag = flag.Int64("length", 0, "Song length in ms for -lrc (default: last line end)")
		demoFlag   = flag.Bool("demo", false, "Play the built-in demo lyrics")
		logFlag    = flag.String("log", "", "Write logs to this file")
	)
	flag.Parse()

	// The alt screen owns stdout/stderr while running.
	log.Logger = zerolog.Nop()
	if *logFlag != "" {
		f, err := os.OpenFile(*logFlag, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		log.Logger = zerolog.New(f).With().Timestamp().Logger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		source <-chan tea.Msg
		err    error
	)
	switch {
	case *demoFlag:
		source = standalone(ctx, tui.DemoCatalog(), player.DefaultClockLength)
	case *lrcFlag != "":
		source, err = fromFile(ctx, *lrcFlag, *lengthFlag)
	default:
		socket := *socketFlag
		if socket == "" {
			socket = config.Load().App.SocketPath
		}
		var disconnect func() error
		source, disconnect, err = tui.FromSocket(socket)
		if err == nil {
			defer disconnect()
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := tui.Run(source); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func fromFile(ctx context.Context, path string, length int64) (<-chan tea.Msg, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	catalog, err := lyrics.BuildCatalog(string(raw), length)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if length <= 0 {
		lines := catalog.Lines()
		length = lines[len(lines)-1].End
	}
	return standalone(ctx, catalog, length), nil
}

// standalone runs a synchronizer on a looping simulated clock.
func standalone(ctx context.Context, catalog *lyrics.Catalog, length int64) <-chan tea.Msg {
	clock := player.NewClock(player.DefaultClockInterval, player.DefaultClockInterval.Milliseconds(), length)
	s := synchronizer.New(catalog, clock)
	msgs := tui.FromSynchronizer(ctx, s)
	go s.Run(ctx)
	s.PlayMusic(ctx)
	return msgs
}
