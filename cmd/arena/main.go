package main

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"

	"github.com/luca-patrignani/mental-arena/config"
	"github.com/luca-patrignani/mental-arena/network"
	arenasignal "github.com/luca-patrignani/mental-arena/signal"
	"github.com/luca-patrignani/mental-arena/store"
)

const (
	menuHost     = "Host a match"
	menuJoin     = "Join a match"
	menuPractice = "Practice against the computer"
	menuResume   = "Resume a match"
	menuQuit     = "Quit"
)

// app carries what every flow needs.
type app struct {
	cfg    config.Arena
	logger *slog.Logger
	store  *store.Store
	signer *arenasignal.Signer
}

func main() {
	// Create a new slog handler with the default PTerm logger
	handler := pterm.NewSlogHandler(&pterm.DefaultLogger)
	logger := slog.New(handler)
	slog.SetDefault(logger)

	_ = pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("M", pterm.FgRed.ToStyle()),
		putils.LettersFromStringWithStyle("ental ", pterm.FgDarkGray.ToStyle()),
		putils.LettersFromStringWithStyle("A", pterm.FgRed.ToStyle()),
		putils.LettersFromStringWithStyle("rena", pterm.FgDarkGray.ToStyle()),
	).Render()

	cfg, err := config.LoadArena()
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("arena stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Arena, logger *slog.Logger) error {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	name, _ := pterm.DefaultInteractiveTextInput.WithDefaultText("Enter your username").WithDefaultValue(cfg.PlayerName).Show()
	pterm.Println()
	if name == "" {
		name = cfg.PlayerName
	}
	cfg.PlayerName = name
	signer, err := st.Identity(ctx, name)
	if err != nil {
		return err
	}
	pterm.Info.Printfln("Playing as %s (%s)", pterm.LightCyan(name), shortID(signer.Identity()))

	a := &app{cfg: cfg, logger: logger, store: st, signer: signer}
	for {
		choice, _ := pterm.DefaultInteractiveSelect.
			WithDefaultText("What do you want to do?").
			WithOptions([]string{menuHost, menuJoin, menuPractice, menuResume, menuQuit}).
			Show()
		var err error
		switch choice {
		case menuHost:
			err = a.host(ctx)
		case menuJoin:
			err = a.join(ctx)
		case menuPractice:
			err = a.practice(ctx)
		case menuResume:
			err = a.resume(ctx)
		case menuQuit:
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			pterm.Error.Println(err.Error())
		}
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// connect opens a client on the board at url and synchronizes its clock.
func (a *app) connect(ctx context.Context, url string) (*network.Client, error) {
	opts := []network.ClientOption{
		network.WithTimeout(a.cfg.SendTimeout),
		network.WithClientLogger(a.logger),
	}
	if a.cfg.CAFile != "" {
		pem, err := os.ReadFile(a.cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificate in %s", a.cfg.CAFile)
		}
		opts = append(opts, network.WithLimitedCAs(pool))
	}
	client := network.NewClient(url, a.signer.Identity(), opts...)
	spinner, _ := pterm.DefaultSpinner.Start("Connecting to the board at " + url + " ...")
	if err := client.Connect(ctx); err != nil {
		spinner.Fail()
		return nil, err
	}
	spinner.Success()
	return client, nil
}

// askBoard asks for the board address, completing partial addresses from
// the local IP.
func (a *app) askBoard() (string, error) {
	def := a.cfg.BoardURL
	if def == "" {
		def = fmt.Sprintf("localhost:%d", defaultBoardPort)
	}
	input, _ := pterm.DefaultInteractiveTextInput.
		WithDefaultText("Enter the board address (url, host[:port] or the last octets of an ip)").
		WithDefaultValue(def).
		Show()
	pterm.Println()
	return boardURL(input, localIP(), a.cfg.CAFile != "")
}
