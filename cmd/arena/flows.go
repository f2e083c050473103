package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pterm/pterm"

	"github.com/luca-patrignani/mental-arena/discovery"
	"github.com/luca-patrignani/mental-arena/domain/combat"
	"github.com/luca-patrignani/mental-arena/ledger"
	"github.com/luca-patrignani/mental-arena/lobby"
	"github.com/luca-patrignani/mental-arena/network"
	"github.com/luca-patrignani/mental-arena/signal"
	"github.com/luca-patrignani/mental-arena/turn"
)

const (
	announceInterval = 2 * time.Second
	browseTimeout    = 5 * time.Second
	manualEntry      = "Enter the host manually"
)

var errLedgerOverNetwork = errors.New("ledger verification is only available in practice matches, set ARENA_VERIFY_AUTHORITY=local to play over a board")

func (a *app) lobbyConfig(transport turn.Transport) lobby.Config {
	return lobby.Config{
		Transport:    transport,
		Signer:       a.signer,
		PollInterval: a.cfg.PollInterval,
		Legacy:       a.cfg.Legacy,
		Logger:       a.logger,
	}
}

// sessionConfig fills the parts of a session configuration shared by every
// flow. The lobby completes signer, opponent and classifier.
func (a *app) sessionConfig(ctx context.Context, client *network.Client) (turn.Config, error) {
	engine, err := a.cfg.Engine()
	if err != nil {
		return turn.Config{}, err
	}
	cfg := turn.Config{
		Engine:         engine,
		Persister:      a.store,
		MatchID:        uuid.NewString(),
		PollInterval:   a.cfg.PollInterval,
		AnimationDelay: a.cfg.AnimationDelay,
		Logger:         a.logger,
	}
	if client != nil {
		wake, err := client.Feed(ctx)
		if err != nil {
			a.logger.Warn("live feed unavailable, polling the board", "err", err)
		} else {
			cfg.Wake = wake
		}
	}
	return cfg, nil
}

func (a *app) networkAuthority() error {
	authority, err := a.cfg.Authority()
	if err != nil {
		return err
	}
	if authority == turn.AuthorityLedger {
		return errLedgerOverNetwork
	}
	return nil
}

func (a *app) host(ctx context.Context) error {
	if err := a.networkAuthority(); err != nil {
		return err
	}
	url, err := a.askBoard()
	if err != nil {
		return err
	}
	client, err := a.connect(ctx, url)
	if err != nil {
		return err
	}
	l, err := lobby.Host(ctx, a.lobbyConfig(client))
	if err != nil {
		return err
	}

	announcer, err := discovery.Announce(discovery.Announcement{
		Name:  a.cfg.PlayerName,
		Host:  a.signer.Identity(),
		Board: url,
	}, a.cfg.DiscoveryPort, announceInterval, a.logger)
	if err != nil {
		a.logger.Warn("could not announce the lobby on the local network", "err", err)
	}
	pterm.Info.Printfln("Your host id is %s", pterm.LightCyan(a.signer.Identity()))

	spinner, _ := pterm.DefaultSpinner.Start("Waiting for an opponent ...")
	guest, err := l.WaitForGuest(ctx)
	if announcer != nil {
		_ = announcer.Close()
	}
	if err != nil {
		spinner.Fail()
		return err
	}
	spinner.Success("Opponent " + shortID(guest) + " joined")

	if err := a.draft(ctx, l); err != nil {
		_ = l.Leave(context.WithoutCancel(ctx))
		return err
	}
	cfg, err := a.sessionConfig(ctx, client)
	if err != nil {
		return err
	}
	sess, err := l.Session(cfg)
	if err != nil {
		return err
	}
	return a.play(ctx, sess, shortID(guest), nil)
}

func (a *app) join(ctx context.Context) error {
	if err := a.networkAuthority(); err != nil {
		return err
	}
	target, err := a.chooseLobby(ctx)
	if err != nil {
		return err
	}
	client, err := a.connect(ctx, target.Board)
	if err != nil {
		return err
	}
	l, err := lobby.Join(ctx, a.lobbyConfig(client), target.Host)
	if err != nil {
		return err
	}
	spinner, _ := pterm.DefaultSpinner.Start("Waiting for " + target.Name + " to accept ...")
	if err := l.WaitForAccept(ctx); err != nil {
		spinner.Fail()
		return err
	}
	spinner.Success()

	if err := a.draft(ctx, l); err != nil {
		_ = l.Leave(context.WithoutCancel(ctx))
		return err
	}
	cfg, err := a.sessionConfig(ctx, client)
	if err != nil {
		return err
	}
	sess, err := l.Session(cfg)
	if err != nil {
		return err
	}
	return a.play(ctx, sess, target.Name, nil)
}

// chooseLobby lists the lobbies announced on the local network and falls
// back to asking for the board and host identity.
func (a *app) chooseLobby(ctx context.Context) (discovery.Announcement, error) {
	var found []discovery.Announcement
	browseCtx, cancel := context.WithTimeout(ctx, browseTimeout)
	defer cancel()
	lobbies, err := discovery.Browse(browseCtx, a.cfg.DiscoveryPort, a.logger)
	if err != nil {
		a.logger.Warn("could not browse the local network", "err", err)
	} else {
		spinner, _ := pterm.DefaultSpinner.Start("Looking for lobbies on the local network ...")
		for l := range lobbies {
			found = append(found, l)
		}
		spinner.Success(fmt.Sprintf("Found %d lobbies", len(found)))
	}
	if ctx.Err() != nil {
		return discovery.Announcement{}, ctx.Err()
	}

	if len(found) > 0 {
		options := make([]string, 0, len(found)+1)
		for _, l := range found {
			options = append(options, fmt.Sprintf("%s (%s) on %s", l.Name, shortID(l.Host), l.Board))
		}
		options = append(options, manualEntry)
		choice, _ := pterm.DefaultInteractiveSelect.WithDefaultText("Select a lobby").WithOptions(options).Show()
		for i, o := range options[:len(found)] {
			if o == choice {
				return found[i], nil
			}
		}
	}

	url, err := a.askBoard()
	if err != nil {
		return discovery.Announcement{}, err
	}
	host, _ := pterm.DefaultInteractiveTextInput.WithDefaultText("Enter the host id").Show()
	pterm.Println()
	target := discovery.Announcement{Name: shortID(host), Host: host, Board: url}
	return target, target.Validate()
}

// draft runs the snake draft, asking the local player for its picks.
func (a *app) draft(ctx context.Context, l *lobby.Lobby) error {
	d := l.Draft()
	for !d.Done() {
		if !l.MyTurn() {
			spinner, _ := pterm.DefaultSpinner.Start("Waiting for the opponent to pick ...")
			p, err := l.AwaitPick(ctx)
			if err != nil {
				spinner.Fail()
				return err
			}
			spinner.Success("Opponent drafted " + unitName(p.Unit))
			continue
		}

		available := d.Available()
		renderRoster(available)
		options := make([]string, len(available))
		for i, id := range available {
			options[i] = unitName(id)
		}
		choice, _ := pterm.DefaultInteractiveSelect.
			WithDefaultText(fmt.Sprintf("Pick %d of %d", d.Next()+1, len(lobby.SnakeOrder))).
			WithOptions(options).
			Show()
		unit := available[0]
		for i, o := range options {
			if o == choice {
				unit = available[i]
			}
		}
		if err := l.Pick(ctx, unit); err != nil {
			return err
		}
		pterm.Success.Printfln("You drafted %s", unitName(unit))
	}
	return nil
}

func (a *app) resume(ctx context.Context) error {
	if err := a.networkAuthority(); err != nil {
		return err
	}
	matches, err := a.store.Unfinished(ctx)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		pterm.Info.Println("There is no match to resume")
		return nil
	}
	options := make([]string, len(matches))
	for i, m := range matches {
		options[i] = fmt.Sprintf("round %d against %s (%s, %s)", m.Round, shortID(m.Opponent), m.Phase, m.UpdatedAt.Local().Format(time.DateTime))
	}
	choice, _ := pterm.DefaultInteractiveSelect.WithDefaultText("Select a match").WithOptions(options).Show()
	match := matches[0]
	for i, o := range options {
		if o == choice {
			match = matches[i]
		}
	}
	snap, err := a.store.Load(ctx, match.ID)
	if err != nil {
		return err
	}

	url, err := a.askBoard()
	if err != nil {
		return err
	}
	client, err := a.connect(ctx, url)
	if err != nil {
		return err
	}
	cfg, err := a.sessionConfig(ctx, client)
	if err != nil {
		return err
	}
	cfg.MatchID = match.ID
	cfg.Transport = client
	cfg.Signer = a.signer
	sess, err := turn.ResumeSession(cfg, snap)
	if err != nil {
		return err
	}
	return a.play(ctx, sess, shortID(match.Opponent), nil)
}

// practice plays against a bot on an in-process board. With ledger
// authority both players settle their rounds on an in-process arena.
func (a *app) practice(ctx context.Context) error {
	authority, err := a.cfg.Authority()
	if err != nil {
		return err
	}
	botSigner, err := signal.NewSigner()
	if err != nil {
		return err
	}
	board := network.NewBoard()
	me, bot := a.signer.Identity(), botSigner.Identity()

	l, err := lobby.Host(ctx, a.lobbyConfig(board.Endpoint(me)))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	botCfg := a.lobbyConfig(board.Endpoint(bot))
	botCfg.Signer = botSigner
	botCfg.Logger = a.logger.With("player", "bot")
	botLobby := make(chan *lobby.Lobby, 1)
	botErr := make(chan error, 1)
	go func() {
		bl, err := botDraft(ctx, botCfg, me)
		if err != nil {
			botErr <- err
			return
		}
		botLobby <- bl
	}()

	if _, err := l.WaitForGuest(ctx); err != nil {
		return err
	}
	if err := a.draft(ctx, l); err != nil {
		return err
	}
	var bl *lobby.Lobby
	select {
	case bl = <-botLobby:
	case err := <-botErr:
		return fmt.Errorf("bot: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}

	cfg, err := a.sessionConfig(ctx, nil)
	if err != nil {
		return err
	}
	botSessCfg := cfg
	botSessCfg.MatchID = ""
	botSessCfg.Persister = nil
	botSessCfg.Logger = botCfg.Logger
	cfg.Persister = nil

	var (
		arena         *ledger.Arena
		myRef, botRef *referee
	)
	if authority == turn.AuthorityLedger {
		my, opp, err := l.Teams()
		if err != nil {
			return err
		}
		arena, err = ledger.NewArena(cfg.Engine, [2]string{me, bot}, [2]combat.Team{my, opp}, ledger.WithLogger(a.logger))
		if err != nil {
			return err
		}
		mine := ledger.NewClient(arena, me, board.Endpoint(me))
		theirs := ledger.NewClient(arena, bot, board.Endpoint(bot))
		cfg.Authority, cfg.Transport, cfg.Ledger = turn.AuthorityLedger, mine, mine
		botSessCfg.Authority, botSessCfg.Transport, botSessCfg.Ledger = turn.AuthorityLedger, theirs, theirs
		myRef, botRef = &referee{arena: arena, player: me}, &referee{arena: arena, player: bot}
		go tickArena(ctx, arena, arenaTick)
	}

	sess, err := l.Session(cfg)
	if err != nil {
		return err
	}
	botSess, err := bl.Session(botSessCfg)
	if err != nil {
		return err
	}
	go playBot(ctx, botSess, a.cfg.PollInterval, botRef)

	if err := a.play(ctx, sess, "Bot", myRef); err != nil {
		return err
	}
	if arena != nil {
		chain := arena.Chain()
		if err := chain.Verify(); err != nil {
			return fmt.Errorf("settlement chain: %w", err)
		}
		pterm.Info.Printfln("The arena settled the match in %d blocks", len(chain.Blocks()))
	}
	return nil
}
