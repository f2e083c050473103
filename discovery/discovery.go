// Package discovery announces hosted lobbies on the local network with UDP
// multicast and collects the announcements of other hosts.
//
// A host announces itself and keeps doing so until it is closed:
//
//	d, err := discovery.Announce(discovery.Announcement{
//		Name:  "alice",
//		Host:  signer.Identity(),
//		Board: "http://192.168.1.10:8080",
//	}, port, time.Second, logger)
//
// A guest browses until it finds a lobby it likes:
//
//	lobbies, err := discovery.Browse(ctx, port, logger)
//	for a := range lobbies { ... }
package discovery

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	multicastAddress = "239.0.0.1"
	keySize          = 8
	maxDatagram      = 1024
)

// Discover announces Info every Interval and receives the announcements of
// other instances on Entries. An empty Info only listens. Configure the
// exported fields before calling Start.
type Discover struct {
	Info     []byte
	Port     uint16
	Interval time.Duration
	Logger   *slog.Logger
	// Entries is set by Start and closed by Close.
	Entries <-chan Entry

	entries  chan Entry
	conn     *net.UDPConn
	sendConn *net.UDPConn
	key      []byte
	done     chan struct{}
	wg       sync.WaitGroup
}

// Entry is an announcement received from another instance.
type Entry struct {
	Info []byte
	From net.Addr
	Time time.Time
}

// Start joins the multicast group and starts listening and announcing.
func (d *Discover) Start() error {
	if d.Interval <= 0 {
		d.Interval = time.Second
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if len(d.Info)+keySize > maxDatagram {
		return fmt.Errorf("discovery: info of %d bytes does not fit a datagram", len(d.Info))
	}
	addr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", multicastAddress, d.Port))
	if err != nil {
		return err
	}
	d.conn, err = net.ListenMulticastUDP("udp4", nil, addr)
	if err != nil {
		return fmt.Errorf("join multicast group: %w", err)
	}
	d.sendConn, err = net.DialUDP("udp4", nil, addr)
	if err != nil {
		d.conn.Close()
		return fmt.Errorf("dial multicast group: %w", err)
	}
	d.key = []byte(uuid.NewString()[:keySize])
	d.entries = make(chan Entry, 10)
	d.Entries = d.entries
	d.done = make(chan struct{})

	d.wg.Add(1)
	go d.listen()
	if len(d.Info) > 0 {
		d.wg.Add(1)
		go d.announce()
	}
	return nil
}

// Close stops both loops, closes the connections and then Entries.
func (d *Discover) Close() error {
	close(d.done)
	err := errors.Join(d.conn.Close(), d.sendConn.Close())
	d.wg.Wait()
	close(d.entries)
	return err
}

func (d *Discover) listen() {
	defer d.wg.Done()
	buffer := make([]byte, maxDatagram)
	for {
		n, from, err := d.conn.ReadFromUDP(buffer)
		if errors.Is(err, net.ErrClosed) {
			return
		}
		if err != nil {
			d.Logger.Warn("discovery read failed", "err", err)
			continue
		}
		if n < keySize || string(buffer[:keySize]) == string(d.key) {
			continue
		}
		entry := Entry{
			Info: append([]byte(nil), buffer[keySize:n]...),
			From: from,
			Time: time.Now(),
		}
		select {
		case d.entries <- entry:
		case <-d.done:
			return
		default:
			d.Logger.Debug("discovery entry dropped", "from", from)
		}
	}
}

func (d *Discover) announce() {
	defer d.wg.Done()
	message := append(append([]byte(nil), d.key...), d.Info...)
	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()
	for {
		if _, err := d.sendConn.Write(message); err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			d.Logger.Warn("discovery announce failed", "err", err)
		}
		select {
		case <-d.done:
			return
		case <-ticker.C:
		}
	}
}
