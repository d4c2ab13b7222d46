// Package room implements the single implicit room: membership, per-sender
// history, and the periodic mixing tick.
package room

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dkeye/voicerelay/internal/audio"
)

// ClientID is the opaque, transport-derived identity a Client is keyed by.
type ClientID string

// Client is the uniform interface the Room drives on every tick. Send must
// be fire-and-forget: it must not block the tick and must not reacquire the
// Room's lock.
type Client interface {
	ID() ClientID
	Send(audio.Packet)
}

// Config carries the Room's tunables, mirroring internal/config.Config.
type Config struct {
	MaxHistory      int
	ActivityTimeout time.Duration
	MixInterval     time.Duration
}

// Room owns the single implicit room's membership, history and activity
// state behind one exclusive lock, plus the periodic mixing tick.
type Room struct {
	cfg Config
	log zerolog.Logger
	now func() time.Time

	mu           sync.Mutex
	members      map[ClientID]Client
	history      map[ClientID][]audio.Packet
	lastActivity map[ClientID]time.Time
}

// New constructs an empty Room. The tick loop is started separately by Run,
// so construction never blocks and never spawns goroutines.
func New(cfg Config, log zerolog.Logger) *Room {
	return &Room{
		cfg:          cfg,
		log:          log.With().Str("module", "room").Logger(),
		now:          time.Now,
		members:      make(map[ClientID]Client),
		history:      make(map[ClientID][]audio.Packet),
		lastActivity: make(map[ClientID]time.Time),
	}
}

// AddClient registers c, idempotent by c.ID(). Re-adding an already-present
// id replaces the Client entry but leaves history and last-activity intact.
func (r *Room) AddClient(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, existed := r.members[c.ID()]
	r.members[c.ID()] = c
	if !existed {
		r.log.Info().Str("client", string(c.ID())).Msg("client joined")
	}
}

// RemoveClient removes id from members, history and last-activity. Idempotent.
func (r *Room) RemoveClient(id ClientID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[id]; !ok {
		return
	}
	delete(r.members, id)
	delete(r.history, id)
	delete(r.lastActivity, id)
	r.log.Info().Str("client", string(id)).Msg("client removed")
}

// GetClient looks up a member by id.
func (r *Room) GetClient(id ClientID) (Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.members[id]
	return c, ok
}

// MemberCount reports the current number of members, for admin introspection.
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Ingest appends pkt to sender's history, evicting the oldest entry if over
// MaxHistory, and refreshes its last-activity timestamp. A sender not (yet)
// present in members is a silent drop: the server glue is responsible for
// calling AddClient before the first Ingest on either transport.
func (r *Room) Ingest(sender ClientID, pkt audio.Packet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[sender]; !ok {
		return
	}
	h := append(r.history[sender], pkt)
	if over := len(h) - r.cfg.MaxHistory; over > 0 {
		h = h[over:]
	}
	r.history[sender] = h
	r.lastActivity[sender] = r.now()
}

// Run drives the periodic mixing tick until ctx is canceled.
func (r *Room) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.MixInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick()
		}
	}
}

// tick performs one mixing round: every member receives the mix of all
// other currently-active senders' buffered history, history is then
// cleared for everyone, and senders idle past ActivityTimeout are evicted
// from history/last-activity (but not membership).
func (r *Room) tick() {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, c := range r.members {
		var toMix []audio.Packet
		for sender, pkts := range r.history {
			if sender == id || len(pkts) == 0 {
				continue
			}
			if now.Sub(r.lastActivity[sender]) > r.cfg.ActivityTimeout {
				continue
			}
			toMix = append(toMix, pkts...)
		}
		if len(toMix) == 0 {
			continue
		}
		mixed := audio.Mix(toMix)
		c.Send(mixed)
	}

	for sender := range r.history {
		delete(r.history, sender)
	}

	for sender, last := range r.lastActivity {
		if now.Sub(last) > r.cfg.ActivityTimeout {
			delete(r.lastActivity, sender)
			r.log.Debug().Str("client", string(sender)).Msg("activity evicted")
		}
	}
}
