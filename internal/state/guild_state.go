package state

import (
	"sync"
	"sync/atomic"
	"time"
)

type RaidPhase uint8

const (
	PhaseIdle RaidPhase = iota
	PhaseRaidActive
)

func (p RaidPhase) String() string {
	if p == PhaseRaidActive {
		return "RAID_ACTIVE"
	}
	return "IDLE"
}

// GuildCounters are lifetime totals for one guild since process start.
type GuildCounters struct {
	RaidsDetected   atomic.Uint32
	RaidsSuppressed atomic.Uint32
	MembersBanned   atomic.Uint32
	MembersKicked   atomic.Uint32
	PatternsFlagged atomic.Uint32
	LastRaidAt      atomic.Int64
}

type CounterSnapshot struct {
	RaidsDetected   uint32
	RaidsSuppressed uint32
	MembersBanned   uint32
	MembersKicked   uint32
	PatternsFlagged uint32
	LastRaidAt      time.Time
}

type GuildState struct {
	mu       sync.RWMutex
	counters map[string]*GuildCounters
}

func NewGuildState() *GuildState {
	return &GuildState{counters: make(map[string]*GuildCounters)}
}

func (g *GuildState) Counters(guildID string) *GuildCounters {
	g.mu.RLock()
	c, ok := g.counters[guildID]
	g.mu.RUnlock()
	if ok {
		return c
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok = g.counters[guildID]; !ok {
		c = &GuildCounters{}
		g.counters[guildID] = c
	}
	return c
}

func (g *GuildState) RecordRaid(guildID string, at time.Time) {
	c := g.Counters(guildID)
	c.RaidsDetected.Add(1)
	c.LastRaidAt.Store(at.UnixNano())
}

func (g *GuildState) Snapshot(guildID string) CounterSnapshot {
	c := g.Counters(guildID)
	s := CounterSnapshot{
		RaidsDetected:   c.RaidsDetected.Load(),
		RaidsSuppressed: c.RaidsSuppressed.Load(),
		MembersBanned:   c.MembersBanned.Load(),
		MembersKicked:   c.MembersKicked.Load(),
		PatternsFlagged: c.PatternsFlagged.Load(),
	}
	if ns := c.LastRaidAt.Load(); ns != 0 {
		s.LastRaidAt = time.Unix(0, ns)
	}
	return s
}

func (g *GuildState) Reset(guildID string) {
	g.mu.Lock()
	delete(g.counters, guildID)
	g.mu.Unlock()
}
