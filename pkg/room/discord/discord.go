// Package discord provides a [room.Room] implementation backed by Discord
// guilds via the bwmarrin/discordgo library. A meeting room maps onto a
// voice channel (audio) plus one text channel per data topic: the agenda
// topic carries the engine's JSON state snapshots, the chat topic carries
// chat mentions and the facilitator's typed replies.
//
// The adapter requires an active *discordgo.Session (owned by the caller)
// and a guild ID. Each call to [Room.Join] joins the specified voice channel
// and returns a [Conn] that demuxes per-participant audio input, muxes the
// facilitator's audio output, and bridges text-channel traffic to the
// data-channel contract in package room.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/room"
)

// Compile-time interface assertion.
var _ room.Room = (*Room)(nil)

// Room implements [room.Room] on top of a discordgo session.
//
// Room is safe for concurrent use.
type Room struct {
	session *discordgo.Session
	guildID string
	topics  map[string]string // data topic -> text channel ID
}

// Option configures a [Room].
type Option func(*Room)

// WithTopicChannel maps a data-channel topic to a guild text channel.
// Payloads published on the topic are posted there, and messages written
// there are delivered to the data callback. Topics without a mapping
// reject Publish and never deliver messages.
func WithTopicChannel(topic, channelID string) Option {
	return func(r *Room) {
		r.topics[topic] = channelID
	}
}

// New creates a Discord room transport for the given session and guild.
func New(session *discordgo.Session, guildID string, opts ...Option) *Room {
	r := &Room{
		session: session,
		guildID: guildID,
		topics:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Join enters the voice channel identified by roomID and returns an active
// [room.Conn]. The supplied ctx governs the join attempt only; once joined,
// the Conn lives until [Conn.Leave] is called.
func (r *Room) Join(ctx context.Context, roomID string) (room.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("discord: join voice channel %q: %w", roomID, err)
	}

	// mute=false (we send audio), deaf=false (we receive audio).
	vc, err := r.session.ChannelVoiceJoin(r.guildID, roomID, false, false)
	if err != nil {
		return nil, fmt.Errorf("discord: join voice channel %q: %w", roomID, err)
	}

	conn, err := newConn(vc, r.session, r.guildID, r.topics)
	if err != nil {
		_ = vc.Disconnect()
		return nil, fmt.Errorf("discord: create connection: %w", err)
	}
	return conn, nil
}
