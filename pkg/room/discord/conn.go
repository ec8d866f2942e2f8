package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/audio"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/room"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/types"
)

// Compile-time interface assertion.
var _ room.Conn = (*Conn)(nil)

const (
	inputChannelBuffer  = 64
	outputChannelBuffer = 64
)

// Conn wraps a discordgo.VoiceConnection and adapts it to the [room.Conn]
// interface. It demuxes incoming Opus packets by SSRC into per-participant
// PCM input streams, encodes outgoing PCM frames to Opus for transmission,
// and bridges the mapped text channels to the data-channel contract.
//
// Conn is safe for concurrent use.
type Conn struct {
	vc      *discordgo.VoiceConnection
	session *discordgo.Session
	guildID string
	botID   string

	topics     map[string]string // data topic -> text channel ID
	topicForCh map[string]string // text channel ID -> data topic

	inputsMu  sync.RWMutex
	inputs    map[string]chan types.AudioFrame // keyed by participant ID (SSRC string until resolved)
	ssrcUser  map[uint32]string                // SSRC -> user ID, from speaking updates
	streamKey map[uint32]string                // SSRC -> input stream key, bound at first packet
	announced map[string]bool                  // join event emitted for this participant ID

	output chan types.AudioFrame

	changeCb func(room.Event)
	changeMu sync.Mutex

	dataCb func(room.DataMessage)
	dataMu sync.Mutex

	// dashboardID is the agenda snapshot message, edited in place so the
	// channel holds one live view instead of a snapshot per heartbeat.
	dashMu      sync.Mutex
	dashboardID string

	done      chan struct{}
	closeOnce sync.Once

	removeHandlers []func()

	// Transport touchpoints, overridden in tests.
	disconnectVC func() error
	sendMessage  func(ctx context.Context, channelID, content string) (string, error)
	editMessage  func(ctx context.Context, channelID, messageID, content string) error
	guildState   func() (*discordgo.Guild, error)
	disconnectID func(ctx context.Context, userID string) error
}

// newConn initialises a Conn for an already-joined voice channel. It starts
// background goroutines for receiving and sending audio and registers the
// gateway handlers for participant and message events.
func newConn(vc *discordgo.VoiceConnection, session *discordgo.Session, guildID string, topics map[string]string) (*Conn, error) {
	c := &Conn{
		vc:         vc,
		session:    session,
		guildID:    guildID,
		topics:     make(map[string]string, len(topics)),
		topicForCh: make(map[string]string, len(topics)),
		inputs:     make(map[string]chan types.AudioFrame),
		ssrcUser:   make(map[uint32]string),
		streamKey:  make(map[uint32]string),
		announced:  make(map[string]bool),
		output:     make(chan types.AudioFrame, outputChannelBuffer),
		done:       make(chan struct{}),
	}
	for topic, chID := range topics {
		c.topics[topic] = chID
		c.topicForCh[chID] = topic
	}
	if session.State != nil && session.State.User != nil {
		c.botID = session.State.User.ID
	}

	c.disconnectVC = vc.Disconnect
	c.sendMessage = func(ctx context.Context, channelID, content string) (string, error) {
		msg, err := session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
		if err != nil {
			return "", err
		}
		return msg.ID, nil
	}
	c.editMessage = func(ctx context.Context, channelID, messageID, content string) error {
		_, err := session.ChannelMessageEdit(channelID, messageID, content, discordgo.WithContext(ctx))
		return err
	}
	c.guildState = func() (*discordgo.Guild, error) {
		return session.State.Guild(guildID)
	}
	c.disconnectID = func(ctx context.Context, userID string) error {
		// Moving a member to a nil channel disconnects them from voice.
		return session.GuildMemberMove(guildID, userID, nil, discordgo.WithContext(ctx))
	}

	// Gateway handlers: participant join/leave and text-channel traffic.
	c.removeHandlers = append(c.removeHandlers,
		session.AddHandler(c.handleVoiceStateUpdate),
		session.AddHandler(c.handleMessageCreate),
	)

	// Speaking updates carry the SSRC -> user mapping needed to attribute
	// audio packets to participants. discordgo offers no way to remove a
	// voice handler; the voice connection dies with the Conn.
	vc.AddHandler(c.handleSpeakingUpdate)

	go c.recvLoop()
	go c.sendLoop()

	return c, nil
}

// InputStreams returns a snapshot of the current per-participant audio channels.
// Keys are participant user IDs when the speaking update arrived before the
// first audio packet (the usual case), or the raw SSRC otherwise.
func (c *Conn) InputStreams() map[string]<-chan types.AudioFrame {
	c.inputsMu.RLock()
	defer c.inputsMu.RUnlock()
	snap := make(map[string]<-chan types.AudioFrame, len(c.inputs))
	for id, ch := range c.inputs {
		snap[id] = ch
	}
	return snap
}

// OutputStream returns the write-only channel for the facilitator's voice.
// Frames written here are encoded to Opus and sent to the voice channel.
func (c *Conn) OutputStream() chan<- types.AudioFrame {
	return c.output
}

// OnParticipantChange registers cb as the callback for participant join/leave
// events. Only one callback may be registered; subsequent calls replace it.
func (c *Conn) OnParticipantChange(cb func(room.Event)) {
	c.changeMu.Lock()
	defer c.changeMu.Unlock()
	c.changeCb = cb
}

// OnData registers cb as the callback for data-channel payloads.
// Only one callback may be registered; subsequent calls replace it.
func (c *Conn) OnData(cb func(room.DataMessage)) {
	c.dataMu.Lock()
	defer c.dataMu.Unlock()
	c.dataCb = cb
}

// Participants returns everyone currently in the voice channel according to
// the gateway state, including the bot itself.
func (c *Conn) Participants() []room.Participant {
	guild, err := c.guildState()
	if err != nil {
		slog.Warn("discord: guild state unavailable", "guild", c.guildID, "error", err)
		return nil
	}

	var out []room.Participant
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != c.vc.ChannelID {
			continue
		}
		out = append(out, room.Participant{
			ID:      vs.UserID,
			Name:    c.memberName(vs.UserID),
			IsAgent: vs.UserID == c.botID,
		})
	}
	return out
}

// RemoveParticipant disconnects the identified member from the voice channel.
// Requires the Move Members permission.
func (c *Conn) RemoveParticipant(ctx context.Context, id string) error {
	if err := c.disconnectID(ctx, id); err != nil {
		return fmt.Errorf("discord: remove participant %q: %w", id, err)
	}
	return nil
}

// Leave cleanly tears down the voice connection and stops all background
// goroutines. It is safe to call more than once; subsequent calls return nil.
func (c *Conn) Leave() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		for _, remove := range c.removeHandlers {
			remove()
		}

		if c.disconnectVC != nil {
			err = c.disconnectVC()
		}

		// Close all input channels so downstream consumers see EOF.
		c.inputsMu.Lock()
		for id, ch := range c.inputs {
			close(ch)
			delete(c.inputs, id)
		}
		c.inputsMu.Unlock()
	})
	return err
}

// recvLoop reads Opus packets from the voice connection, demuxes them by
// SSRC, decodes Opus to PCM, and delivers AudioFrames to per-participant
// channels keyed by the resolved participant ID.
func (c *Conn) recvLoop() {
	// Each SSRC gets its own decoder to maintain state across frames.
	decoders := make(map[uint32]*opusDecoder)

	for {
		select {
		case <-c.done:
			return
		case pkt, ok := <-c.vc.OpusRecv:
			if !ok {
				return
			}
			if pkt == nil {
				continue
			}

			ssrc := pkt.SSRC

			dec, exists := decoders[ssrc]
			if !exists {
				var err error
				dec, err = newOpusDecoder()
				if err != nil {
					slog.Error("discord: failed to create opus decoder", "ssrc", ssrc, "error", err)
					continue
				}
				decoders[ssrc] = dec
			}

			key, created := c.streamFor(ssrc)
			if created {
				c.announceJoin(key)
			}

			pcm, err := dec.decode(pkt.Opus)
			if err != nil {
				slog.Warn("discord: opus decode error", "ssrc", ssrc, "error", err)
				continue
			}

			c.deliver(key, types.AudioFrame{
				Data:       pcm,
				SampleRate: opusSampleRate,
				Channels:   opusChannels,
				Timestamp:  time.Duration(pkt.Timestamp) * time.Second / time.Duration(opusSampleRate),
			})
		}
	}
}

// streamFor returns the input stream key for an SSRC, creating and binding
// the stream on first sight. The key is the participant's user ID when the
// speaking update already delivered the mapping, otherwise the SSRC rendered
// as a string; the binding is stable for the life of the stream either way.
func (c *Conn) streamFor(ssrc uint32) (string, bool) {
	c.inputsMu.Lock()
	defer c.inputsMu.Unlock()

	if key, ok := c.streamKey[ssrc]; ok {
		if _, ok := c.inputs[key]; ok {
			return key, false
		}
	}

	key := strconv.FormatUint(uint64(ssrc), 10)
	if uid, ok := c.ssrcUser[ssrc]; ok && uid != "" {
		key = uid
	}
	c.streamKey[ssrc] = key
	c.inputs[key] = make(chan types.AudioFrame, inputChannelBuffer)
	return key, true
}

// deliver hands a frame to a participant stream. The read lock excludes the
// channel close in dropParticipant and Leave, so a frame is never written to
// a closed stream; frames for a full or departed stream are dropped.
func (c *Conn) deliver(key string, frame types.AudioFrame) {
	c.inputsMu.RLock()
	defer c.inputsMu.RUnlock()

	ch, ok := c.inputs[key]
	if !ok {
		return
	}
	select {
	case ch <- frame:
	default:
		// Channel full — drop frame rather than block.
	}
}

// announceJoin emits a join event for a participant first observed through
// audio rather than a voice state update (they were already in the channel
// when the bot joined). Deduplicated against voice state updates.
func (c *Conn) announceJoin(id string) {
	c.inputsMu.Lock()
	already := c.announced[id]
	c.announced[id] = true
	c.inputsMu.Unlock()
	if already {
		return
	}
	c.emitEvent(room.Event{
		Type:        room.EventJoin,
		Participant: room.Participant{ID: id, Name: c.memberName(id), IsAgent: id == c.botID},
	})
}

// sendLoop reads PCM AudioFrames from the output channel, converts them to
// Discord's target format (48 kHz stereo), extracts exact Opus frame-sized
// chunks, encodes them to Opus, and sends the encoded data to the voice
// connection.
func (c *Conn) sendLoop() {
	enc, err := newOpusEncoder()
	if err != nil {
		slog.Error("discord: failed to create opus encoder", "error", err)
		return
	}

	conv := audio.FormatConverter{Target: audio.Format{SampleRate: opusSampleRate, Channels: opusChannels}}

	// Signal speaking when we start sending audio.
	speakingSet := false

	// opusFrameBytes is the exact PCM input size for one Opus frame:
	// 960 samples/channel × 2 channels × 2 bytes/sample = 3840 bytes.
	const opusFrameBytes = opusFrameSize * opusChannels * 2

	var buf []byte

	for {
		select {
		case <-c.done:
			if speakingSet {
				c.setSpeaking(false)
			}
			return
		case frame, ok := <-c.output:
			if !ok {
				return
			}

			if !speakingSet {
				c.setSpeaking(true)
				speakingSet = true
			}

			frame = conv.Convert(frame)
			buf = append(buf, frame.Data...)

			// Encode and send complete Opus frames.
			for len(buf) >= opusFrameBytes {
				opus, eErr := enc.encode(buf[:opusFrameBytes])
				if eErr != nil {
					slog.Warn("discord: opus encode error", "error", eErr)
					buf = buf[opusFrameBytes:]
					continue
				}
				buf = buf[opusFrameBytes:]

				select {
				case c.vc.OpusSend <- opus:
				case <-c.done:
					return
				}
			}
		}
	}
}

// handleSpeakingUpdate records the SSRC to user ID mapping announced by the
// voice gateway before a participant's audio starts flowing.
func (c *Conn) handleSpeakingUpdate(_ *discordgo.VoiceConnection, vs *discordgo.VoiceSpeakingUpdate) {
	if vs == nil || vs.UserID == "" {
		return
	}
	c.inputsMu.Lock()
	c.ssrcUser[uint32(vs.SSRC)] = vs.UserID
	c.inputsMu.Unlock()
}

// handleVoiceStateUpdate processes gateway VoiceStateUpdate events to detect
// participant joins and leaves for the voice channel this Conn is on.
func (c *Conn) handleVoiceStateUpdate(_ *discordgo.Session, vsu *discordgo.VoiceStateUpdate) {
	if vsu.GuildID != c.guildID {
		return
	}

	channelID := c.vc.ChannelID

	username := ""
	if vsu.Member != nil && vsu.Member.User != nil {
		username = vsu.Member.User.Username
	}

	// Participant left our channel.
	if vsu.BeforeUpdate != nil && vsu.BeforeUpdate.ChannelID == channelID && vsu.ChannelID != channelID {
		c.dropParticipant(vsu.UserID)
		c.emitEvent(room.Event{
			Type:        room.EventLeave,
			Participant: room.Participant{ID: vsu.UserID, Name: username, IsAgent: vsu.UserID == c.botID},
		})
		return
	}

	// Participant joined our channel.
	if vsu.ChannelID == channelID && (vsu.BeforeUpdate == nil || vsu.BeforeUpdate.ChannelID != channelID) {
		c.inputsMu.Lock()
		already := c.announced[vsu.UserID]
		c.announced[vsu.UserID] = true
		c.inputsMu.Unlock()
		if already {
			return
		}
		c.emitEvent(room.Event{
			Type:        room.EventJoin,
			Participant: room.Participant{ID: vsu.UserID, Name: username, IsAgent: vsu.UserID == c.botID},
		})
	}
}

// dropParticipant closes and removes the input stream of a departed
// participant so downstream consumers see EOF, and clears the SSRC bindings
// pointing at it.
func (c *Conn) dropParticipant(id string) {
	c.inputsMu.Lock()
	defer c.inputsMu.Unlock()

	delete(c.announced, id)
	if ch, ok := c.inputs[id]; ok {
		close(ch)
		delete(c.inputs, id)
	}
	for ssrc, key := range c.streamKey {
		if key == id {
			delete(c.streamKey, ssrc)
		}
	}
}

// memberName resolves a user ID to a display name via the gateway state.
// Returns empty when the member is not cached.
func (c *Conn) memberName(id string) string {
	if c.session == nil || c.session.State == nil {
		return ""
	}
	member, err := c.session.State.Member(c.guildID, id)
	if err != nil || member == nil || member.User == nil {
		return ""
	}
	if member.Nick != "" {
		return member.Nick
	}
	return member.User.Username
}

// setSpeaking sends a speaking notification to Discord, logging any errors.
func (c *Conn) setSpeaking(b bool) {
	if err := c.vc.Speaking(b); err != nil {
		slog.Warn("discord: speaking notification error", "speaking", b, "error", err)
	}
}

// emitEvent safely invokes the registered participant change callback.
func (c *Conn) emitEvent(ev room.Event) {
	c.changeMu.Lock()
	cb := c.changeCb
	c.changeMu.Unlock()
	if cb != nil {
		go cb(ev)
	}
}

// emitData safely invokes the registered data callback.
func (c *Conn) emitData(msg room.DataMessage) {
	c.dataMu.Lock()
	cb := c.dataCb
	c.dataMu.Unlock()
	if cb != nil {
		go cb(msg)
	}
}
