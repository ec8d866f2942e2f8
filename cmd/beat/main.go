// Command beat runs the Beat meeting facilitator: it joins a voice room,
// follows the meeting agenda, speaks up when the agenda needs it, and
// delivers the meeting documents when the room empties.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/agenda"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/config"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/health"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/observe"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/resilience"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/session"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/minutes"
	minutespg "github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/minutes/postgres"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/embeddings"
	ollamaembed "github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/embeddings/ollama"
	oaembed "github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/embeddings/openai"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/llm"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/llm/anyllm"
	oallm "github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/llm/openai"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/stt"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/stt/deepgram"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/tts"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/tts/coqui"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/tts/elevenlabs"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/vad"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/provider/vad/energy"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/room"
	roomdiscord "github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/room/discord"
	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/types"

	"github.com/bwmarrin/discordgo"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// A .env beside the binary is a development convenience; absence is fine.
	_ = godotenv.Load()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "beat: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "beat: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	levelVar := new(slog.LevelVar)
	levelVar.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(newLogger(cfg.Server.LogFormat, levelVar))

	slog.Info("beat starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "beat",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg, metrics)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Meeting record stores ─────────────────────────────────────────────────
	var (
		sink    minutes.DocumentSink
		archive minutes.Archive
		index   minutes.SemanticIndex
	)
	if dsn := cfg.Memory.PostgresDSN; dsn != "" {
		store, err := minutespg.NewStore(ctx, dsn, cfg.Memory.EmbeddingDimensions)
		if err != nil {
			slog.Error("failed to open meeting record store", "err", err)
			return 1
		}
		defer store.Close()
		sink = store
		archive = store.Archive()
		index = store.Index()
		slog.Info("meeting records on postgres")
	} else {
		dir := cfg.Memory.DocumentsDir
		if dir == "" {
			dir = "./documents"
		}
		fs, err := newFileSink(dir)
		if err != nil {
			slog.Error("failed to open documents directory", "dir", dir, "err", err)
			return 1
		}
		sink = fs
		slog.Info("meeting records on disk", "dir", dir,
			"note", "archive and semantic recall disabled without postgres")
	}
	// Semantic recall needs both legs; drop the index rather than half-wire it.
	if providers.Embeddings == nil {
		index = nil
	}

	// ── Room transport ────────────────────────────────────────────────────────
	discordSession, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		slog.Error("failed to create discord session", "err", err)
		return 1
	}
	discordSession.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsMessageContent
	if err := discordSession.Open(); err != nil {
		slog.Error("failed to connect to discord", "err", err)
		return 1
	}
	defer func() {
		if err := discordSession.Close(); err != nil {
			slog.Warn("discord close error", "err", err)
		}
	}()

	roomOpts := []roomdiscord.Option{}
	if cfg.Discord.AgendaChannelID != "" {
		roomOpts = append(roomOpts, roomdiscord.WithTopicChannel(room.TopicAgenda, cfg.Discord.AgendaChannelID))
	}
	if cfg.Discord.ChatChannelID != "" {
		roomOpts = append(roomOpts, roomdiscord.WithTopicChannel(room.TopicChat, cfg.Discord.ChatChannelID))
	}
	transport := roomdiscord.New(discordSession, cfg.Discord.GuildID, roomOpts...)
	slog.Info("discord connected", "guild_id", cfg.Discord.GuildID)

	// ── Operational endpoint ──────────────────────────────────────────────────
	var srv *http.Server
	if cfg.Server.ListenAddr != "" {
		srv = operationalServer(cfg.Server.ListenAddr, metrics, sink)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("operational endpoint error", "err", err)
			}
		}()
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			levelVar.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level updated", "level", d.NewLogLevel)
		}
		if d.BotChanged || d.MeetingChanged {
			slog.Info("persona or meeting defaults changed; takes effect on the next run")
		}
		// Provider, transport and memory changes need a restart; they are not
		// diffed and a running meeting keeps the stack it started with.
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── Meeting brief ─────────────────────────────────────────────────────────
	metadata, err := os.ReadFile(cfg.Meeting.MetadataFile)
	if err != nil {
		slog.Error("failed to read meeting brief", "path", cfg.Meeting.MetadataFile, "err", err)
		return 1
	}

	printStartupSummary(cfg)

	sess, err := session.New(session.Config{
		RoomID:   cfg.Meeting.RoomID,
		Metadata: string(metadata),
		BotName:  botName(cfg),
		Aliases:  cfg.Bot.Aliases,
		Voice: types.VoiceProfile{
			ID:          cfg.Bot.Voice.VoiceID,
			Provider:    cfg.Bot.Voice.Provider,
			SpeedFactor: cfg.Bot.Voice.SpeedFactor,
		},
		Language:                 cfg.Bot.Language,
		Room:                     transport,
		STT:                      providers.STT,
		TTS:                      providers.TTS,
		VAD:                      providers.VAD,
		Fast:                     providers.Fast,
		Large:                    providers.Large,
		Sink:                     sink,
		Archive:                  archive,
		Index:                    index,
		Embedder:                 providers.Embeddings,
		Style:                    cfg.Meeting.Style,
		Tuning:                   tuningFromConfig(cfg.Meeting),
		Interval:                 cfg.Meeting.MonitorInterval.Duration(),
		Heartbeat:                cfg.Meeting.Heartbeat.Duration(),
		DeterministicTimeQueries: cfg.Meeting.TimeReplies != config.TimeRepliesFreeform,
		Metrics:                  metrics,
	})
	if err != nil {
		slog.Error("failed to build session", "err", err)
		return 1
	}

	slog.Info("joining meeting — press Ctrl+C to end it early",
		"room_id", cfg.Meeting.RoomID)

	code := 0
	if err := sess.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("meeting error", "err", err)
		code = 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	grace := cfg.Server.ShutdownGrace.Duration()
	if grace <= 0 {
		grace = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("operational endpoint shutdown error", "err", err)
		}
	}
	slog.Info("goodbye")
	return code
}

// botName applies the documented default for an unset persona name.
func botName(cfg *config.Config) string {
	if cfg.Bot.Name != "" {
		return cfg.Bot.Name
	}
	return "Beat"
}

// tuningFromConfig maps the YAML meeting knobs onto the agenda tuning set.
// Zero fields keep the engine defaults.
func tuningFromConfig(m config.MeetingConfig) agenda.Tuning {
	return agenda.Tuning{
		WarningRatio:         m.WarningRatio,
		OverrideGrace:        m.OverrideGrace.Duration(),
		SilenceWindow:        m.SilenceWindow.Duration(),
		InterventionCooldown: m.InterventionCooldown.Duration(),
	}
}

// operationalServer serves /metrics, /healthz and /readyz.
func operationalServer(addr string, metrics *observe.Metrics, sink minutes.DocumentSink) *http.Server {
	checkers := []health.Checker{
		{
			Name: "documents",
			Check: func(ctx context.Context) error {
				if p, ok := sink.(interface{ Ping(context.Context) error }); ok {
					return p.Ping(ctx)
				}
				_, err := sink.Documents(ctx, "readyz-probe")
				return err
			},
		},
	}
	mux := http.NewServeMux()
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// providerSet holds the instantiated pipeline stages, each already wrapped in
// its failover chain and telemetry where applicable.
type providerSet struct {
	Fast       llm.Provider
	Large      llm.Provider
	STT        stt.Provider
	TTS        tts.Provider
	Embeddings embeddings.Provider
	VAD        vad.Engine
}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the provider
// from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// openai uses the native SDK; the remaining hosted providers share the
	// any-llm pattern of optional APIKey + optional BaseURL.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oallm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oallm.WithBaseURL(entry.BaseURL))
		}
		return oallm.New(entry.APIKey, entry.Model, opts...)
	})
	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if outputFmt := optString(entry.Options, "output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if mode := optString(entry.Options, "api_mode"); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		return ollamaembed.New(entry.BaseURL, entry.Model)
	})

	// ── VAD ───────────────────────────────────────────────────────────────────

	reg.RegisterVAD("energy", func(entry config.ProviderEntry) (vad.Engine, error) {
		var opts []energy.Option
		if floor := optFloat(entry.Options, "rms_floor"); floor > 0 {
			opts = append(opts, energy.WithRMSFloor(floor))
		}
		if hangover := optInt(entry.Options, "hangover"); hangover > 0 {
			opts = append(opts, energy.WithHangover(hangover))
		}
		return energy.New(opts...), nil
	})
}

// buildProviders instantiates every pipeline stage named in cfg, wrapping
// each remote stage in its configured failover chain and the model stages in
// telemetry. The loader has already rejected configs missing a required
// stage, so absent optional stages come back nil here.
func buildProviders(cfg *config.Config, reg *config.Registry, metrics *observe.Metrics) (*providerSet, error) {
	ps := &providerSet{}

	fast, err := buildLLM(cfg.Providers.FastLLM, reg)
	if err != nil {
		return nil, fmt.Errorf("create fast model: %w", err)
	}
	ps.Fast = observe.InstrumentLLM(fast, "fast", metrics)

	large, err := buildLLM(cfg.Providers.LargeLLM, reg)
	if err != nil {
		return nil, fmt.Errorf("create conversational model: %w", err)
	}
	ps.Large = observe.InstrumentLLM(large, "conversational", metrics)

	sttProvider, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", cfg.Providers.STT.Name, err)
	}
	if len(cfg.Providers.STT.Fallbacks) > 0 {
		chain := resilience.NewSTTFallback(sttProvider, cfg.Providers.STT.Name, resilience.FallbackConfig{})
		for _, fb := range cfg.Providers.STT.Fallbacks {
			p, err := reg.CreateSTT(fb)
			if err != nil {
				return nil, fmt.Errorf("create stt fallback %q: %w", fb.Name, err)
			}
			chain.AddFallback(fb.Name, p)
		}
		ps.STT = chain
	} else {
		ps.STT = sttProvider
	}

	ttsProvider, err := reg.CreateTTS(cfg.Providers.TTS)
	if err != nil {
		return nil, fmt.Errorf("create tts provider %q: %w", cfg.Providers.TTS.Name, err)
	}
	if len(cfg.Providers.TTS.Fallbacks) > 0 {
		chain := resilience.NewTTSFallback(ttsProvider, cfg.Providers.TTS.Name, resilience.FallbackConfig{})
		for _, fb := range cfg.Providers.TTS.Fallbacks {
			p, err := reg.CreateTTS(fb)
			if err != nil {
				return nil, fmt.Errorf("create tts fallback %q: %w", fb.Name, err)
			}
			chain.AddFallback(fb.Name, p)
		}
		ps.TTS = chain
	} else {
		ps.TTS = ttsProvider
	}

	if name := cfg.Providers.Embeddings.Name; name != "" {
		p, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
		if err != nil {
			return nil, fmt.Errorf("create embeddings provider %q: %w", name, err)
		}
		if len(cfg.Providers.Embeddings.Fallbacks) > 0 {
			chain := resilience.NewEmbeddingsFallback(p, name, resilience.FallbackConfig{})
			for _, fb := range cfg.Providers.Embeddings.Fallbacks {
				fp, err := reg.CreateEmbeddings(fb)
				if err != nil {
					return nil, fmt.Errorf("create embeddings fallback %q: %w", fb.Name, err)
				}
				chain.AddFallback(fb.Name, fp)
			}
			ps.Embeddings = chain
		} else {
			ps.Embeddings = p
		}
	}

	if name := cfg.Providers.VAD.Name; name != "" {
		p, err := reg.CreateVAD(cfg.Providers.VAD)
		if err != nil {
			return nil, fmt.Errorf("create vad provider %q: %w", name, err)
		}
		ps.VAD = p
	}

	return ps, nil
}

// buildLLM creates one model stage with its failover chain.
func buildLLM(entry config.ProviderEntry, reg *config.Registry) (llm.Provider, error) {
	primary, err := reg.CreateLLM(entry)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", entry.Name, err)
	}
	if len(entry.Fallbacks) == 0 {
		return primary, nil
	}
	chain := resilience.NewLLMFallback(primary, entry.Name, resilience.FallbackConfig{})
	for _, fb := range entry.Fallbacks {
		p, err := reg.CreateLLM(fb)
		if err != nil {
			return nil, fmt.Errorf("fallback %q: %w", fb.Name, err)
		}
		chain.AddFallback(fb.Name, p)
	}
	return chain, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║           Beat — startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Fast model", cfg.Providers.FastLLM.Name, cfg.Providers.FastLLM.Model)
	printProvider("Large model", cfg.Providers.LargeLLM.Name, cfg.Providers.LargeLLM.Model)
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	printProvider("Embeddings", cfg.Providers.Embeddings.Name, cfg.Providers.Embeddings.Model)
	printProvider("VAD", cfg.Providers.VAD.Name, "")
	if cfg.Memory.PostgresDSN != "" {
		fmt.Printf("║  Records         : %-19s ║\n", "postgres")
	} else {
		fmt.Printf("║  Records         : %-19s ║\n", "local files")
	}
	printProvider("Room", cfg.Meeting.RoomID, "")
	fmt.Printf("║  Style           : %-19s ║\n", cfg.Meeting.Style)
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ────────────────────────────────────────────────────────────────────

func newLogger(format config.LogFormat, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}

// optFloat extracts a numeric option. YAML decodes untyped numbers as int or
// float64 depending on their spelling, so it accepts both.
func optFloat(opts map[string]any, key string) float64 {
	if opts == nil {
		return 0
	}
	switch v := opts[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// optInt extracts an integer option.
func optInt(opts map[string]any, key string) int {
	if opts == nil {
		return 0
	}
	switch v := opts[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
