package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	orchestratorx "github.com/tanpawarit/premeeting-warmup-agent/agent/agents/orchestrator"
	bookingx "github.com/tanpawarit/premeeting-warmup-agent/agent/booking"
	contractx "github.com/tanpawarit/premeeting-warmup-agent/agent/contract"
	gatewayx "github.com/tanpawarit/premeeting-warmup-agent/agent/gateway"
	llmx "github.com/tanpawarit/premeeting-warmup-agent/agent/llm"
	notifyx "github.com/tanpawarit/premeeting-warmup-agent/agent/notify"
	promptx "github.com/tanpawarit/premeeting-warmup-agent/agent/prompt"
	sessionx "github.com/tanpawarit/premeeting-warmup-agent/agent/session"
	statex "github.com/tanpawarit/premeeting-warmup-agent/agent/state"
	summaryx "github.com/tanpawarit/premeeting-warmup-agent/agent/summary"
	terminationx "github.com/tanpawarit/premeeting-warmup-agent/agent/termination"
	toolx "github.com/tanpawarit/premeeting-warmup-agent/agent/tool"
	transcriptx "github.com/tanpawarit/premeeting-warmup-agent/agent/transcript"
	"github.com/tanpawarit/premeeting-warmup-agent/api"
	amqpx "github.com/tanpawarit/premeeting-warmup-agent/pkg/amqp"
	configx "github.com/tanpawarit/premeeting-warmup-agent/pkg/config"
	_ "github.com/tanpawarit/premeeting-warmup-agent/pkg/logger/autoload"
	mailerx "github.com/tanpawarit/premeeting-warmup-agent/pkg/mailer"
	openrouterx "github.com/tanpawarit/premeeting-warmup-agent/pkg/openrouter"
	qstashx "github.com/tanpawarit/premeeting-warmup-agent/pkg/qstash"
)

type AppConfig struct {
	Addr            string        `split_words:"true" default:":8080"`
	PublicBaseURL   string        `split_words:"true" default:"http://localhost:3000"`
	SessionIdleTTL  time.Duration `split_words:"true" default:"30m"`
	JanitorInterval time.Duration `split_words:"true" default:"1m"`
	ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	DispatchTimeout time.Duration `split_words:"true" default:"1m"`
	TriggerPhrases  []string      `split_words:"true"`
	EndMarkers      []string      `split_words:"true" default:"[END_SESSION]"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCfg := configx.MustNew[AppConfig]("APP")
	llmCfg := configx.MustNew[llmx.Config]("LLM")
	notifyCfg := configx.MustNew[notifyx.Config]("NOTIFY")
	smtpCfg := configx.MustNew[mailerx.Config]("SMTP")

	detector, err := terminationx.NewDetector(appCfg.EndMarkers...)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid end markers")
	}
	filter := transcriptx.NewFilter(detector, appCfg.TriggerPhrases)

	prompts := promptx.LoadPromptSet()
	if err := prompts.Validate(); err != nil {
		log.Fatal().Err(err).Msg("prompt set")
	}

	gateway := newGateway(ctx, *llmCfg, prompts, detector)

	summarizer, err := summaryx.New(ctx, filter, prompts,
		newCompleter(*llmCfg),
		newNotifier(*notifyCfg),
		newLedger(),
		summaryx.Config{Timeout: llmCfg.SummaryTimeout, TokenBudget: llmCfg.SummaryTokenBudget},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("summary service")
	}

	sessions := sessionx.NewRegistry(appCfg.SessionIdleTTL)
	go sessions.RunJanitor(ctx, appCfg.JanitorInterval)

	orchestrator, err := orchestratorx.New(sessions, gateway, summarizer, filter, prompts,
		orchestratorx.Config{DispatchTimeout: appCfg.DispatchTimeout})
	if err != nil {
		log.Fatal().Err(err).Msg("orchestrator")
	}

	location := notifyCfg.Location()
	encoder := bookingx.NewEncoder(appCfg.PublicBaseURL, location)
	if !smtpCfg.Configured() {
		log.Warn().Msg("SMTP credentials not set; booking webhooks will fail to send invitations")
	}
	mailer := mailerx.New(*smtpCfg)

	srv := &http.Server{
		Addr:              appCfg.Addr,
		Handler:           api.New(orchestrator, summarizer, encoder, mailer, location).WithDispatchTimeout(appCfg.DispatchTimeout).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}

	// Sessions that ended during the last requests still get their summary out.
	orchestrator.Wait()
	log.Info().Msg("shutdown complete")
}

func newGateway(ctx context.Context, cfg llmx.Config, prompts promptx.PromptSet, detector *terminationx.Detector) contractx.DialogueGateway {
	if err := cfg.Validate(); err != nil {
		log.Warn().Err(err).Msg("dialogue model unavailable")
		return gatewayx.Unconfigured{Reason: err.Error()}
	}

	instruction, err := prompts.AgentInstruction(ctx, detector.Primary())
	if err != nil {
		log.Fatal().Err(err).Msg("render agent instruction")
	}

	orCfg := cfg.DialogueOpenRouter()
	chatModel, err := orCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("dialogue chat model")
	}

	tools := toolx.MustNewRegistry(toolx.DemoCatalog(detector.Primary())...)
	gateway, err := gatewayx.New(chatModel, tools, detector, gatewayx.Config{
		Instruction:   instruction,
		MaxToolRounds: cfg.MaxToolRounds,
		TurnTimeout:   cfg.TurnTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("dialogue gateway")
	}
	log.Info().Str("model", orCfg.Model).Strs("tools", tools.Names()).Msg("dialogue gateway ready")
	return gateway
}

func newCompleter(cfg llmx.Config) summaryx.Completer {
	orCfg := cfg.SummaryOpenRouter()
	// A nil client makes each summary fail, which still dispatches the fallback text.
	client := openrouterx.NewClient(orCfg)
	if client == nil {
		log.Warn().Msg("summary model unavailable: LLM_API_KEY is not set")
	}
	return summaryx.NewOpenAICompleter(client, orCfg.Model, orCfg.Temperature, cfg.MaxCompletionToken)
}

func newNotifier(cfg notifyx.Config) contractx.Notifier {
	var (
		notifier contractx.Notifier
		err      error
	)

	switch cfg.Sink {
	case notifyx.SinkSlack:
		notifier, err = notifyx.NewSlackNotifier(cfg, nil)
	case notifyx.SinkQStash:
		qstashCfg := configx.MustNew[qstashx.Config]("QSTASH")
		var client *qstashx.Client
		if client, err = qstashx.NewClient(*qstashCfg); err == nil {
			notifier, err = notifyx.NewQStashNotifier(cfg, client)
		}
	case notifyx.SinkAMQP:
		amqpCfg := configx.MustNew[amqpx.Config]("AMQP")
		var publisher *amqpx.Publisher
		if publisher, err = amqpx.NewPublisher(*amqpCfg); err == nil {
			notifier, err = notifyx.NewAMQPNotifier(publisher, amqpCfg.RoutingKey, amqpCfg.Producer)
		}
	default:
		err = errors.New("unknown sink " + string(cfg.Sink))
	}

	if err != nil {
		log.Warn().Err(err).Str("sink", string(cfg.Sink)).Msg("lead summary notifier unavailable")
		return notifyx.Unconfigured{Reason: err.Error()}
	}
	log.Info().Str("sink", string(cfg.Sink)).Msg("lead summary notifier ready")
	return notifier
}

func newLedger() contractx.DispatchLedger {
	redisCfg := configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS")
	if !redisCfg.Configured() {
		log.Info().Msg("dispatch ledger: in-memory")
		return statex.NewMemoryLedger(0)
	}
	ledger, err := statex.NewUpstashRedisLedger(*redisCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("upstash redis ledger")
	}
	log.Info().Msg("dispatch ledger: upstash redis")
	return ledger
}
