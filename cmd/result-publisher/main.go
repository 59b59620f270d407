package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/livebet-ledger/internal/ledger-service/auth"
	"github.com/radieske/livebet-ledger/internal/ledger-service/domain"
	"github.com/radieske/livebet-ledger/internal/shared/config"
	"github.com/radieske/livebet-ledger/internal/shared/kafka"
	"github.com/radieske/livebet-ledger/internal/shared/logger"
	"github.com/radieske/livebet-ledger/pkg/contracts/events"
)

const usage = `usage: result-publisher <command> [flags]

commands:
  result  -event ID -winner home|away|draw [-home N -away N -details TEXT -source NAME]
  status  -event ID -status scheduled|live|paused|finished|cancelled
  token   -user ID [-role user|admin -ttl 24h]   (assina um JWT com JWT_SECRET)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load()
	cfg.ServiceName = "result-publisher"
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	switch os.Args[1] {
	case "result":
		err = resultCmd(ctx, cfg, log, os.Args[2:])
	case "status":
		err = statusCmd(ctx, cfg, log, os.Args[2:])
	case "token":
		err = tokenCmd(cfg, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Error("command failed", zap.String("command", os.Args[1]), zap.Error(err))
		os.Exit(1)
	}
}

func resultCmd(ctx context.Context, cfg config.Config, log *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("result-publisher result", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	eventID := fs.String("event", "", "event id")
	winner := fs.String("winner", "", "home|away|draw")
	home := fs.Int("home", 0, "home score")
	away := fs.Int("away", 0, "away score")
	details := fs.String("details", "", "free text")
	source := fs.String("source", "manual", "report source")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*eventID) == "" {
		return errors.New("-event required")
	}
	msg := events.ResultReported{
		EventID:    strings.TrimSpace(*eventID),
		Outcome:    events.Outcome{Winner: *winner, Score: events.Score{Home: *home, Away: *away}, Details: *details},
		ReportedAt: time.Now().UTC(),
		Source:     *source,
	}
	// mesma validação do consumidor: evita mandar lixo para a DLQ
	out := domain.Outcome{Winner: domain.Winner(msg.Outcome.Winner), Score: domain.Score{Home: *home, Away: *away}}
	if err := out.Validate(); err != nil {
		return err
	}
	return publish(ctx, cfg, log, cfg.TopicResults, msg.EventID, msg)
}

func statusCmd(ctx context.Context, cfg config.Config, log *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("result-publisher status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	eventID := fs.String("event", "", "event id")
	status := fs.String("status", "", "new status")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*eventID) == "" {
		return errors.New("-event required")
	}
	if !domain.EventStatus(*status).Valid() {
		return fmt.Errorf("invalid -status %q", *status)
	}
	msg := events.StatusChanged{EventID: strings.TrimSpace(*eventID), Status: *status, ChangedAt: time.Now().UTC()}
	return publish(ctx, cfg, log, cfg.TopicEventStatus, msg.EventID, msg)
}

func tokenCmd(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("result-publisher token", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	user := fs.String("user", "", "user id")
	role := fs.String("role", auth.RoleUser, "user|admin")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET not set")
	}
	if *user == "" {
		return errors.New("-user required")
	}
	tok, err := auth.JWT{Secret: []byte(cfg.JWTSecret), TokenTTL: *ttl}.Sign(*user, *role)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}

func publish(ctx context.Context, cfg config.Config, log *zap.Logger, topic, key string, payload any) error {
	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		return errors.New("KAFKA_BROKERS not set")
	}
	w := kafka.NewWriter(brokers, topic)
	defer w.Close()
	if err := kafka.WriteJSON(ctx, w, key, payload); err != nil {
		return err
	}
	log.Info("published", zap.String("topic", topic), zap.String("key", key))
	return nil
}
