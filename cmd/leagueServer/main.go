package main

import (
	"log"

	"leagueserver/config"
	"leagueserver/internal/db"
	"leagueserver/internal/league"
	"leagueserver/internal/ledger"
	"leagueserver/internal/nats"
	"leagueserver/internal/scheduler"
	"leagueserver/internal/server"
	temporal "leagueserver/internal/workflow"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	gormDB, err := db.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	var events league.Publisher = nats.Nop{}
	if cfg.NATS.Host != "" {
		natsConn, js, err := nats.Connect(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer natsConn.Close()

		if err := nats.ConfigureStream(js, &cfg.NATS.Stream); err != nil {
			log.Fatalf("Failed to configure JetStream: %v", err)
		}
		events = nats.NewPublisher(js)
	} else {
		log.Println("NATS not configured, league events are not published")
	}

	svc := league.NewService(gormDB, ledger.New(gormDB), events)

	var rebuilder server.Rebuilder
	if cfg.Temporal.HostPort != "" {
		c, err := temporal.Dial(&cfg.Temporal)
		if err != nil {
			log.Fatalf("Failed to create Temporal client: %v", err)
		}
		defer c.Close()

		w := temporal.NewWorker(c, cfg.Temporal.TaskQueue, &temporal.Activities{League: svc})
		temporal.StartWorker(w)
		rebuilder = &temporal.Starter{Client: c, TaskQueue: cfg.Temporal.TaskQueue}
	} else {
		log.Println("Temporal not configured, season rebuilds run inline")
	}

	c, err := scheduler.SetupCron(&cfg.Scheduler, gormDB)
	if err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer c.Stop()

	server.StartServer(cfg, server.New(svc, rebuilder))
}
