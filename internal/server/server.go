package server

import (
	"context"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"leagueserver/config"
	"leagueserver/internal/league"
)

// Rebuilder runs a full season rebuild and returns an identifier of the run.
type Rebuilder interface {
	Rebuild(ctx context.Context, seasonID uint) (string, error)
}

type Server struct {
	league    *league.Service
	rebuilder Rebuilder
	validator *validator.Validate
}

// New wires the handlers. A nil rebuilder rebuilds inline within the request.
func New(svc *league.Service, rebuilder Rebuilder) *Server {
	s := &Server{league: svc, rebuilder: rebuilder, validator: validator.New()}
	if s.rebuilder == nil {
		s.rebuilder = inlineRebuilder{svc: svc}
	}
	return s
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestID, logRequests)

	r.HandleFunc("/seasons", s.listSeasons).Methods(http.MethodGet)
	r.HandleFunc("/seasons", s.createSeason).Methods(http.MethodPost)
	r.HandleFunc("/seasons/{id:[0-9]+}", s.getSeason).Methods(http.MethodGet)
	r.HandleFunc("/seasons/{id:[0-9]+}", s.updateSeason).Methods(http.MethodPut)
	r.HandleFunc("/seasons/{id:[0-9]+}", s.deleteSeason).Methods(http.MethodDelete)
	r.HandleFunc("/seasons/{id:[0-9]+}/regulations/{name}", s.setRegulation).Methods(http.MethodPut)
	r.HandleFunc("/seasons/{id:[0-9]+}/regulations/{name}", s.getRegulation).Methods(http.MethodGet)
	r.HandleFunc("/seasons/{id:[0-9]+}/teams", s.listTeams).Methods(http.MethodGet)
	r.HandleFunc("/seasons/{id:[0-9]+}/teams", s.createTeam).Methods(http.MethodPost)
	r.HandleFunc("/seasons/{id:[0-9]+}/matches", s.listMatches).Methods(http.MethodGet)
	r.HandleFunc("/seasons/{id:[0-9]+}/matches", s.createMatch).Methods(http.MethodPost)
	r.HandleFunc("/seasons/{id:[0-9]+}/standings", s.teamStandings).Methods(http.MethodGet)
	r.HandleFunc("/seasons/{id:[0-9]+}/topscorers", s.playerStandings).Methods(http.MethodGet)
	r.HandleFunc("/seasons/{id:[0-9]+}/logs", s.recordLogs).Methods(http.MethodGet)
	r.HandleFunc("/seasons/{id:[0-9]+}/rebuild", s.rebuildSeason).Methods(http.MethodPost)

	r.HandleFunc("/teams/{id:[0-9]+}", s.getTeam).Methods(http.MethodGet)
	r.HandleFunc("/teams/{id:[0-9]+}", s.updateTeam).Methods(http.MethodPut)
	r.HandleFunc("/teams/{id:[0-9]+}", s.deleteTeam).Methods(http.MethodDelete)
	r.HandleFunc("/teams/{id:[0-9]+}/players", s.listPlayers).Methods(http.MethodGet)
	r.HandleFunc("/teams/{id:[0-9]+}/players", s.createPlayer).Methods(http.MethodPost)
	r.HandleFunc("/teams/{id:[0-9]+}/history", s.teamHistory).Methods(http.MethodGet)

	r.HandleFunc("/players/{id:[0-9]+}", s.getPlayer).Methods(http.MethodGet)
	r.HandleFunc("/players/{id:[0-9]+}", s.deletePlayer).Methods(http.MethodDelete)

	r.HandleFunc("/matches/{id:[0-9]+}", s.getMatch).Methods(http.MethodGet)
	r.HandleFunc("/matches/{id:[0-9]+}", s.rescheduleMatch).Methods(http.MethodPut)
	r.HandleFunc("/matches/{id:[0-9]+}", s.deleteMatch).Methods(http.MethodDelete)
	r.HandleFunc("/matches/{id:[0-9]+}/result", s.setResult).Methods(http.MethodPut)
	r.HandleFunc("/matches/{id:[0-9]+}/result", s.clearResult).Methods(http.MethodDelete)

	return r
}

func StartServer(cfg *config.Config, s *Server) {
	port := ":" + cfg.Server.Port
	log.Printf("Server is listening on port%s", port)
	if err := http.ListenAndServe(port, s.Router()); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

type inlineRebuilder struct {
	svc *league.Service
}

func (r inlineRebuilder) Rebuild(ctx context.Context, seasonID uint) (string, error) {
	season, err := r.svc.RebuildSeason(ctx, seasonID)
	if err != nil {
		return "", err
	}
	r.svc.AnnounceStandings(season.ID, season.StartDate)
	return "inline", nil
}
