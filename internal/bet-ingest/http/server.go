package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/btc-bet-poc/internal/bet-ingest/dto"
	"github.com/radieske/btc-bet-poc/internal/bet-ingest/repo"
	"github.com/radieske/btc-bet-poc/pkg/contracts/events"
)

// Reads é o lado de leitura consultado pelos endpoints GET.
type Reads interface {
	CurrentBet(ctx context.Context, userID string) (*repo.CurrentBet, error)
	PlayerScore(ctx context.Context, userID string) (int64, error)
}

type Server struct {
	log         *zap.Logger
	reads       Reads
	publ        interface {
		PublishBetSubmitted(context.Context, events.BetSubmitted) error
	}
	defaultWait int
}

func NewServer(log *zap.Logger, reads Reads, p interface {
	PublishBetSubmitted(context.Context, events.BetSubmitted) error
}, defaultWait int) *Server {
	return &Server{log: log, reads: reads, publ: p, defaultWait: defaultWait}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/bets", s.placeBet)        // POST
	mux.HandleFunc("/bets/", s.getCurrentBet)  // GET /bets/{userId}
	mux.HandleFunc("/players/", s.getPlayer)   // GET /players/{userId}
	return mux
}

// placeBet valida a submissão e publica no tópico bet_submitted.
// A decisão de aceitar (cooldown) é do resolver; aqui só validação sincrona.
func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return
	}
	if req.Guess != "UP" && req.Guess != "DOWN" {
		http.Error(w, "guess must be UP or DOWN", http.StatusBadRequest)
		return
	}

	wait := req.WaitSeconds
	if wait <= 0 {
		wait = s.defaultWait
	}

	ev := events.BetSubmitted{
		BetID:       uuid.NewString(),
		UserID:      req.UserID,
		Guess:       req.Guess,
		WaitSeconds: wait,
	}
	if err := s.publ.PublishBetSubmitted(r.Context(), ev); err != nil {
		s.log.Error("publish bet_submitted", zap.Error(err))
		http.Error(w, "submission failed, retry later", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(dto.PlaceBetResponse{
		BetID:  ev.BetID,
		Status: "SUBMITTED",
	})
}

func (s *Server) getCurrentBet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// path: /bets/{userId}
	userID := r.URL.Path[len("/bets/"):]
	if userID == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return
	}

	bet, err := s.reads.CurrentBet(r.Context(), userID)
	if errors.Is(err, repo.ErrNotFound) {
		http.Error(w, "no bet", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("current bet read", zap.Error(err))
		http.Error(w, "read failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, bet)
}

func (s *Server) getPlayer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Path[len("/players/"):]
	if userID == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return
	}

	score, err := s.reads.PlayerScore(r.Context(), userID)
	if errors.Is(err, repo.ErrNotFound) {
		http.Error(w, "player not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("player read", zap.Error(err))
		http.Error(w, "read failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, dto.PlayerResponse{UserID: userID, Score: score})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
