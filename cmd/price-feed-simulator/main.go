package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/btc-bet-poc/internal/shared/config"
	"github.com/radieske/btc-bet-poc/internal/shared/logger"
	"github.com/radieske/btc-bet-poc/internal/shared/metrics"
)

// Simulador local do feed de preço, com a mesma forma da API de ticker da
// Binance. Serve o preço corrente via GET e transmite ticks via WebSocket
// (o frontend usa o stream pro preço ao vivo; o resolver só faz GET pontual).

var (
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "price_sim_ws_connections",
		Help: "Clientes WebSocket conectados",
	})
	ticksServed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "price_sim_ticker_requests_total",
		Help: "Total de requisições GET no ticker",
	})
)

type tick struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
	TsMs   int64  `json:"ts_ms,omitempty"`
}

// walker gera um random walk em torno do preço inicial
type walker struct {
	mu    sync.RWMutex
	price float64
	rng   *rand.Rand
}

func newWalker(start float64) *walker {
	return &walker{price: start, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (w *walker) step() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	// variação de até ±0.05% por tick
	w.price *= 1 + (w.rng.Float64()-0.5)/1000
	return w.price
}

func (w *walker) current() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.price
}

type clientConn struct {
	id   string
	conn *websocket.Conn
}

// hub gerencia os clientes WebSocket e faz broadcast dos ticks
type hub struct {
	mu      sync.RWMutex
	clients map[string]*clientConn
	log     *zap.Logger
}

func newHub(log *zap.Logger) *hub {
	return &hub{clients: make(map[string]*clientConn), log: log}
}

func (h *hub) add(c *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	wsConnections.Inc()
	h.log.Info("ws client connected", zap.String("client_id", c.id))
}

func (h *hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[id]; ok {
		delete(h.clients, id)
		wsConnections.Dec()
		h.log.Info("ws client disconnected", zap.String("client_id", id))
	}
}

func (h *hub) broadcast(v any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	msg, _ := json.Marshal(v)
	for id, c := range h.clients {
		_ = c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Warn("ws write failed", zap.String("client_id", id), zap.Error(err))
			_ = c.conn.Close()
		}
	}
}

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(wsConnections, ticksServed)

	w := newWalker(64000)
	h := newHub(log)

	// Random walk + broadcast, um tick por segundo
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for range ticker.C {
			price := w.step()
			h.broadcast(tick{
				Symbol: cfg.PriceSymbol,
				Price:  fmt.Sprintf("%.8f", price),
				TsMs:   time.Now().UnixMilli(),
			})
		}
	}()

	mux := http.NewServeMux()

	// Mesma forma da Binance: GET /api/v3/ticker/price?symbol=BTCUSDT
	mux.HandleFunc("/api/v3/ticker/price", func(rw http.ResponseWriter, r *http.Request) {
		ticksServed.Inc()
		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			symbol = cfg.PriceSymbol
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(tick{
			Symbol: symbol,
			Price:  fmt.Sprintf("%.8f", w.current()),
		})
	})

	mux.HandleFunc("/ws", func(rw http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			log.Warn("ws upgrade failed", zap.Error(err))
			return
		}
		c := &clientConn{id: uuid.NewString(), conn: conn}
		h.add(c)
		go func() {
			defer h.remove(c.id)
			defer conn.Close()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})

	metrics.StartMetricsServer(cfg.MetricsPort, func(context.Context) error { return nil })

	addr := ":" + cfg.HTTPPort
	log.Info("price-feed-simulator listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal("http", zap.Error(err))
	}
}
