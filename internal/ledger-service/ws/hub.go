package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/livebet-ledger/internal/ledger-service/auth"
	"github.com/radieske/livebet-ledger/internal/ledger-service/domain"
	"github.com/radieske/livebet-ledger/internal/ledger-service/dto"
	"github.com/radieske/livebet-ledger/internal/ledger-service/fanout"
	"github.com/radieske/livebet-ledger/internal/ledger-service/service"
	"github.com/radieske/livebet-ledger/internal/ledger-service/wagers"
	"github.com/radieske/livebet-ledger/pkg/contracts/events"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMessage = 4096
)

// Hub liga conexões WebSocket a sessões do fanout. Cada conexão tem um
// único writer (a goroutine que drena a sessão); o loop de leitura só
// responde via fanout.
type Hub struct {
	upgrader websocket.Upgrader
	svc      *service.Service
	auth     auth.Resolver
	log      *zap.Logger
	buffer   int
	onOpen   func(delta int)
}

// NewHub cria o Hub com política de origem (CORS) customizada
func NewHub(svc *service.Service, resolver auth.Resolver, log *zap.Logger, buffer int, allowOrigin func(r *http.Request) bool) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		svc:      svc,
		auth:     resolver,
		log:      log,
		buffer:   buffer,
	}
}

// OnSessions recebe +1/-1 a cada conexão aberta/fechada (gauge de sessões)
func (h *Hub) OnSessions(fn func(delta int)) { h.onOpen = fn }

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := h.auth.Resolve(r)
	if err != nil {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	if _, err := h.svc.EnsureAccount(id.UserID); err != nil {
		h.log.Warn("ws open account", zap.String("userId", id.UserID), zap.Error(err))
	}
	sess := h.svc.Fanout.Open(id.UserID, h.buffer)
	if h.onOpen != nil {
		h.onOpen(1)
	}
	h.log.Debug("ws connected", zap.String("userId", id.UserID), zap.String("sessionId", sess.ID))

	done := make(chan struct{})
	go h.writePump(conn, sess, done)

	h.readLoop(conn, sess)

	h.svc.Disconnect(sess) // fecha sess.C(): o writePump termina
	<-done
	conn.Close()
	if h.onOpen != nil {
		h.onOpen(-1)
	}
	h.log.Debug("ws disconnected", zap.String("userId", id.UserID), zap.String("sessionId", sess.ID))
}

func (h *Hub) writePump(conn *websocket.Conn, sess *fanout.Session, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-sess.C():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				// derruba a leitura também
				conn.Close()
				drain(sess)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				conn.Close()
				drain(sess)
				return
			}
		}
	}
}

// drain consome até a sessão fechar para não segurar Disconnect
func drain(sess *fanout.Session) {
	for range sess.C() {
	}
}

func (h *Hub) readLoop(conn *websocket.Conn, sess *fanout.Session) {
	conn.SetReadLimit(maxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		h.handle(sess, msg)
	}
}

func (h *Hub) handle(sess *fanout.Session, msg ClientMsg) {
	switch msg.Type {
	case MsgSubscribe:
		if err := h.svc.Watch(sess, msg.EventID); err != nil {
			h.replyError(sess, err)
			return
		}
		// snapshot atual para quem acabou de entrar
		if ev, err := h.svc.GetEvent(msg.EventID); err == nil {
			h.svc.Fanout.SendTo(sess, events.KindOddsUpdated, events.OddsUpdated{
				EventID: ev.ID,
				Options: dto.Options(ev.Options),
				Ts:      time.Now(),
			})
		}

	case MsgUnsubscribe:
		h.svc.Unwatch(sess, msg.EventID)

	case MsgPing:
		h.svc.Fanout.SendTo(sess, events.KindPong, map[string]time.Time{"timestamp": time.Now()})

	case MsgPlaceWager:
		// sucesso chega pelo canal user:{id} (wager.accepted)
		_, err := h.svc.PlaceWager(wagers.PlaceRequest{
			UserID:       sess.UserID,
			EventID:      msg.EventID,
			Option:       domain.OptionRef{Type: domain.OptionType(msg.Option.Type), Name: msg.Option.Name},
			Amount:       msg.Amount,
			ExpectedOdds: msg.Option.Odds,
		})
		if err != nil {
			h.replyError(sess, err)
		}

	case MsgCancelWager:
		if _, err := h.svc.CancelWager(sess.UserID, msg.WagerID); err != nil {
			h.replyError(sess, err)
		}

	case MsgActiveWagers:
		h.svc.Fanout.SendTo(sess, events.KindActiveWagers, dto.Wagers(h.svc.ListActiveWagers(sess.UserID)))

	default:
		h.replyError(sess, domain.ErrInvalidInput)
	}
}

func (h *Hub) replyError(sess *fanout.Session, err error) {
	h.svc.Fanout.SendTo(sess, events.KindWagerError, events.WagerError{Message: err.Error(), Code: domain.Code(err)})
}
