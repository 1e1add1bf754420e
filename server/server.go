package server

import (
	"encoding/json"
	"errors"
	"net/http"
	netrpc "net/rpc"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/duelserver/bot"
	"github.com/wfunc/duelserver/broadcast"
	"github.com/wfunc/duelserver/config"
	"github.com/wfunc/duelserver/game"
	"github.com/wfunc/duelserver/logger"
	"github.com/wfunc/duelserver/monitor"
	"github.com/wfunc/duelserver/network"
	"github.com/wfunc/duelserver/persistence"
	"github.com/wfunc/duelserver/queue"
	"github.com/wfunc/duelserver/room"
	duelrpc "github.com/wfunc/duelserver/rpc"
	"github.com/wfunc/duelserver/services"
	"github.com/wfunc/duelserver/session"
	"github.com/wfunc/duelserver/timer"
)

// GameServer hosts the matchmaking queue, the active duel registry and the
// websocket transport that feeds them.
type GameServer struct {
	cfg            *config.Config
	upgrader       websocket.Upgrader
	timers         *timer.Manager
	sessionManager *session.Manager
	roomManager    *room.Manager
	queueManager   *queue.Manager
	broadcaster    *broadcast.RoomBroadcaster
	bots           *bot.Simulator
	store          persistence.Store
	monitor        *monitor.Monitor
	rpcServer      *duelrpc.Server
	shutdownChan   chan struct{}
}

func NewGameServer(cfg *config.Config, store persistence.Store) *GameServer {
	s := &GameServer{
		cfg:            cfg,
		timers:         timer.NewManager(),
		sessionManager: session.NewManager(),
		store:          store,
		monitor:        monitor.NewMonitor("duelserver"),
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	s.broadcaster = broadcast.NewRoomBroadcaster(s.sessionManager)
	s.bots = bot.NewSimulator(s.timers, bot.NewNameClient())

	var recorder room.MatchRecorder
	if store != nil {
		recorder = store
	}

	s.roomManager = room.NewManager(room.Deps{
		Broadcaster: s.broadcaster,
		Recorder:    recorder,
		Timers:      s.timers,
		Bots:        s.bots,
		Rules: game.Rules{
			RoundDuration: cfg.Game.RoundDuration,
			Intermission:  cfg.Game.Intermission,
			WinThreshold:  cfg.Game.WinThreshold,
			GracePeriod:   cfg.Game.GracePeriod,
		},
		Events: room.Events{
			RoundResolved: func(elapsed time.Duration) {
				s.monitor.IncRoundsResolved()
				s.monitor.ObserveRoundSeconds(elapsed)
			},
			MatchEnded: func(reason string) {
				if reason == room.ReasonDisconnect {
					s.monitor.IncForfeits()
				}
			},
		},
	})
	s.broadcaster.BindRoomManager(s.roomManager)

	s.queueManager = queue.NewManager(queue.Config{
		BaseTolerance:     cfg.Queue.BaseTolerance,
		ToleranceStep:     cfg.Queue.ToleranceStep,
		StepInterval:      cfg.Queue.StepInterval,
		SweepInterval:     cfg.Queue.SweepInterval,
		RankedBotDelayMin: cfg.Queue.RankedBotDelayMin,
		RankedBotDelayMax: cfg.Queue.RankedBotDelayMax,
		CasualBotDelayMin: cfg.Queue.CasualBotDelayMin,
		CasualBotDelayMax: cfg.Queue.CasualBotDelayMax,
	}, s.timers, s)

	if store != nil {
		rpcServer, err := duelrpc.NewServer(cfg.Server.RPCAddress)
		if err != nil {
			logger.Log.Fatalf("Failed to create RPC server: %v", err)
		}
		s.rpcServer = rpcServer
		netrpc.Register(duelrpc.NewHistoryRPC(services.NewHistoryService(store)))
	}

	// 定期刷新容量指标
	s.timers.Schedule(5*time.Second, 5*time.Second, func() {
		s.monitor.SetQueuedRanked(s.queueManager.Len(game.ModeRanked))
		s.monitor.SetQueuedCasual(s.queueManager.Len(game.ModeCasual))
		s.monitor.SetActiveRooms(s.roomManager.ActiveCount())
	})

	return s
}

func (s *GameServer) Start() error {
	if s.rpcServer != nil {
		go s.rpcServer.Start()
	}
	s.monitor.StartServer(s.cfg.Server.MetricsAddress)

	http.HandleFunc("/ws", s.handleWebSocket)
	logger.Log.Infof("Duel server listening on %s", s.cfg.Server.HTTPAddress)
	return http.ListenAndServe(s.cfg.Server.HTTPAddress, nil)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.queueManager.Stop()
	s.timers.Stop()
	if s.rpcServer != nil {
		s.rpcServer.Stop()
	}
}

// --- queue.MatchStarter ---

// StartMatch opens a duel between two paired human tickets.
func (s *GameServer) StartMatch(a, b *queue.Ticket, mode game.Mode) {
	r := s.roomManager.CreateSession(slotFromTicket(a), slotFromTicket(b), mode)
	s.bindRoomSessions(r)
	s.monitor.IncMatchesStarted(string(mode))
}

// StartBotMatch pairs a lone ticket with a freshly generated hidden bot.
func (s *GameServer) StartBotMatch(t *queue.Ticket, mode game.Mode) {
	profile := s.bots.NewOpponent(t.Elo)
	botSlot := room.PlayerSlot{
		UID:      profile.UID,
		Username: profile.Username,
		Elo:      profile.Elo,
		IsBot:    true,
	}

	r := s.roomManager.CreateSession(slotFromTicket(t), botSlot, mode)
	s.bindRoomSessions(r)
	s.monitor.IncMatchesStarted(string(mode))
	s.monitor.IncBotMatches()
}

func slotFromTicket(t *queue.Ticket) room.PlayerSlot {
	return room.PlayerSlot{
		UID:       t.PlayerID,
		Username:  t.Username,
		PhotoURL:  t.PhotoURL,
		Elo:       t.Elo,
		SessionID: t.SessionID,
	}
}

func (s *GameServer) bindRoomSessions(r *room.Room) {
	for _, sessionID := range r.SessionIDs() {
		if sess, ok := s.sessionManager.Get(sessionID); ok {
			sess.SetRoom(r.ID)
		}
	}
}

// --- websocket transport ---

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.monitor.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.handleDisconnect(sess)
		s.sessionManager.Remove(sess.GetID())
		s.monitor.DecOnlinePlayers()
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(sess, packet)
		}
	}
}

// handleDisconnect runs the implicit-leave path: drop any queue ticket and
// start the forfeit grace countdown for an unfinished duel.
func (s *GameServer) handleDisconnect(sess *session.Session) {
	if playerID := sess.GetPlayerID(); playerID != "" {
		s.queueManager.Dequeue(playerID)
	}

	if r, playerID, ok := s.roomManager.FindBySession(sess.GetID()); ok {
		r.HandleDisconnect(playerID)
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		sess.LastActive = time.Now()
	case network.MsgTypeJoinQueue:
		s.handleJoinQueue(sess, packet)
	case network.MsgTypeLeaveQueue:
		s.handleLeaveQueue(sess)
	case network.MsgTypeCreateRoom:
		s.handleCreateRoom(sess, packet)
	case network.MsgTypeJoinRoom:
		s.handleJoinRoom(sess, packet)
	case network.MsgTypeRejoinRoom:
		s.handleRejoinRoom(sess, packet)
	case network.MsgTypeReady:
		s.handleReady(sess, packet)
	case network.MsgTypeSubmitChoice:
		s.handleSubmitChoice(sess, packet)
	case network.MsgTypeShowHand:
		s.handleShowHand(sess, packet)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
}

func (s *GameServer) handleJoinQueue(sess *session.Session, packet *network.Packet) {
	var req network.JoinQueueRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil || req.Player.UID == "" {
		return
	}

	sess.BindPlayer(req.Player.UID)

	if s.store != nil {
		go func() {
			if err := s.store.UpsertPlayer(req.Player.UID, req.Player.Username, req.Player.PhotoURL, req.Player.Elo); err != nil {
				logger.Log.Warnf("Failed to upsert player %s: %v", req.Player.UID, err)
			}
		}()
	}

	mode := req.QueueType
	if mode != game.ModeRanked {
		mode = game.ModeCasual
	}

	s.queueManager.Enqueue(&queue.Ticket{
		PlayerID:  req.Player.UID,
		Username:  req.Player.Username,
		PhotoURL:  req.Player.PhotoURL,
		Elo:       req.Player.Elo,
		Mode:      mode,
		SessionID: sess.GetID(),
	})
}

func (s *GameServer) handleLeaveQueue(sess *session.Session) {
	if playerID := sess.GetPlayerID(); playerID != "" {
		s.queueManager.Dequeue(playerID)
	}
}

func (s *GameServer) handleCreateRoom(sess *session.Session, packet *network.Packet) {
	var req network.CreateRoomRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil || req.Player.UID == "" {
		return
	}

	sess.BindPlayer(req.Player.UID)
	roomID := s.roomManager.CreateCustomRoom(room.PlayerSlot{
		UID:       req.Player.UID,
		Username:  req.Player.Username,
		PhotoURL:  req.Player.PhotoURL,
		Elo:       req.Player.Elo,
		SessionID: sess.GetID(),
	})

	sess.SendJSON(network.MsgTypeRoomCreated, network.RoomCreatedEvent{RoomID: roomID})
}

func (s *GameServer) handleJoinRoom(sess *session.Session, packet *network.Packet) {
	var req network.JoinRoomRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil || req.Player.UID == "" {
		return
	}

	sess.BindPlayer(req.Player.UID)
	r, err := s.roomManager.JoinCustomRoom(req.RoomID, room.PlayerSlot{
		UID:       req.Player.UID,
		Username:  req.Player.Username,
		PhotoURL:  req.Player.PhotoURL,
		Elo:       req.Player.Elo,
		SessionID: sess.GetID(),
	})
	if err != nil {
		code := network.CodeRoomNotFound
		if errors.Is(err, room.ErrRoomFull) {
			code = network.CodeRoomFull
		}
		sess.SendJSON(network.MsgTypeJoinRoomFailed, network.ErrorEvent{
			Code:   code,
			Reason: "Room full or doesn't exist",
		})
		return
	}

	s.bindRoomSessions(r)
	s.monitor.IncMatchesStarted(string(game.ModeCasual))
}

func (s *GameServer) handleRejoinRoom(sess *session.Session, packet *network.Packet) {
	var req network.RejoinRoomRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}

	snapshot, err := s.roomManager.Rejoin(req.RoomID, req.PlayerID, sess.GetID())
	if err != nil {
		event := network.ErrorEvent{Code: network.CodeGameNotFound, Reason: "Game not found"}
		if errors.Is(err, room.ErrPlayerNotInRoom) {
			event = network.ErrorEvent{Code: network.CodePlayerNotInGame, Reason: "Player not in game"}
		}
		sess.SendJSON(network.MsgTypeRejoinFailed, event)
		return
	}

	sess.BindPlayer(req.PlayerID)
	sess.SetRoom(req.RoomID)
	sess.SendJSON(network.MsgTypeRejoinSuccess, snapshot)
}

func (s *GameServer) handleReady(sess *session.Session, packet *network.Packet) {
	var req network.ReadyRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}

	if r, ok := s.roomManager.Get(req.RoomID); ok {
		r.ReadyUp(req.PlayerID)
	}
}

func (s *GameServer) handleSubmitChoice(sess *session.Session, packet *network.Packet) {
	var req network.SubmitChoiceRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}

	if r, ok := s.roomManager.Get(req.RoomID); ok {
		r.SubmitChoice(req.PlayerID, req.Choice)
	}
}

func (s *GameServer) handleShowHand(sess *session.Session, packet *network.Packet) {
	var req network.ShowHandRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}

	// Only valid hands (or a retraction) are relayed.
	if req.Hand != nil {
		if _, err := game.ParseMove(*req.Hand); err != nil {
			return
		}
	}

	if r, ok := s.roomManager.Get(req.RoomID); ok {
		r.RelayShownHand(req.PlayerID, req.Hand)
	}
}
