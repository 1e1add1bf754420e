package rpc

import (
	"net"
	"net/rpc"

	"github.com/wfunc/duelserver/logger"
	"github.com/wfunc/duelserver/models"
	"github.com/wfunc/duelserver/services"
)

// Server manages the RPC listener for the internal admin surface.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// HistoryRPC exposes persisted match history over net/rpc. Methods follow
// the net/rpc signature rules: exported, args value, reply pointer, error
// return.
type HistoryRPC struct {
	history *services.HistoryService
}

func NewHistoryRPC(history *services.HistoryService) *HistoryRPC {
	return &HistoryRPC{history: history}
}

type GetPlayerHistoryArgs struct {
	UID string
}

type GetPlayerHistoryReply struct {
	Profile models.PlayerProfile
	Stats   models.PlayerStats
	Matches []models.MatchSummary
}

func (h *HistoryRPC) GetPlayerHistory(args *GetPlayerHistoryArgs, reply *GetPlayerHistoryReply) error {
	profile, stats, matches, err := h.history.GetPlayerHistory(args.UID)
	if err != nil {
		return err
	}
	reply.Profile = *profile
	reply.Stats = *stats
	reply.Matches = matches
	return nil
}
