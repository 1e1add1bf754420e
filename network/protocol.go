package network

// Inbound (client -> engine)
const (
	MsgTypeHeartbeat    = 1
	MsgTypeJoinQueue    = 101
	MsgTypeLeaveQueue   = 102
	MsgTypeCreateRoom   = 103
	MsgTypeJoinRoom     = 104
	MsgTypeRejoinRoom   = 105
	MsgTypeReady        = 106
	MsgTypeSubmitChoice = 201
	MsgTypeShowHand     = 202
)

// Outbound (engine -> client)
const (
	MsgTypeRoomCreated       = 301
	MsgTypeMatchFound        = 302
	MsgTypeJoinRoomFailed    = 303
	MsgTypeRejoinSuccess     = 304
	MsgTypeRejoinFailed      = 305
	MsgTypeRoundStart        = 306
	MsgTypeRequestChoices    = 307
	MsgTypeOpponentShownHand = 308
	MsgTypeRoundResults      = 309
	MsgTypeMatchEnd          = 310
)
