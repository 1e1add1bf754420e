package main

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/gorilla/websocket"
)

// Inbound msg IDs (mirrors network/protocol.go)
const (
	MsgTypeJoinQueue    = 101
	MsgTypeCreateRoom   = 103
	MsgTypeJoinRoom     = 104
	MsgTypeReady        = 106
	MsgTypeSubmitChoice = 201
	MsgTypeShowHand     = 202
)

var eventNames = map[uint16]string{
	301: "room-created",
	302: "match-found",
	303: "join-room-failed",
	304: "rejoin-success",
	305: "rejoin-failed",
	306: "round-start",
	307: "request-choices",
	308: "opponent-shown-hand",
	309: "round-results",
	310: "match-end",
}

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	packet := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[4:], data)

	return c.WriteMessage(websocket.BinaryMessage, packet)
}

type playerInfo struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
	Elo      int    `json:"elo"`
}

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: client <uid> [elo]")
	}
	me := playerInfo{UID: os.Args[1], Username: os.Args[1], Elo: 1000}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: "localhost:8080", Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})
	roomID := ""

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Printf("Read error: %v", err)
				return
			}
			if len(message) < 4 {
				continue
			}
			msgID := binary.BigEndian.Uint16(message[0:2])
			body := message[4:]

			name := eventNames[msgID]
			if name == "" {
				name = fmt.Sprintf("msg-%d", msgID)
			}
			log.Printf("<- %s %s", name, string(body))

			// Remember the room so follow-up commands can target it.
			var payload struct {
				RoomID string `json:"roomId"`
			}
			if json.Unmarshal(body, &payload) == nil && payload.RoomID != "" {
				roomID = payload.RoomID
			}
		}
	}()

	// Stdin loop: queue <RANKED|CASUAL> | create | join <roomId> |
	// ready | play <ROCK|PAPER|SCISSORS> | show <hand>
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			fields := strings.Fields(scanner.Text())
			if len(fields) == 0 {
				continue
			}

			switch fields[0] {
			case "queue":
				mode := "CASUAL"
				if len(fields) > 1 {
					mode = strings.ToUpper(fields[1])
				}
				send(c, MsgTypeJoinQueue, map[string]interface{}{
					"player": me, "queueType": mode,
				})
			case "create":
				send(c, MsgTypeCreateRoom, map[string]interface{}{"player": me})
			case "join":
				if len(fields) > 1 {
					send(c, MsgTypeJoinRoom, map[string]interface{}{
						"roomId": fields[1], "player": me,
					})
				}
			case "ready":
				send(c, MsgTypeReady, map[string]string{
					"roomId": roomID, "playerId": me.UID,
				})
			case "play":
				if len(fields) > 1 {
					send(c, MsgTypeSubmitChoice, map[string]string{
						"roomId": roomID, "playerId": me.UID,
						"choice": strings.ToUpper(fields[1]),
					})
				}
			case "show":
				if len(fields) > 1 {
					send(c, MsgTypeShowHand, map[string]string{
						"roomId": roomID, "playerId": me.UID,
						"hand": strings.ToUpper(fields[1]),
					})
				}
			default:
				log.Printf("unknown command: %s", fields[0])
			}
		}
	}()

	select {
	case <-done:
	case <-interrupt:
		log.Println("Interrupted, closing connection")
		c.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
}
