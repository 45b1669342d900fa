package server

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The gateway sits behind the deployment's own origin policy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamRequest is one inbound websocket frame. Mode selects the chat
// variant; the remaining fields mirror chatRequest.
type streamRequest struct {
	Mode string `json:"mode"`
	chatRequest
}

type streamReply struct {
	Reply string `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
}

// handleChatStream upgrades to a websocket and answers one chat request
// per frame until the client closes.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] upgrade: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[WS] chat stream opened from %s", r.RemoteAddr)
	for {
		var req streamRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[WS] read: %v", err)
			}
			return
		}

		reply, err := s.dispatchStream(r, req)
		out := streamReply{Reply: reply}
		if err != nil {
			out = streamReply{Error: err.Error()}
		}
		if err := conn.WriteJSON(out); err != nil {
			log.Printf("[WS] write: %v", err)
			return
		}
	}
}

func (s *Server) dispatchStream(r *http.Request, req streamRequest) (string, error) {
	history, err := decodeHistory(req.History)
	if err != nil {
		return "", err
	}

	ctx := r.Context()
	switch req.Mode {
	case "default":
		return s.agent.ChatDefault(ctx, history)
	case "rag":
		return s.agent.ChatWithRAG(ctx, strOrEmpty(req.Room), principal(req.UserID), req.Embedding, history)
	case "knowledge":
		return s.agent.ChatWithKnowledge(ctx, strOrEmpty(req.Room), req.Embedding, strOrEmpty(req.Keywords), history)
	case "user_context":
		return s.agent.ChatWithUserContext(ctx, strOrEmpty(req.Room), principal(req.UserID), history)
	default:
		return s.agent.Chat(ctx, strOrEmpty(req.Room), history)
	}
}
