package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/recochat/internal/api"
	"github.com/dmitrijs2005/recochat/internal/common"
	"github.com/dmitrijs2005/recochat/internal/cryptox"
	"github.com/gorilla/mux"
)

const maxBodySize = 1 << 20

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid request body: %v", common.ErrorValidation, err)
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.HealthResponse{Status: "ok"})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	reg, err := s.users.Register(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.UserRegistered()
	s.logger.Info(r.Context(), "user registered", "user_id", reg.UserID)
	writeJSON(w, http.StatusCreated, api.RegisterResponse{ID: reg.UserID, Token: reg.AccessToken})
}

func (s *Server) uploadPublicKey(w http.ResponseWriter, r *http.Request) {
	var req api.PublicKeyRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	key, err := cryptox.DecodeKey(req.PublicKey)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: publicKey: %v", common.ErrorValidation, err))
		return
	}

	if err := s.users.UploadPublicKey(r.Context(), userIDFrom(r.Context()), key); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createChat(w http.ResponseWriter, r *http.Request) {
	var req api.CreateChatRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	chat, err := s.chats.CreateChat(r.Context(), userIDFrom(r.Context()), req.Name, req.Participants)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.ChatCreated()
	writeJSON(w, http.StatusCreated, api.CreateChatResponse{ID: chat.ID})
}

func (s *Server) listChats(w http.ResponseWriter, r *http.Request) {
	chats, err := s.chats.ListChats(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]api.ChatSummary, 0, len(chats))
	for _, c := range chats {
		out = append(out, api.ChatSummary{ID: c.ID, Name: c.Name, CreatedBy: c.CreatedBy, CreatedAt: c.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getChatKey(w http.ResponseWriter, r *http.Request) {
	sealed, err := s.chats.GetKey(r.Context(), mux.Vars(r)["id"], userIDFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.ChatKeyResponse{EncryptedKey: cryptox.EncodeKey(sealed)})
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := intParam(q.Get(api.PageParam), 1)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := intParam(q.Get(api.LimitParam), 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	msgs, err := s.chats.ListMessages(r.Context(), mux.Vars(r)["id"], userIDFrom(r.Context()), page, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]api.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.API())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req api.SendMessageRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	msg, err := s.chats.SendMessage(r.Context(), userIDFrom(r.Context()), req.ChatID, req.SenderID, req.Content, req.CreatedBy)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.MessageStored()
	writeJSON(w, http.StatusCreated, msg.API())
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r, userIDFrom(r.Context()))
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", common.ErrorValidation, v)
	}
	return n, nil
}
