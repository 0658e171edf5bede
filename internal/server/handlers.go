package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sammichenVV/translateserver/internal/pipeline"
	"github.com/sammichenVV/translateserver/internal/terms"
	"github.com/sammichenVV/translateserver/internal/websocket"
	"go.uber.org/zap"
)

// Request methods.
const (
	MethodTranslate   = "translate"
	MethodAddWords    = "add_words"
	MethodDeleteWords = "delete_words"
	MethodShowWords   = "show_words"
)

type dispatchRequest struct {
	Method string          `json:"method"`
	Data   json.RawMessage `json:"data"`
}

// dispatchResponse carries the HTTP status code as a string in Status.
type dispatchResponse struct {
	Status  string      `json:"status"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

type translateData struct {
	Input *string `json:"input"`
}

type addWordsData struct {
	Words [][]string `json:"words"`
}

type deleteWordsData struct {
	Words []string `json:"words"`
}

// requestError is answered with its status code and message.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string { return e.message }

func badRequest(format string, args ...interface{}) error {
	return &requestError{status: http.StatusBadRequest, message: fmt.Sprintf(format, args...)}
}

// handleDispatch decodes {"method", "data"} and routes to the method handler
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r.Context())
	log := s.logger.WithRequestID(requestID)

	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, &requestError{status: http.StatusRequestEntityTooLarge, message: "request body too large"})
			return
		}
		s.writeError(w, badRequest("invalid request body: %v", err))
		return
	}

	var (
		data interface{}
		err  error
	)
	switch req.Method {
	case MethodTranslate:
		data, err = s.handleTranslate(r, req.Data)
	case MethodAddWords:
		if err = s.authorizeAdmin(r); err == nil {
			err = s.handleAddWords(r.Context(), req.Data)
		}
	case MethodDeleteWords:
		if err = s.authorizeAdmin(r); err == nil {
			err = s.handleDeleteWords(r.Context(), req.Data)
		}
	case MethodShowWords:
		data = map[string]interface{}{"words": s.translator.ShowWords()}
	case "":
		err = badRequest("method is required")
	default:
		err = badRequest("unsupported method: %s", req.Method)
	}

	if err != nil {
		log.Warn("Request failed",
			zap.String("method", req.Method),
			zap.Error(err))
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dispatchResponse{Status: strconv.Itoa(http.StatusOK), Data: data})
}

func (s *Server) handleTranslate(r *http.Request, raw json.RawMessage) (interface{}, error) {
	var data translateData
	if err := decodeData(raw, &data); err != nil {
		return nil, err
	}
	if data.Input == nil {
		return nil, badRequest("data.input is required")
	}

	start := time.Now()
	result, err := s.translator.Translate(r.Context(), *data.Input)

	event := websocket.TranslationEvent{
		RequestID:    getRequestID(r.Context()),
		ClientIP:     clientIP(r, s.config.Server.TrustProxyHeaders),
		InputChars:   len([]rune(*data.Input)),
		ProcessingMS: float64(time.Since(start).Microseconds()) / 1000.0,
	}
	if err != nil {
		event.Error = err.Error()
	} else {
		event.OutputChars = len([]rune(result.Translation))
		event.MaskedTerms = result.MaskedTerms
		event.Anomalies = result.Demask.Anomalies()
		event.Collision = result.Collision
	}
	s.broadcast(websocket.EventTypeTranslation, event.RequestID, event)

	if err != nil {
		return nil, err
	}
	return map[string]string{"translation": result.Translation}, nil
}

func (s *Server) handleAddWords(ctx context.Context, raw json.RawMessage) error {
	var data addWordsData
	if err := decodeData(raw, &data); err != nil {
		return err
	}
	if data.Words == nil {
		return badRequest("data.words is required")
	}

	words := make([][2]string, 0, len(data.Words))
	for i, w := range data.Words {
		if len(w) != 2 {
			return badRequest("data.words[%d] must be a [source, target] pair", i)
		}
		words = append(words, [2]string{w[0], w[1]})
	}
	return s.translator.AddWords(ctx, words)
}

func (s *Server) handleDeleteWords(ctx context.Context, raw json.RawMessage) error {
	var data deleteWordsData
	if err := decodeData(raw, &data); err != nil {
		return err
	}
	if data.Words == nil {
		return badRequest("data.words is required")
	}
	return s.translator.DeleteWords(ctx, data.Words)
}

func decodeData(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return badRequest("data is required")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return badRequest("invalid data: %v", err)
	}
	return nil
}

// authorizeAdmin checks the bearer token of dictionary mutations when an
// admin token is configured.
func (s *Server) authorizeAdmin(r *http.Request) error {
	token := s.config.Server.AdminToken
	if token == "" {
		return nil
	}
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) ||
		subtle.ConstantTimeCompare([]byte(strings.TrimSpace(auth[len(prefix):])), []byte(token)) != 1 {
		return &requestError{status: http.StatusUnauthorized, message: "unauthorized"}
	}
	return nil
}

// statusFor maps an error to the HTTP status reported to the client.
func statusFor(err error) int {
	var reqErr *requestError
	var backendErr *pipeline.BackendError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.status
	case errors.Is(err, terms.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &backendErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	writeJSON(w, status, dispatchResponse{Status: strconv.Itoa(status), Message: message})
}

func (s *Server) broadcast(eventType websocket.EventType, requestID string, data interface{}) {
	if s.wsHub == nil {
		return
	}
	s.wsHub.BroadcastEvent(websocket.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		RequestID: requestID,
		Data:      data,
	})
}
