package relay

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ClientType selects the upgrade protocol a /session request will use.
type ClientType string

const (
	ClientTypeTCP       ClientType = "tcp"
	ClientTypeWebsocket ClientType = "websocket"
)

// Server wires the relay's HTTP surface: session creation, the upgrade
// endpoint, the signing endpoints, and health/CORS, mirroring the teacher's
// notary.go mux wiring (one handler per concern, registered on a single
// http.ServeMux in cmd/notaryd).
type Server struct {
	Policy  Policy
	Table   *SessionTable
	Signer  *Signer
	Log     *zap.Logger
	Upgrade *websocket.Upgrader
}

// NewServer constructs a relay Server with sane upgrade-buffer defaults.
func NewServer(policy Policy, table *SessionTable, signer *Signer, log *zap.Logger) *Server {
	return &Server{
		Policy: policy,
		Table:  table,
		Signer: signer,
		Log:    log,
		Upgrade: &websocket.Upgrader{
			ReadBufferSize:  pumpBufferSize,
			WriteBufferSize: pumpBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type createSessionRequest struct {
	ClientType    ClientType `json:"client_type"`
	MaxSentData   *int       `json:"max_sent_data,omitempty"`
	MaxRecvData   *int       `json:"max_recv_data,omitempty"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

// HandleCreateSession implements POST /session: allocates a session_id for
// a subsequent upgrade, per spec.md §6.
func (s *Server) HandleCreateSession(w http.ResponseWriter, req *http.Request) {
	withCORS(w)
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body createSessionRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if body.ClientType != ClientTypeTCP && body.ClientType != ClientTypeWebsocket {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	sessionID := uuid.NewString()
	s.Table.Insert(&SessionRecord{
		SessionID: sessionID,
		Timestamp: time.Now(),
		Status:    StatusPending,
	})

	writeJSON(w, http.StatusOK, createSessionResponse{SessionID: sessionID})
}

// HandleUpgrade implements GET /v1: it resolves and policy-checks
// target_host, dials the target, switches protocols per the client's
// Upgrade header, and runs the bidirectional pump to completion, per
// spec.md §4.2.
func (s *Server) HandleUpgrade(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	q := req.URL.Query()
	targetHost := q.Get("target_host")
	targetPort := q.Get("target_port")
	sessionID := q.Get("session_id")
	if targetHost == "" || targetPort == "" {
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}
	if _, err := strconv.Atoi(targetPort); err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if _, err := s.Policy.CheckTarget(targetHost); err != nil {
		if s.Log != nil {
			s.Log.Warn("rejected relay target", zap.String("target_host", targetHost), zap.Error(err))
		}
		w.WriteHeader(http.StatusForbidden)
		return
	}

	target, err := net.DialTimeout("tcp", net.JoinHostPort(targetHost, targetPort), 10*time.Second)
	if err != nil {
		if s.Log != nil {
			s.Log.Error("dialing relay target", zap.Error(err))
		}
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	defer target.Close()

	switch req.Header.Get("Upgrade") {
	case "websocket":
		s.upgradeWebsocket(w, req, target, sessionID)
	case "TCP", "tcp":
		s.upgradeTCP(w, req, target, sessionID)
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func (s *Server) upgradeWebsocket(w http.ResponseWriter, req *http.Request, target net.Conn, sessionID string) {
	conn, err := s.Upgrade.Upgrade(w, req, nil)
	if err != nil {
		if s.Log != nil {
			s.Log.Error("websocket upgrade failed", zap.Error(err))
		}
		return
	}
	defer conn.Close()

	// Per spec.md §9's resolution of the teacher's unfinished ping/pong
	// handling: the control-frame default already auto-replies Pong to Ping
	// with the same payload, and we explicitly ignore Pong frames.
	conn.SetPongHandler(func(string) error { return nil })

	client := &websocketConn{conn: conn}
	s.runPumpAndRecord(client, target, sessionID)
}

func (s *Server) upgradeTCP(w http.ResponseWriter, req *http.Request, target net.Conn, sessionID string) {
	hijacker, ok := w.(http.Hijacker)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Upgrade", "TCP")
	w.Header().Set("Connection", "Upgrade")
	w.WriteHeader(http.StatusSwitchingProtocols)

	conn, _, err := hijacker.Hijack()
	if err != nil {
		if s.Log != nil {
			s.Log.Error("tcp hijack failed", zap.Error(err))
		}
		return
	}
	defer conn.Close()

	s.runPumpAndRecord(conn, target, sessionID)
}

func (s *Server) runPumpAndRecord(client, target net.Conn, sessionID string) {
	clientToTarget, targetToClient := Pump(client, target)

	status := StatusComplete
	if clientToTarget.Err != nil || targetToClient.Err != nil {
		status = StatusFailed
	}

	s.Table.Insert(&SessionRecord{
		SessionID:     sessionID,
		RequestBytes:  clientToTarget.BytesMoved,
		ResponseBytes: targetToClient.BytesMoved,
		Timestamp:     time.Now(),
		Status:        status,
	})
}

type signRequest struct {
	ServerAESKey string `json:"server_aes_key"`
	ServerAESIV  string `json:"server_aes_iv"`
}

type signResponse struct {
	Signature string `json:"signature"`
}

// HandleSign implements POST /sign?session_id=, adapted from the teacher's
// aes_tag.TagSigningManager.Sign endpoint and from original_source's
// notary/src/origo.rs sign handler: the request body carries the
// base64-encoded server AES key and IV negotiated for the session, and the
// response carries a hex-encoded DER signature (spec.md §6) over a
// canonical digest combining the session's archived byte counts with those
// decoded secrets.
func (s *Server) HandleSign(w http.ResponseWriter, req *http.Request) {
	withCORS(w)
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sessionID := req.URL.Query().Get("session_id")
	rec, ok := s.Table.Get(sessionID)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var body signRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	serverAESKey, err := base64.StdEncoding.DecodeString(body.ServerAESKey)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	serverAESIV, err := base64.StdEncoding.DecodeString(body.ServerAESIV)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	digestInput := []byte(fmt.Sprintf("%s:%d:%d", rec.SessionID, rec.RequestBytes, rec.ResponseBytes))
	sig, err := s.Signer.Sign(digestInput, serverAESKey, serverAESIV)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, signResponse{Signature: hex.EncodeToString(sig)})
}

// HandleHealth implements GET /health.
func (s *Server) HandleHealth(w http.ResponseWriter, req *http.Request) {
	w.Write([]byte("healthy\n"))
}

// HandleOptions answers any CORS preflight request with the permissive
// headers the teacher's writeResponse helper always set.
func (s *Server) HandleOptions(w http.ResponseWriter, req *http.Request) {
	withCORS(w)
	w.WriteHeader(http.StatusNoContent)
}

func withCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// websocketConn adapts a *websocket.Conn to net.Conn's Read/Write surface
// so Pump can treat it identically to a TCP connection, per spec.md §4.2's
// requirement that both upgrade paths share the same byte pump.
type websocketConn struct {
	conn    *websocket.Conn
	reader  []byte
}

func (w *websocketConn) Read(p []byte) (int, error) {
	for len(w.reader) == 0 {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		w.reader = data
	}
	n := copy(p, w.reader)
	w.reader = w.reader[n:]
	return n, nil
}

func (w *websocketConn) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *websocketConn) Close() error                       { return w.conn.Close() }
func (w *websocketConn) LocalAddr() net.Addr                 { return w.conn.LocalAddr() }
func (w *websocketConn) RemoteAddr() net.Addr                { return w.conn.RemoteAddr() }
func (w *websocketConn) SetDeadline(t time.Time) error       { return w.conn.UnderlyingConn().SetDeadline(t) }
func (w *websocketConn) SetReadDeadline(t time.Time) error   { return w.conn.UnderlyingConn().SetReadDeadline(t) }
func (w *websocketConn) SetWriteDeadline(t time.Time) error  { return w.conn.UnderlyingConn().SetWriteDeadline(t) }
