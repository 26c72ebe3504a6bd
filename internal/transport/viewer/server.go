package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"voxelplay.ai/internal/persistence/voxelfile"
	"voxelplay.ai/internal/sim/playground"
	"voxelplay.ai/internal/viewerproto"
)

// Playground is the loop surface the transport talks to.
type Playground interface {
	Inputs() chan<- playground.InputEvent
	Runs() chan<- playground.RunRequest
	Exports() chan<- playground.ExportRequest
	Imports() chan<- playground.ImportRequest
	ViewerJoin() chan<- playground.ViewerJoinRequest
	ViewerLeave() chan<- string
}

const maxImportBytes = 64 << 20

type Server struct {
	pg  Playground
	log *log.Logger

	// AllowRemote lifts the loopback-only restriction.
	AllowRemote bool
	// RequestTimeout bounds how long a request waits on the loop, which
	// stalls while a script runs.
	RequestTimeout time.Duration

	upgrader websocket.Upgrader
}

func NewServer(pg Playground, logger *log.Logger) *Server {
	s := &Server{
		pg:             pg,
		log:            logger,
		RequestTimeout: 30 * time.Second,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handler mounts the websocket endpoint and the export/import routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", s.WSHandler())
	mux.HandleFunc("/v1/export", s.ExportHandler())
	mux.HandleFunc("/v1/import", s.ImportHandler())
	return mux
}

func (s *Server) allowed(r *http.Request) bool {
	return s.AllowRemote || isLoopbackRemote(r.RemoteAddr)
}

// checkOrigin admits requests without an Origin (non-browser clients) and
// browser pages served from loopback or from this server's own host. Any
// other page in a local browser could otherwise drive scripts and imports.
func (s *Server) checkOrigin(r *http.Request) bool {
	if s.AllowRemote {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return true
	}
	return strings.EqualFold(u.Host, r.Host)
}

func (s *Server) ExportHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		res, err := s.export(r.Context())
		if err != nil {
			writeError(rw, http.StatusServiceUnavailable, viewerproto.ErrBusy, err.Error())
			return
		}
		if res.Err != nil {
			writeError(rw, http.StatusInternalServerError, viewerproto.ErrInternal, res.Err.Error())
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		rw.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", voxelfile.DefaultFileName))
		_, _ = rw.Write(res.Data)
	}
}

func (s *Server) ImportHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(r) || !s.checkOrigin(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mt != "application/json" {
			writeError(rw, http.StatusUnsupportedMediaType, viewerproto.ErrBadRequest, "import requires Content-Type: application/json")
			return
		}
		data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes+1))
		if err != nil {
			writeError(rw, http.StatusBadRequest, viewerproto.ErrBadRequest, err.Error())
			return
		}
		if len(data) > maxImportBytes {
			writeError(rw, http.StatusRequestEntityTooLarge, viewerproto.ErrBadRequest, "import too large")
			return
		}
		res, err := s.importData(r.Context(), data)
		if err != nil {
			writeError(rw, http.StatusServiceUnavailable, viewerproto.ErrBusy, err.Error())
			return
		}
		if res.Err != nil {
			code, status := importErrorCode(res.Err)
			writeError(rw, status, code, res.Err.Error())
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]int{"voxels": res.Voxels})
	}
}

func writeError(rw http.ResponseWriter, status int, code, msg string) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(viewerproto.ErrorMsg{Type: viewerproto.TypeError, Code: code, Message: msg})
}

func importErrorCode(err error) (string, int) {
	var ferr *voxelfile.ImportFormatError
	if errors.As(err, &ferr) {
		return viewerproto.ErrImportFormat, http.StatusBadRequest
	}
	return viewerproto.ErrInternal, http.StatusInternalServerError
}

var errLoopBusy = errors.New("playground is busy")

func (s *Server) export(ctx context.Context) (playground.ExportResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.RequestTimeout)
	defer cancel()
	resp := make(chan playground.ExportResult, 1)
	select {
	case s.pg.Exports() <- playground.ExportRequest{Resp: resp}:
	case <-ctx.Done():
		return playground.ExportResult{}, errLoopBusy
	}
	select {
	case res := <-resp:
		return res, nil
	case <-ctx.Done():
		return playground.ExportResult{}, errLoopBusy
	}
}

func (s *Server) importData(ctx context.Context, data []byte) (playground.ImportResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.RequestTimeout)
	defer cancel()
	resp := make(chan playground.ImportResult, 1)
	select {
	case s.pg.Imports() <- playground.ImportRequest{Data: data, Resp: resp}:
	case <-ctx.Done():
		return playground.ImportResult{}, errLoopBusy
	}
	select {
	case res := <-resp:
		return res, nil
	case <-ctx.Done():
		return playground.ImportResult{}, errLoopBusy
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send HELLO first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var hello viewerproto.HelloMsg
		if err := json.Unmarshal(msg, &hello); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad hello"), time.Now().Add(time.Second))
			return
		}
		if hello.Type != viewerproto.TypeHello || hello.ProtocolVersion != viewerproto.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
			return
		}

		out := make(chan []byte, 4096)
		direct := make(chan []byte, 64)
		idResp := make(chan string, 1)
		select {
		case s.pg.ViewerJoin() <- playground.ViewerJoinRequest{Out: out, Resp: idResp}:
		default:
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"), time.Now().Add(time.Second))
			return
		}
		var sid string
		select {
		case sid = <-idResp:
		case <-time.After(s.RequestTimeout):
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"), time.Now().Add(time.Second))
			return
		}
		defer func() {
			select {
			case s.pg.ViewerLeave() <- sid:
			default:
				// Playground loop is stopping; nothing else to do.
			}
		}()
		if s.log != nil {
			s.log.Printf("viewer %s connected (%s)", sid, hello.ClientName)
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				var b []byte
				var ok bool
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b, ok = <-out:
				case b, ok = <-direct:
				}
				if !ok {
					// The loop dropped this session; unblock the reader.
					_ = conn.Close()
					writeErr <- nil
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					writeErr <- err
					return
				}
			}
		}()

		c := &session{s: s, ctx: ctx, direct: direct}
		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			c.handle(msg)
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
		if s.log != nil {
			s.log.Printf("viewer %s disconnected", sid)
		}
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
