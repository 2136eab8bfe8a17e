/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package livereload tells connected browsers to reload changed files over
// the LiveReload websocket protocol.
package livereload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Protocol is the LiveReload protocol version spoken by the server.
const Protocol = "http://livereload.com/protocols/official-7"

// ClientPath is where the server serves its browser client.
const ClientPath = "/livereload.js"

// client reconnects to /livereload on the page's host and port, and reloads
// the page, or only its stylesheets for liveCSS commands.
const clientScript = `(function () {
  var src = document.currentScript && document.currentScript.src;
  var url = new URL("/livereload", src || location.href);
  url.protocol = url.protocol === "https:" ? "wss:" : "ws:";
  function connect() {
    var ws = new WebSocket(url.href);
    ws.onopen = function () {
      ws.send(JSON.stringify({ command: "hello", protocols: ["` + Protocol + `"] }));
    };
    ws.onmessage = function (e) {
      var msg = JSON.parse(e.data);
      if (msg.command !== "reload") return;
      if (msg.liveCSS) {
        var links = document.querySelectorAll('link[rel="stylesheet"]');
        for (var i = 0; i < links.length; i++) {
          var u = new URL(links[i].href);
          u.searchParams.set("livereload", Date.now());
          links[i].href = u.href;
        }
        return;
      }
      location.reload();
    };
    ws.onclose = function () { setTimeout(connect, 1000); };
  }
  connect();
})();
`

// Snippet returns the script tag that loads the client from a server
// listening on addr. Only the port of addr is used; the browser connects to
// the host it loaded the page from.
func Snippet(addr string) (string, error) {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("livereload address %q: %w", addr, err)
	}
	return fmt.Sprintf(`<script>document.write('<script src="//' + location.hostname + ':%s%s"></' + 'script>')</script>`, port, ClientPath), nil
}

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
	sendBuffer  = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// Message is a LiveReload protocol command.
type Message struct {
	Command    string   `json:"command"`
	Protocols  []string `json:"protocols,omitempty"`
	ServerName string   `json:"serverName,omitempty"`
	Path       string   `json:"path,omitempty"`
	LiveCSS    bool     `json:"liveCSS,omitempty"`
	URL        string   `json:"url,omitempty"`
}

type client struct {
	send chan Message
}

// Server is a LiveReload hub. It implements watch.Notifier.
type Server struct {
	log     logrus.FieldLogger
	mux     *http.ServeMux
	mu      sync.Mutex
	clients map[*client]struct{}
}

// New creates a Server. When metrics is non-nil it is served at /metrics.
func New(log logrus.FieldLogger, metrics http.Handler) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		log:     log,
		mux:     http.NewServeMux(),
		clients: make(map[*client]struct{}),
	}
	s.mux.HandleFunc("/livereload", s.HandleWS)
	s.mux.HandleFunc(ClientPath, serveClient)
	if metrics != nil {
		s.mux.Handle("/metrics", metrics)
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func serveClient(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = io.WriteString(w, clientScript)
}

// Clients returns the number of connected browsers.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Notify sends one reload command per path to every connected browser.
// Stylesheets are marked for live CSS replacement.
func (s *Server) Notify(paths []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range paths {
		msg := Message{
			Command: "reload",
			Path:    "/" + strings.TrimPrefix(p, "/"),
			LiveCSS: path.Ext(p) == ".css",
		}
		for c := range s.clients {
			select {
			case c.send <- msg:
			default:
				s.log.Debug("livereload client is not keeping up, dropping message")
			}
		}
	}
	if len(s.clients) > 0 {
		s.log.WithField("files", len(paths)).Info("reloading browsers")
	}
}

// HandleWS upgrades the request and serves one browser until it disconnects.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		s.log.WithError(err).Debug("livereload set read deadline failed")
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	c := &client{send: make(chan Message, sendBuffer)}
	c.send <- Message{Command: "hello", Protocols: []string{Protocol}, ServerName: "kiln"}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-c.send:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Browsers send hello and info commands; none need an answer beyond the
	// greeting already queued.
	for {
		var in Message
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}
		s.log.WithField("command", in.Command).Debug("livereload client message")
	}
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.WithField("addr", addr).Info("livereload server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
