// Package server bridges the browser editor widget to an editor session over
// a websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/xhad/inkwell/internal/models"
	"github.com/xhad/inkwell/internal/types"
	"github.com/xhad/inkwell/pkg/editor"
	"github.com/xhad/inkwell/pkg/logging"
	"github.com/xhad/inkwell/pkg/persister"
	"github.com/xhad/inkwell/pkg/processor"
)

// Inbound message types
const (
	TypeInit        = "init"
	TypeUpdate      = "update"
	TypeInsertImage = "insert_image"
	TypeSave        = "save"
)

// Outbound message types
const (
	TypeReady        = "ready"
	TypeChange       = "change"
	TypeNotification = "notification"
	TypeProgress     = "progress"
	TypeSaved        = "saved"
	TypeError        = "error"
)

type Message struct {
	Type    string          `json:"type"`
	Content string          `json:"content,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type Reply struct {
	Type    string      `json:"type"`
	Content string      `json:"content,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type ImagePayload struct {
	Mime string `json:"mime"`
	Data []byte `json:"data"` // base64 in JSON
}

type SaveSummary struct {
	OK          bool     `json:"ok"`
	EntryID     string   `json:"entryId,omitempty"`
	Images      int      `json:"images"`
	ImageErrors []string `json:"imageErrors,omitempty"`
	Tags        int      `json:"tags"`
	TagError    string   `json:"tagError,omitempty"`
	Error       string   `json:"error,omitempty"`
}

type Config struct {
	Addr         string
	TagDelimiter string
	// AllowedOrigins restricts the websocket handshake; empty allows any origin.
	AllowedOrigins []string
}

type Deps struct {
	Uploader types.Uploader
	Store    types.RecordStore
	Logger   logrus.FieldLogger
}

type WSServer struct {
	config    Config
	deps      Deps
	processor processor.Processor
	upgrader  websocket.Upgrader
	logger    logrus.FieldLogger
}

func NewWSServer(config Config, deps Deps) (*WSServer, error) {
	if deps.Store == nil {
		return nil, errors.New("record store is required")
	}
	if config.Addr == "" {
		config.Addr = ":8080"
	}

	s := &WSServer{
		config:    config,
		deps:      deps,
		processor: processor.NewWithConfig(processor.ProcessorConfig{TagDelimiter: config.TagDelimiter}),
		logger:    logging.OrDefault(deps.Logger),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s, nil
}

func (s *WSServer) checkOrigin(r *http.Request) bool {
	if len(s.config.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range s.config.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

func (s *WSServer) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

func (s *WSServer) Run() error {
	s.logger.WithField("addr", s.config.Addr).Info("starting websocket server")
	return http.ListenAndServe(s.config.Addr, s.Routes())
}

// connection is one editor widget. Its messages are handled in arrival order
// on the read loop, which is also the only writer to conn.
type connection struct {
	server  *WSServer
	conn    *websocket.Conn
	session *editor.Session
	logger  logrus.FieldLogger
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	c := &connection{
		server: s,
		conn:   conn,
		logger: s.logger.WithField("conn_id", uuid.New().String()),
	}
	c.logger.Debug("editor connected")

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.WithError(err).Warn("error reading message")
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			c.send(Reply{Type: TypeError, Content: fmt.Sprintf("invalid message: %v", err)})
			continue
		}

		c.handleMessage(r.Context(), msg)
	}
}

func (c *connection) handleMessage(ctx context.Context, msg Message) {
	if msg.Type != TypeInit && c.session == nil {
		c.send(Reply{Type: TypeError, Content: "session not initialised: send init first"})
		return
	}

	switch msg.Type {
	case TypeInit:
		var props models.EditorProps
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &props); err != nil {
				c.send(Reply{Type: TypeError, Content: fmt.Sprintf("invalid props: %v", err)})
				return
			}
		}
		c.session = c.newSession(props)
		c.send(Reply{Type: TypeReady, Content: c.session.Content()})

	case TypeUpdate:
		if _, err := c.session.Update(ctx, msg.Content); err != nil {
			c.send(Reply{Type: TypeError, Content: err.Error()})
		}

	case TypeInsertImage:
		var img ImagePayload
		if err := json.Unmarshal(msg.Data, &img); err != nil {
			c.send(Reply{Type: TypeError, Content: fmt.Sprintf("invalid image: %v", err)})
			return
		}
		if _, err := c.session.InsertImage(ctx, img.Mime, img.Data); err != nil {
			c.send(Reply{Type: TypeError, Content: err.Error()})
		}

	case TypeSave:
		result, err := c.session.Save(ctx)
		c.send(Reply{Type: TypeSaved, Data: summarize(result, err)})

	default:
		c.send(Reply{Type: TypeError, Content: fmt.Sprintf("unknown message type: %s", msg.Type)})
	}
}

func (c *connection) newSession(props models.EditorProps) *editor.Session {
	s := c.server
	p := persister.NewWithConfig(s.deps.Store, persister.PersisterConfig{
		TagDelimiter: s.processor.TagDelimiter(),
		Logger:       c.logger,
		Notifier:     c,
		OnImage: func(done, total int) {
			c.send(Reply{Type: TypeProgress, Content: fmt.Sprintf("Saved image %d of %d", done, total)})
		},
	})

	return editor.NewSession(props, editor.Deps{
		Uploader:  s.deps.Uploader,
		Persister: p,
		Processor: s.processor,
		Logger:    c.logger,
	}, func(content string) {
		c.send(Reply{Type: TypeChange, Content: content})
	})
}

// Notify forwards a pipeline notification to the widget.
func (c *connection) Notify(n models.Notification) {
	c.send(Reply{Type: TypeNotification, Content: n.Message, Data: n})
}

func (c *connection) send(reply Reply) {
	if err := c.conn.WriteJSON(reply); err != nil {
		c.logger.WithError(err).Warn("error sending message")
	}
}

func summarize(result *persister.SaveResult, err error) SaveSummary {
	summary := SaveSummary{OK: err == nil}
	if err != nil {
		summary.Error = err.Error()
	}
	if result == nil {
		return summary
	}

	summary.EntryID = result.EntryID
	summary.Images = len(result.ImageIDs)
	summary.Tags = len(result.TagIDs)
	for _, imgErr := range result.ImageErrors {
		summary.ImageErrors = append(summary.ImageErrors, imgErr.Error())
	}
	if result.TagErr != nil {
		summary.TagError = result.TagErr.Error()
	}
	return summary
}
