// protocols/websocket/transport.go
package websocket

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lisuiheng/audiodev/pkg/interfaces"
)

var _ interfaces.TransportProtocol = (*WSProtocol)(nil)

const defaultWriteTimeout = 5 * time.Second

// Config 定义 websocket 监听流的连接参数
type Config struct {
	URL             string        `mapstructure:"url"`
	AccessToken     string        `mapstructure:"access_token"`
	DeviceID        string        `mapstructure:"device_id"`
	ClientID        string        `mapstructure:"client_id"`
	ProtocolVersion int           `mapstructure:"protocol_version"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
}

type WSProtocol struct {
	config    Config
	conn      *websocket.Conn
	msgChan   chan interfaces.Message
	closeChan chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
}

func NewWebSocketProtocol(config Config) *WSProtocol {
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaultWriteTimeout
	}
	if config.ProtocolVersion == 0 {
		config.ProtocolVersion = 1
	}
	return &WSProtocol{
		config:    config,
		msgChan:   make(chan interfaces.Message, 100),
		closeChan: make(chan struct{}),
	}
}

func (p *WSProtocol) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	headers := http.Header{}
	if p.config.AccessToken != "" {
		headers.Set("Authorization", "Bearer "+p.config.AccessToken)
	}
	headers.Set("Protocol-Version", strconv.Itoa(p.config.ProtocolVersion))
	if p.config.DeviceID != "" {
		headers.Set("Device-Id", p.config.DeviceID)
	}
	if p.config.ClientID != "" {
		headers.Set("Client-Id", p.config.ClientID)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, p.config.URL, headers)
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrConnectionFailed, err)
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn = conn

	go p.readPump(conn)
	return nil
}

// readPump drains server messages; it exits when the connection fails.
func (p *WSProtocol) readPump(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			p.mu.Lock()
			if p.conn == conn {
				p.conn = nil
			}
			p.mu.Unlock()
			return
		}
		select {
		case p.msgChan <- interfaces.Message{Payload: data, Type: convertMsgType(msgType)}:
		case <-p.closeChan:
			return
		default:
			// 没有读者时丢弃
		}
	}
}

func convertMsgType(wsType int) interfaces.MessageType {
	switch wsType {
	case websocket.TextMessage:
		return interfaces.MsgText
	case websocket.BinaryMessage:
		return interfaces.MsgBinary
	default:
		return interfaces.MsgControl
	}
}

func (p *WSProtocol) Send(data []byte, msgType interfaces.MessageType) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return interfaces.ErrNotConnected
	}

	wsType := websocket.TextMessage
	if msgType == interfaces.MsgBinary {
		wsType = websocket.BinaryMessage
	}
	_ = p.conn.SetWriteDeadline(time.Now().Add(p.config.WriteTimeout))
	if err := p.conn.WriteMessage(wsType, data); err != nil {
		_ = p.conn.Close()
		p.conn = nil
		return fmt.Errorf("%w: %v", interfaces.ErrConnectionFailed, err)
	}
	return nil
}

// Connected reports whether the last Connect is still usable.
func (p *WSProtocol) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn != nil
}

func (p *WSProtocol) Receive() <-chan interfaces.Message {
	return p.msgChan
}

func (p *WSProtocol) ProtocolType() string { return "websocket" }

func (p *WSProtocol) Close() error {
	p.closeOnce.Do(func() { close(p.closeChan) })

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	_ = p.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := p.conn.Close()
	p.conn = nil
	return err
}
