package remote

import (
	"encoding/json"
	"fmt"
	"net"

	"github.com/nm-morais/go-boxtimer/pkg/errors"
	"github.com/nm-morais/go-boxtimer/pkg/event"
	"github.com/smallnest/goframe"
)

const clientCaller = "EventStreamClient"

// Client reads the event stream published by a Server.
type Client struct {
	frameConn goframe.FrameConn
}

func Dial(addr string) (*Client, errors.Error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, errors.TemporaryError(errors.ListenFailure, fmt.Sprintf("dial %s: %v", addr, err), clientCaller)
	}
	return &Client{
		frameConn: goframe.NewLengthFieldBasedFrameConn(serverEncoderConfig, serverDecoderConfig, conn),
	}, nil
}

// ReadEvent blocks until the next event frame arrives.
func (c *Client) ReadEvent() (event.Event, errors.Error) {
	frame, err := c.frameConn.ReadFrame()
	if err != nil {
		return event.Event{}, errors.TemporaryError(errors.ListenFailure, fmt.Sprintf("read frame: %v", err), clientCaller)
	}
	var ev event.Event
	if err := json.Unmarshal(frame, &ev); err != nil {
		return event.Event{}, errors.NonFatalError(errors.ListenFailure, fmt.Sprintf("decode frame: %v", err), clientCaller)
	}
	return ev, nil
}

func (c *Client) Close() {
	c.frameConn.Close()
}
