package sockjs

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"

	"github.com/bnema/screeps-cli/internal/domain"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

type FrameKind int

const (
	FrameOpen FrameKind = iota
	FrameHeartbeat
	FrameMessages
	FrameClose
)

// Frame is one SockJS transport frame. Messages holds the application
// payloads of an "a" or "m" frame.
type Frame struct {
	Kind        FrameKind
	Messages    []string
	CloseCode   int
	CloseReason string
}

var errEmptyFrame = errors.New("empty frame")

func ParseFrame(data string) (Frame, error) {
	if data == "" {
		return Frame{}, parseError(data, errEmptyFrame)
	}

	body := data[1:]
	switch data[0] {
	case 'o':
		return Frame{Kind: FrameOpen}, nil
	case 'h':
		return Frame{Kind: FrameHeartbeat}, nil
	case 'a':
		if !gjson.Valid(body) {
			return Frame{}, parseError(data, errors.New("invalid message array"))
		}
		parsed := gjson.Parse(body)
		if !parsed.IsArray() {
			return Frame{}, parseError(data, errors.New("message frame is not an array"))
		}
		items := parsed.Array()
		messages := make([]string, 0, len(items))
		for _, item := range items {
			if item.Type != gjson.String {
				return Frame{}, parseError(data, errors.New("message is not a string"))
			}
			messages = append(messages, item.String())
		}
		return Frame{Kind: FrameMessages, Messages: messages}, nil
	case 'm':
		parsed := gjson.Parse(body)
		if !gjson.Valid(body) || parsed.Type != gjson.String {
			return Frame{}, parseError(data, errors.New("single message is not a string"))
		}
		return Frame{Kind: FrameMessages, Messages: []string{parsed.String()}}, nil
	case 'c':
		parsed := gjson.Parse(body)
		if !gjson.Valid(body) || !parsed.IsArray() {
			return Frame{}, parseError(data, errors.New("invalid close frame"))
		}
		return Frame{
			Kind:        FrameClose,
			CloseCode:   int(parsed.Get("0").Int()),
			CloseReason: parsed.Get("1").String(),
		}, nil
	default:
		return Frame{}, parseError(data, fmt.Errorf("unknown frame type %q", data[0]))
	}
}

// EncodeCommands wraps client commands in the JSON string array SockJS
// expects from a client.
func EncodeCommands(commands ...string) ([]byte, error) {
	data, err := json.Marshal(commands)
	if err != nil {
		return nil, fmt.Errorf("encode sockjs commands: %w", err)
	}
	return data, nil
}

// SocketURL derives the websocket endpoint from the HTTP API base URL,
// with a fresh server id and session id.
func SocketURL(apiURL *url.URL) (string, error) {
	if apiURL == nil {
		return "", errors.New("api base url is required")
	}

	serverID := fmt.Sprintf("%03d", rand.IntN(1000))
	sessionID := strings.ReplaceAll(uuid.NewString(), "-", "")

	endpoint, err := apiURL.Parse("../socket/" + serverID + "/" + sessionID + "/websocket")
	if err != nil {
		return "", fmt.Errorf("build socket url: %w", err)
	}

	switch endpoint.Scheme {
	case "https":
		endpoint.Scheme = "wss"
	case "http":
		endpoint.Scheme = "ws"
	default:
		return "", fmt.Errorf("build socket url: unsupported scheme %q", endpoint.Scheme)
	}

	return endpoint.String(), nil
}

func parseError(input string, err error) error {
	return &domain.ParseError{Input: input, Err: err}
}
