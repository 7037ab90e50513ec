package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rzbill/pulse/internal/stream"
)

// Message type tags carried in the envelope's "type" field.
const (
	// inbound
	KindSubscribe    = "subscribe"
	KindUnsubscribe  = "unsubscribe"
	KindRequestData  = "request_data"
	KindUpdateConfig = "update_config"
	KindPing         = "ping"

	// outbound
	KindConnectionEstablished   = "connection_established"
	KindSubscriptionConfirmed   = "subscription_confirmed"
	KindUnsubscriptionConfirmed = "unsubscription_confirmed"
	KindDataUpdate              = "data_update"
	KindDataPoint               = "data_point"
	KindDataResponse            = "data_response"
	KindError                   = "error"
	KindPong                    = "pong"
)

// ErrUnknownType reports an envelope whose "type" tag matches no message.
var ErrUnknownType = errors.New("protocol: unknown message type")

// Inbound is the closed set of client-to-engine messages. Decode returns
// exactly one of *Subscribe, *Unsubscribe, *RequestData, *UpdateConfig,
// or *Ping; dispatch sites switch exhaustively over those.
type Inbound interface{ inbound() }

// Subscribe starts or replaces a subscription to a stream. A nil
// IntervalMs means "use the connection's default"; an explicit value <= 0
// is a configuration error.
type Subscribe struct {
	StreamID   string         `json:"streamId"`
	Filters    map[string]any `json:"filters,omitempty"`
	IntervalMs *int           `json:"intervalMs,omitempty"`
}

// Unsubscribe tears down the subscription to a stream.
type Unsubscribe struct {
	StreamID string `json:"streamId"`
}

// TimeRange bounds a request_data query, both ends inclusive, in unix
// milliseconds. A zero bound is open.
type TimeRange struct {
	From int64 `json:"from,omitempty"`
	To   int64 `json:"to,omitempty"`
}

// RequestData asks for a one-shot read of a stream's buffered window.
type RequestData struct {
	StreamID  string     `json:"streamId"`
	TimeRange *TimeRange `json:"timeRange,omitempty"`
	Limit     int        `json:"limit,omitempty"`
}

// UpdateConfig adjusts per-connection settings. Absent fields keep their
// current values; present-but-invalid values are rejected without mutation.
type UpdateConfig struct {
	IntervalMs *int `json:"intervalMs,omitempty"`
}

// Ping is a client keepalive; the engine answers with Pong.
type Ping struct{}

func (*Subscribe) inbound()    {}
func (*Unsubscribe) inbound()  {}
func (*RequestData) inbound()  {}
func (*UpdateConfig) inbound() {}
func (*Ping) inbound()         {}

type envelope struct {
	Type string `json:"type"`
}

// DecodeInbound parses a wire frame into its concrete inbound message.
func DecodeInbound(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("protocol: decode envelope: %w", err)
	}
	switch env.Type {
	case KindSubscribe:
		var m Subscribe
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("protocol: decode %s: %w", env.Type, err)
		}
		return &m, nil
	case KindUnsubscribe:
		var m Unsubscribe
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("protocol: decode %s: %w", env.Type, err)
		}
		return &m, nil
	case KindRequestData:
		var m RequestData
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("protocol: decode %s: %w", env.Type, err)
		}
		return &m, nil
	case KindUpdateConfig:
		var m UpdateConfig
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("protocol: decode %s: %w", env.Type, err)
		}
		return &m, nil
	case KindPing:
		return &Ping{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

// Outbound is the closed set of engine-to-client messages. Every concrete
// type carries its tag in the Type field, set by its constructor, so a
// single json.Marshal produces the full envelope.
type Outbound interface{ Kind() string }

// SessionConfig is announced to clients in connection_established.
type SessionConfig struct {
	DefaultIntervalMs int   `json:"defaultIntervalMs"`
	HeartbeatMs       int64 `json:"heartbeatMs"`
	MaxPayloadBytes   int64 `json:"maxPayloadBytes"`
}

// ConnectionEstablished greets a freshly registered connection.
type ConnectionEstablished struct {
	Type         string        `json:"type"`
	ConnectionID string        `json:"connectionId"`
	Config       SessionConfig `json:"config"`
}

// SubscriptionConfirmed acknowledges a subscribe, echoing the effective
// interval.
type SubscriptionConfirmed struct {
	Type       string `json:"type"`
	StreamID   string `json:"streamId"`
	IntervalMs int    `json:"intervalMs"`
}

// UnsubscriptionConfirmed acknowledges an unsubscribe.
type UnsubscriptionConfirmed struct {
	Type     string `json:"type"`
	StreamID string `json:"streamId"`
}

// DataUpdate carries a priming or catch-up slice.
type DataUpdate struct {
	Type     string         `json:"type"`
	StreamID string         `json:"streamId"`
	Data     []stream.Point `json:"data"`
}

// DataPoint carries one immediately pushed point.
type DataPoint struct {
	Type     string       `json:"type"`
	StreamID string       `json:"streamId"`
	Point    stream.Point `json:"dataPoint"`
}

// DataResponse answers a request_data. TotalPoints is the stream's full
// buffered count, before the query's range and limit were applied.
type DataResponse struct {
	Type        string         `json:"type"`
	StreamID    string         `json:"streamId"`
	Data        []stream.Point `json:"data"`
	TotalPoints int            `json:"totalPoints"`
}

// ErrorMessage reports a per-message failure; the connection stays open.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Pong answers a client Ping.
type Pong struct {
	Type string `json:"type"`
}

func (m ConnectionEstablished) Kind() string   { return m.Type }
func (m SubscriptionConfirmed) Kind() string   { return m.Type }
func (m UnsubscriptionConfirmed) Kind() string { return m.Type }
func (m DataUpdate) Kind() string              { return m.Type }
func (m DataPoint) Kind() string               { return m.Type }
func (m DataResponse) Kind() string            { return m.Type }
func (m ErrorMessage) Kind() string            { return m.Type }
func (m Pong) Kind() string                    { return m.Type }

// NewConnectionEstablished builds a connection_established message.
func NewConnectionEstablished(connectionID string, cfg SessionConfig) ConnectionEstablished {
	return ConnectionEstablished{Type: KindConnectionEstablished, ConnectionID: connectionID, Config: cfg}
}

// NewSubscriptionConfirmed builds a subscription_confirmed message.
func NewSubscriptionConfirmed(streamID string, intervalMs int) SubscriptionConfirmed {
	return SubscriptionConfirmed{Type: KindSubscriptionConfirmed, StreamID: streamID, IntervalMs: intervalMs}
}

// NewUnsubscriptionConfirmed builds an unsubscription_confirmed message.
func NewUnsubscriptionConfirmed(streamID string) UnsubscriptionConfirmed {
	return UnsubscriptionConfirmed{Type: KindUnsubscriptionConfirmed, StreamID: streamID}
}

// NewDataUpdate builds a data_update carrying a snapshot slice.
func NewDataUpdate(streamID string, data []stream.Point) DataUpdate {
	if data == nil {
		data = []stream.Point{}
	}
	return DataUpdate{Type: KindDataUpdate, StreamID: streamID, Data: data}
}

// NewDataPoint builds a data_point for an immediate push.
func NewDataPoint(streamID string, p stream.Point) DataPoint {
	return DataPoint{Type: KindDataPoint, StreamID: streamID, Point: p}
}

// NewDataResponse builds a data_response.
func NewDataResponse(streamID string, data []stream.Point, totalPoints int) DataResponse {
	if data == nil {
		data = []stream.Point{}
	}
	return DataResponse{Type: KindDataResponse, StreamID: streamID, Data: data, TotalPoints: totalPoints}
}

// NewError builds an error message.
func NewError(message string) ErrorMessage {
	return ErrorMessage{Type: KindError, Message: message}
}

// NewPong builds a pong.
func NewPong() Pong { return Pong{Type: KindPong} }

// EncodeOutbound serializes an outbound message to its wire frame.
func EncodeOutbound(m Outbound) ([]byte, error) {
	if m.Kind() == "" {
		return nil, fmt.Errorf("protocol: outbound message missing type tag (%T built without constructor)", m)
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", m.Kind(), err)
	}
	return b, nil
}
