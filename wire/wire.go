// Copyright (C) 2026 The wifid Authors. All Rights Reserved.

// Package wire implements the binary frame format exchanged between wifid
// and its host process.
//
// # Frames
//
// Every frame begins with an 8-byte header:
//
//	[category:2] [type:2] [length:4]
//
// where length is the number of payload bytes following the header. The
// payload layout depends on the category:
//
//	Request:      [sessionID:2] [data...]
//	Response:     [sessionID:2] [status:2] [data...]
//	Notification: [data...]
//
// All integers are encoded in the native byte order of the host. Frames are
// exchanged only between processes on the same machine, and callers on other
// platforms must not assume any particular byte order.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// order is the byte order of all multi-byte fields.
var order = binary.NativeEndian

const (
	// HeaderSize is the size in bytes of the fixed frame header.
	HeaderSize = 8

	// MaxFrameSize is the largest frame, header included, that the daemon
	// reads in a single operation.
	MaxFrameSize = 4096

	requestPrefix  = 2 // sessionID
	responsePrefix = 4 // sessionID, status

	// MajorVersion and MinorVersion are the protocol version reported in
	// reply to a Version request.
	MajorVersion = 1
	MinorVersion = 0
)

// ErrMalformedFrame is reported for a buffer that is too short for the
// structure it claims to contain.
var ErrMalformedFrame = errors.New("malformed frame")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedFrame, fmt.Sprintf(format, args...))
}

// Category is the frame category carried in the header.
// Only requests are legal inbound; responses and notifications are sent by
// the daemon only.
type Category uint16

const (
	CategoryRequest      Category = 0
	CategoryResponse     Category = 1
	CategoryNotification Category = 2
)

func (c Category) String() string {
	switch c {
	case CategoryRequest:
		return "REQUEST"
	case CategoryResponse:
		return "RESPONSE"
	case CategoryNotification:
		return "NOTIFICATION"
	default:
		return fmt.Sprintf("CATEGORY:%d", uint16(c))
	}
}

// prefixSize reports the size of the fixed payload prefix for c.
func (c Category) prefixSize() int {
	switch c {
	case CategoryRequest:
		return requestPrefix
	case CategoryResponse:
		return responsePrefix
	default:
		return 0
	}
}

// MessageType identifies the operation requested by a request frame, and is
// echoed in the matching response. The enumeration is open: values not named
// here are valid on the wire and are rejected by the dispatcher.
type MessageType uint16

const (
	TypeVersion MessageType = iota
	TypeLoadDriver
	TypeUnloadDriver
	TypeStartSupplicant
	TypeStopSupplicant
	TypeConnectToSupplicant
	TypeCloseSupplicantConnection
	TypeCommand
	TypeConnectToHostapd
	TypeCloseHostapdConnection
	TypeHostapdGetStations
	TypeHostapdCommand

	numMessageTypes = iota
)

var typeNames = [numMessageTypes]string{
	"Version",
	"LoadDriver",
	"UnloadDriver",
	"StartSupplicant",
	"StopSupplicant",
	"ConnectToSupplicant",
	"CloseSupplicantConnection",
	"Command",
	"ConnectToHostapd",
	"CloseHostapdConnection",
	"HostapdGetStations",
	"HostapdCommand",
}

func (t MessageType) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("TYPE:%d", uint16(t))
}

// MessageTypes returns all the named message types in order.
func MessageTypes() []MessageType {
	out := make([]MessageType, numMessageTypes)
	for i := range out {
		out[i] = MessageType(i)
	}
	return out
}

// ParseMessageType returns the message type with the given name.
// Names are matched without regard to case.
func ParseMessageType(name string) (MessageType, error) {
	for i, s := range typeNames {
		if strings.EqualFold(s, name) {
			return MessageType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown message type %q", name)
}

// NotificationType identifies the kind of an unsolicited notification.
type NotificationType uint16

const (
	NotifyEvent        NotificationType = 0 // supplicant control event
	NotifyHostapdEvent NotificationType = 1 // hostapd control event
	NotifyInterface    NotificationType = 2 // network interface added or removed
)

func (n NotificationType) String() string {
	switch n {
	case NotifyEvent:
		return "EVENT"
	case NotifyHostapdEvent:
		return "HOSTAPD_EVENT"
	case NotifyInterface:
		return "INTERFACE"
	default:
		return fmt.Sprintf("NOTIFY:%d", uint16(n))
	}
}

// Status is the completion status carried by a response.
type Status uint16

const (
	StatusOK    Status = 0
	StatusError Status = 1
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	default:
		return fmt.Sprintf("STATUS:%d", uint16(s))
	}
}

// StatusOf returns StatusOK if err == nil, otherwise StatusError.
func StatusOf(err error) Status {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// Header is the decoded form of a frame header.
type Header struct {
	Category Category
	Type     uint16
	Length   uint32 // payload bytes, excluding the header
}

// MessageType returns the header type as a request or response type.
func (h Header) MessageType() MessageType { return MessageType(h.Type) }

// NotificationType returns the header type as a notification type.
func (h Header) NotificationType() NotificationType { return NotificationType(h.Type) }

// Append appends the binary encoding of h to buf.
func (h Header) Append(buf []byte) []byte {
	buf = order.AppendUint16(buf, uint16(h.Category))
	buf = order.AppendUint16(buf, h.Type)
	return order.AppendUint32(buf, h.Length)
}

func (h Header) String() string {
	return fmt.Sprintf("Header(%v, %d, len=%d)", h.Category, h.Type, h.Length)
}

// DecodeHeader decodes the frame header at the front of buf.
// It reports ErrMalformedFrame if buf is shorter than a header.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, malformed("short header (%d < %d bytes)", len(buf), HeaderSize)
	}
	return Header{
		Category: Category(order.Uint16(buf[0:])),
		Type:     order.Uint16(buf[2:]),
		Length:   order.Uint32(buf[4:]),
	}, nil
}

// DecodeRequestSessionID decodes the session ID of the request frame at the
// front of buf. It reports ErrMalformedFrame if buf is too short to contain
// one. It does not check the category.
func DecodeRequestSessionID(buf []byte) (uint16, error) {
	if len(buf) < HeaderSize+requestPrefix {
		return 0, malformed("short request (%d < %d bytes)", len(buf), HeaderSize+requestPrefix)
	}
	return order.Uint16(buf[HeaderSize:]), nil
}

// EncodeEmpty encodes a frame of the given category and type whose fixed
// payload prefix is zero and which carries no data.
func EncodeEmpty(cat Category, typ uint16) []byte {
	n := cat.prefixSize()
	buf := make([]byte, 0, HeaderSize+n)
	buf = Header{Category: cat, Type: typ, Length: uint32(n)}.Append(buf)
	return append(buf, make([]byte, n)...)
}

// EncodeWithBody encodes a frame of the given category and type, carrying
// body after the fixed payload prefix. The sessionID is included for request
// and response frames, the status for response frames only; arguments that do
// not apply to cat are ignored.
func EncodeWithBody(cat Category, typ uint16, sessionID uint16, status Status, body []byte) []byte {
	n := cat.prefixSize()
	var b Builder
	b.Grow(HeaderSize + n + len(body))
	b.buf = Header{Category: cat, Type: typ, Length: uint32(n + len(body))}.Append(b.buf)
	switch cat {
	case CategoryRequest:
		b.Uint16(sessionID)
	case CategoryResponse:
		b.Uint16(sessionID)
		b.Uint16(uint16(status))
	}
	b.Put(body...)
	return b.Bytes()
}

// payload checks that buf holds a complete frame of category want and
// returns its header and the payload following the fixed prefix.
func payload(buf []byte, want Category) (Header, []byte, error) {
	h, err := DecodeHeader(buf)
	if err != nil {
		return h, nil, err
	}
	if h.Category != want {
		return h, nil, fmt.Errorf("got %v frame, want %v", h.Category, want)
	}
	avail := len(buf) - HeaderSize
	if int64(h.Length) > int64(avail) {
		return h, nil, malformed("declared length %d exceeds %d bytes available", h.Length, avail)
	}
	pfx := want.prefixSize()
	if int(h.Length) < pfx {
		return h, nil, malformed("declared length %d shorter than %v prefix (%d)", h.Length, want, pfx)
	}
	return h, buf[HeaderSize : HeaderSize+int(h.Length)], nil
}

// Request is the decoded form of a request frame.
type Request struct {
	Type      MessageType
	SessionID uint16
	Data      []byte
}

// Encode encodes r as a complete request frame.
func (r Request) Encode() []byte {
	return EncodeWithBody(CategoryRequest, uint16(r.Type), r.SessionID, 0, r.Data)
}

func (r Request) String() string {
	return fmt.Sprintf("Request(%v, sid=%d, %d bytes)", r.Type, r.SessionID, len(r.Data))
}

// ParseRequest decodes a complete request frame from buf. The Data field of
// the result aliases buf. Bytes following the declared frame are ignored.
func ParseRequest(buf []byte) (*Request, error) {
	h, pay, err := payload(buf, CategoryRequest)
	if err != nil {
		return nil, err
	}
	s := NewScanner(pay)
	sid, _ := s.Uint16() // length was checked by payload
	return &Request{Type: h.MessageType(), SessionID: sid, Data: nilIfEmpty(s.Rest())}, nil
}

// Response is the decoded form of a response frame.
type Response struct {
	Type      MessageType
	SessionID uint16
	Status    Status
	Data      []byte
}

// Encode encodes r as a complete response frame.
func (r Response) Encode() []byte {
	return EncodeWithBody(CategoryResponse, uint16(r.Type), r.SessionID, r.Status, r.Data)
}

func (r Response) String() string {
	return fmt.Sprintf("Response(%v, sid=%d, %v, %d bytes)", r.Type, r.SessionID, r.Status, len(r.Data))
}

// ParseResponse decodes a complete response frame from buf. The Data field of
// the result aliases buf.
func ParseResponse(buf []byte) (*Response, error) {
	h, pay, err := payload(buf, CategoryResponse)
	if err != nil {
		return nil, err
	}
	s := NewScanner(pay)
	sid, _ := s.Uint16()
	st, _ := s.Uint16()
	return &Response{
		Type:      h.MessageType(),
		SessionID: sid,
		Status:    Status(st),
		Data:      nilIfEmpty(s.Rest()),
	}, nil
}

// Notification is the decoded form of a notification frame.
type Notification struct {
	Type NotificationType
	Data []byte
}

// Encode encodes n as a complete notification frame.
func (n Notification) Encode() []byte {
	return EncodeWithBody(CategoryNotification, uint16(n.Type), 0, 0, n.Data)
}

func (n Notification) String() string {
	return fmt.Sprintf("Notification(%v, %q)", n.Type, n.Data)
}

// ParseNotification decodes a complete notification frame from buf. The Data
// field of the result aliases buf.
func ParseNotification(buf []byte) (*Notification, error) {
	h, pay, err := payload(buf, CategoryNotification)
	if err != nil {
		return nil, err
	}
	return &Notification{Type: h.NotificationType(), Data: nilIfEmpty(pay)}, nil
}

// Version is the data payload of a Version response.
type Version struct {
	Major, Minor uint16
}

// CurrentVersion is the protocol version spoken by this package.
var CurrentVersion = Version{Major: MajorVersion, Minor: MinorVersion}

// Encode encodes v in binary format.
func (v Version) Encode() []byte {
	var b Builder
	b.Uint16(v.Major)
	b.Uint16(v.Minor)
	return b.Bytes()
}

// UnmarshalBinary decodes data into v. It implements encoding.BinaryUnmarshaler.
func (v *Version) UnmarshalBinary(data []byte) error {
	s := NewScanner(data)
	major, err := s.Uint16()
	if err != nil {
		return fmt.Errorf("version major: %w", err)
	}
	minor, err := s.Uint16()
	if err != nil {
		return fmt.Errorf("version minor: %w", err)
	}
	v.Major, v.Minor = major, minor
	return nil
}

func (v Version) String() string { return fmt.Sprintf("%d.%d", v.Major, v.Minor) }

func nilIfEmpty(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
