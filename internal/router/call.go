// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package router

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Address names a control on a component: "/component/path.control".
type Address string

// NewAddress joins a component path and a control name.
func NewAddress(component, control string) Address {
	return Address(component + "." + control)
}

// Component returns the component path part of the address.
func (a Address) Component() string {
	s := string(a)
	if i := strings.LastIndexByte(s, '.'); i > strings.LastIndexByte(s, '/') {
		return s[:i]
	}
	return s
}

// Control returns the control name part of the address, or "".
func (a Address) Control() string {
	s := string(a)
	if i := strings.LastIndexByte(s, '.'); i > strings.LastIndexByte(s, '/') {
		return s[i+1:]
	}
	return ""
}

func (a Address) String() string {
	return string(a)
}

// Kind distinguishes requests from their replies.
type Kind int

const (
	KindRequest Kind = iota
	// KindQuietRequest expects a reply only on failure.
	KindQuietRequest
	KindResponse
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindQuietRequest:
		return "quiet_request"
	case KindResponse:
		return "response"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Call is a message between addressed components. Replies echo the
// MatchID of the request they answer.
type Call struct {
	To      Address
	From    Address
	MatchID int64
	Kind    Kind
	Time    time.Time
	Args    []any
}

// IsRequest reports whether the call expects handling rather than matching.
func (c Call) IsRequest() bool {
	return c.Kind == KindRequest || c.Kind == KindQuietRequest
}

// IsReply reports whether the call answers an earlier request.
func (c Call) IsReply() bool {
	return c.Kind == KindResponse || c.Kind == KindError
}

// NewRequest builds a request; the router assigns its MatchID on Send.
func NewRequest(to, from Address, args ...any) Call {
	return Call{To: to, From: from, Kind: KindRequest, Args: args}
}

// Reply answers c successfully.
func (c Call) Reply(args ...any) Call {
	return c.ReplyWith(KindResponse, args)
}

// ErrorReply answers c with err.
func (c Call) ErrorReply(err error) Call {
	return c.ReplyWith(KindError, []any{err})
}

// ReplyWith answers c with an explicit kind and argument list, used to
// relay another call's outcome verbatim.
func (c Call) ReplyWith(kind Kind, args []any) Call {
	return Call{To: c.From, From: c.To, MatchID: c.MatchID, Kind: kind, Args: args}
}

// Forward re-addresses c as a new request from "from" to "to", keeping its
// arguments and timestamp. The router assigns a fresh MatchID on Send.
func (c Call) Forward(to, from Address) Call {
	return Call{To: to, From: from, Kind: c.Kind, Time: c.Time, Args: c.Args}
}

// StringArg returns argument i as a string.
func (c Call) StringArg(i int) (string, error) {
	if i < 0 || i >= len(c.Args) {
		return "", fmt.Errorf("%w: missing argument %d", ErrInvalidArgs, i)
	}
	switch v := c.Args[i].(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return "", fmt.Errorf("%w: argument %d is %T", ErrInvalidArgs, i, v)
	}
}

// ErrorFromArgs recovers the error carried by an error reply's arguments.
func ErrorFromArgs(args []any) error {
	if len(args) == 0 {
		return ErrUnknownFailure
	}
	switch v := args[0].(type) {
	case error:
		return v
	case string:
		return errors.New(v)
	default:
		return fmt.Errorf("%w: %v", ErrUnknownFailure, v)
	}
}
