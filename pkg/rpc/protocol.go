// Package rpc implements the privileged RPC server's wire protocol: a
// stream of JSON request values over one TCP connection, each answered
// by exactly one JSON response value, terminated by an End request or a
// connection error. There is no TLS — the trust boundary is the docker
// network the containers and the server share.
package rpc

import "github.com/fbksd/fbksd-server/pkg/types"

// DefaultPort is the RPC server's fixed listen port.
const DefaultPort = 8096

// Variant names the request tag understood by the server.
type Variant string

const (
	VariantRegister            Variant = "Register"
	VariantSaveResults         Variant = "SaveResults"
	VariantPublishPrivate      Variant = "PublishPrivate"
	VariantInitMissingScenesWP Variant = "InitMissingScenesWP"
	VariantUpdateResults       Variant = "UpdateResults"
	VariantPublishPublic       Variant = "PublishPublic"
	VariantCanRun              Variant = "CanRun"
	VariantDeleteWorkspace     Variant = "DeleteWorkspace"
	VariantEnd                 Variant = "End"
)

// Request is the single wire shape carrying every variant; unused
// fields for a given Tag are simply omitted by the sender.
type Request struct {
	Tag     Variant        `json:"tag"`
	Project *types.Project `json:"project,omitempty"`
	Info    *types.Info    `json:"info,omitempty"`
	UUID    string         `json:"uuid,omitempty"`
}

// ErrorKind is the wire error taxonomy: protocol faults are
// InvalidMessage, registry domain errors are Logic, anything else is
// Internal.
type ErrorKind string

const (
	ErrInvalidMessage ErrorKind = "InvalidMessage"
	ErrLogic          ErrorKind = "Logic"
	ErrInternal       ErrorKind = "Internal"
)

// WireError is the Err arm of Response.
type WireError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message,omitempty"`
}

// Response is Result<string, WireError>: exactly one of Ok/Err is set.
type Response struct {
	Ok  *string    `json:"Ok,omitempty"`
	Err *WireError `json:"Err,omitempty"`
}

func ok(value string) Response {
	return Response{Ok: &value}
}

func errResponse(kind ErrorKind, message string) Response {
	return Response{Err: &WireError{Kind: kind, Message: message}}
}
