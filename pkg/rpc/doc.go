/*
Package rpc implements the privileged server's wire protocol: one TCP
connection carries a sequence of JSON requests, each answered by a
single JSON Result<string, Error> value, until an End request or a
transport failure closes the connection.

There is no framing beyond JSON object boundaries and no TLS — the
trust boundary is the docker network shared by the server and the
containers that call it. Server wires Service (the application logic in
pkg/rpcservice) to the transport and maps its errors to the wire
taxonomy (Logic for known domain errors, Internal otherwise); Client is
the thin caller used by the producer and CI runner.
*/
package rpc
