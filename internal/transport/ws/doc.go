// Package ws carries a bridge over a websocket. Conn is the native end and
// implements transport.Transport; Remote hosts a script environment on the
// other end. Each text message is one frame.
package ws
