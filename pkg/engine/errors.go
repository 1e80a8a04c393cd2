package engine

import "errors"

var (
	// ErrConnectionNotFound is returned for unknown or removed handles.
	ErrConnectionNotFound = errors.New("connection not found")
	// ErrNoTaskRunning is returned when polling a handle with nothing in flight.
	ErrNoTaskRunning = errors.New("no active task")
	// ErrNoStreamAvailable is returned when the transport of a handle is owned
	// by a task, or is gone after a failed task.
	ErrNoStreamAvailable = errors.New("no tcp stream (either certain task is running or connection has not created yet)")
	// ErrBadMessageType is returned for WebSocket message types other than text and binary.
	ErrBadMessageType = errors.New("unsupported message type")
	// ErrUnsupportedOperation is returned for WebSocket operations on stream connections.
	ErrUnsupportedOperation = errors.New("operation requires a websocket connection")
	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("engine closed")
)
