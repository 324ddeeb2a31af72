package processor

import (
	"github.com/c360/streambridge/message"
)

// Processor transforms one message in the domain stage.
//
// Returning (nil, nil) drops the message as an intentional filter.
// Returning an error drops the message and counts it against the source
// topic; the flow continues.
type Processor interface {
	Process(msg *message.Message) (*message.Message, error)
}

// PassThrough is the default processor: it forwards every message
// unchanged.
type PassThrough struct{}

// Process returns the message as-is.
func (PassThrough) Process(msg *message.Message) (*message.Message, error) {
	return msg, nil
}

// Func adapts an ordinary function to the Processor interface.
type Func func(msg *message.Message) (*message.Message, error)

// Process calls the wrapped function.
func (f Func) Process(msg *message.Message) (*message.Message, error) {
	return f(msg)
}
