package connection

type NoPayload bool

// Message is the envelope of every frame in both directions.
type Message[T any] struct {
	Code    uint8    `json:"code"`
	Payload T        `json:"payload,omitempty"`
	Error   *RespErr `json:"error,omitempty"`
}

func NewMessage[T any](code uint8) Message[T] {
	return Message[T]{Code: code}
}

func (m *Message[T]) AddPayload(payload T) {
	m.Payload = payload
}

// AddError sets the failure; message carries the error code name.
func (m *Message[T]) AddError(errorDetails, message string) {
	m.Error = NewRespErr(errorDetails, message)
}
