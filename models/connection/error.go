package connection

import "fmt"

// LoopCode tells the session loop what to do after a connection failure.
type LoopCode uint8

const (
	ConnLoopBreak LoopCode = iota
	ConnLoopRetry
	ConnLoopAbnormalClosureRetry
	ConnLoopContinue
	ConnInvalidMsgType
)

func (lc LoopCode) String() string {
	switch lc {
	case ConnLoopBreak:
		return "break"
	case ConnLoopRetry:
		return "retry"
	case ConnLoopAbnormalClosureRetry:
		return "abnormal_closure"
	case ConnLoopContinue:
		return "continue"
	case ConnInvalidMsgType:
		return "invalid_msg_type"
	default:
		return "unknown"
	}
}

type ConnErr struct {
	code LoopCode
	desc string
}

func NewConnErr(code LoopCode) ConnErr {
	return ConnErr{code: code}
}

func (c ConnErr) AddDesc(desc string) ConnErr {
	c.desc = desc
	return c
}

func (c ConnErr) Error() string {
	return fmt.Sprintf("connection error [%s]: %s", c.code, c.desc)
}

func (c ConnErr) Code() LoopCode {
	return c.code
}
