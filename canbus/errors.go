package canbus

import "errors"

var (
	ErrIllegalArgument = errors.New("error in function arguments")
	ErrTimeout         = errors.New("function timeout")
	ErrIllegalBaudrate = errors.New("illegal baudrate passed to function")
	ErrRxOverflow      = errors.New("previous message was not processed yet")
	ErrTxOverflow      = errors.New("previous message is still waiting, buffer full")
	ErrDataCorrupt     = errors.New("received data are corrupt")
	ErrCRC             = errors.New("CRC does not match")
	ErrTxBusy          = errors.New("sending rejected because driver is busy, try again")
	ErrSyscall         = errors.New("syscall failed")
	ErrInvalidState    = errors.New("driver not ready")
)
