package wire

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"sitekernel/pkg/dberror"
)

// ExceptionKind is the leading int32 of the exception buffer.
type ExceptionKind int32

const (
	ExceptionNone ExceptionKind = iota
	ExceptionUser
	ExceptionFragment
	ExceptionDependency
	ExceptionPlan
	ExceptionSystem
	ExceptionFatal
)

func (k ExceptionKind) String() string {
	switch k {
	case ExceptionNone:
		return "NONE"
	case ExceptionUser:
		return "USER"
	case ExceptionFragment:
		return "FRAGMENT"
	case ExceptionDependency:
		return "DEPENDENCY"
	case ExceptionPlan:
		return "PLAN"
	case ExceptionSystem:
		return "SYSTEM"
	case ExceptionFatal:
		return "FATAL"
	default:
		return fmt.Sprintf("KIND(%d)", int32(k))
	}
}

// KindOf maps an error onto the exception kind reported to the caller.
func KindOf(err error) ExceptionKind {
	if err == nil {
		return ExceptionNone
	}
	return ExceptionKind(dberror.CategoryOf(err)) + ExceptionUser
}

// Exception is a decoded exception buffer.
type Exception struct {
	Kind    ExceptionKind
	Code    string
	Message string
}

func (e *Exception) Error() string {
	return fmt.Sprintf("%s exception [%s]: %s", e.Kind, e.Code, e.Message)
}

// WriteNoException writes the "no exception" marker.
func (o *Output) WriteNoException() error {
	_, err := o.Write(binary.BigEndian.AppendUint32(o.scratch[:0], uint32(ExceptionNone)))
	return err
}

// WriteException serializes err. The message is shortened to whatever fits
// so the caller always receives a well-formed exception; it fails only when
// even the kind and code do not fit.
func (o *Output) WriteException(err error) error {
	code := dberror.CodeOf(err)
	msg := err.Error()

	fixed := 4 + 4 + len(code) + 4
	if room := o.Remaining() - fixed; room < len(msg) {
		if room < 0 {
			room = 0
		}
		for room > 0 && !utf8.RuneStart(msg[room]) {
			room--
		}
		msg = msg[:room]
	}

	b := binary.BigEndian.AppendUint32(o.scratch[:0], uint32(KindOf(err)))
	b = appendString(b, code)
	b = appendString(b, msg)
	o.scratch = b[:0]
	_, werr := o.Write(b)
	return werr
}

func appendString(dst []byte, s string) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(s)))
	return append(dst, s...)
}

// ReadException decodes an exception buffer. It returns nil for the "no
// exception" marker or an empty buffer.
func ReadException(buf []byte) (*Exception, error) {
	if len(buf) < 4 {
		return nil, nil
	}
	kind := ExceptionKind(binary.BigEndian.Uint32(buf))
	if kind == ExceptionNone {
		return nil, nil
	}
	off := 4
	code, n, err := readString(buf[off:])
	if err != nil {
		return nil, err
	}
	off += n
	msg, _, err := readString(buf[off:])
	if err != nil {
		return nil, err
	}
	return &Exception{Kind: kind, Code: code, Message: msg}, nil
}

func readString(b []byte) (string, int, error) {
	if len(b) < 4 {
		return "", 0, truncatedException()
	}
	n := int(binary.BigEndian.Uint32(b))
	if n < 0 || len(b) < 4+n {
		return "", 0, truncatedException()
	}
	return string(b[4 : 4+n]), 4 + n, nil
}

func truncatedException() error {
	return dberror.New(dberror.ErrCategorySystem, dberror.CodeBufferOverflow,
		"truncated exception buffer").At("ReadException", "wire")
}
