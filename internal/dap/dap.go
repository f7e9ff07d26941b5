// Package dap implements a minimal Debug Adapter Protocol server over
// internal/unwind: enough of the protocol (initialize, launch,
// stackTrace) for a DAP-speaking editor to attach to a running ehwalk
// process and request its current call stack. It is not a general
// debugger backend — there is no breakpoint, stepping, or variable
// inspection support, since ehwalk never controls another process's
// execution the way delve's own dap server does.
package dap

import (
	"bufio"
	"fmt"
	"io"

	godap "github.com/google/go-dap"

	"github.com/ehwalk/ehwalk/internal/glue"
	"github.com/ehwalk/ehwalk/internal/logflags"
	"github.com/ehwalk/ehwalk/internal/unwind"
)

// Server speaks a subset of DAP over in/out, translating stackTrace
// requests into an internal/unwind.Unwinder.Trace call seeded from the
// calling goroutine's own register state.
type Server struct {
	u   *unwind.Unwinder
	in  *bufio.Reader
	out io.Writer
	seq int
}

// New returns a Server ready to Run.
func New(u *unwind.Unwinder, in io.Reader, out io.Writer) *Server {
	return &Server{u: u, in: bufio.NewReader(in), out: out}
}

// Run reads and dispatches requests until in is exhausted or a read
// fails.
func (s *Server) Run() error {
	logger := logflags.StackLogger()
	for {
		msg, err := godap.ReadBaseMessage(s.in)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("dap: reading message: %w", err)
		}
		if err := s.dispatch(msg); err != nil {
			logger.Warnf("dap: handling %T: %v", msg, err)
		}
	}
}

func (s *Server) dispatch(msg godap.Message) error {
	switch req := msg.(type) {
	case *godap.InitializeRequest:
		return s.handleInitialize(req)
	case *godap.LaunchRequest:
		return s.handleLaunch(req)
	case *godap.StackTraceRequest:
		return s.handleStackTrace(req)
	default:
		return fmt.Errorf("unsupported request type %T", msg)
	}
}

func (s *Server) nextSeq() int {
	s.seq++
	return s.seq
}

func (s *Server) send(m godap.Message) error {
	return godap.WriteBaseMessage(s.out, m)
}

func (s *Server) handleInitialize(req *godap.InitializeRequest) error {
	resp := &godap.InitializeResponse{
		Response: newResponse(s.nextSeq(), req.Seq, "initialize"),
		Body: godap.Capabilities{
			SupportsConfigurationDoneRequest: true,
		},
	}
	if err := s.send(resp); err != nil {
		return err
	}
	return s.send(&godap.InitializedEvent{Event: newEvent(s.nextSeq(), "initialized")})
}

// handleLaunch acknowledges the request without doing anything: ehwalk
// always traces its own already-running process, so there is no
// debuggee to launch.
func (s *Server) handleLaunch(req *godap.LaunchRequest) error {
	return s.send(&godap.LaunchResponse{Response: newResponse(s.nextSeq(), req.Seq, "launch")})
}

func (s *Server) handleStackTrace(req *godap.StackTraceRequest) error {
	initial := glue.Capture()

	var frames []godap.StackFrame
	id := 0
	err := s.u.Trace(initial, func(f *unwind.StackFrame) error {
		id++
		frames = append(frames, godap.StackFrame{
			Id:     id,
			Name:   fmt.Sprintf("0x%x", f.InitialAddress),
			Line:   0,
			Column: 0,
		})
		return nil
	})

	resp := &godap.StackTraceResponse{
		Response: newResponse(s.nextSeq(), req.Seq, "stackTrace"),
		Body: godap.StackTraceResponseBody{
			StackFrames: frames,
			TotalFrames: len(frames),
		},
	}
	if err != nil {
		resp.Success = false
		resp.Message = err.Error()
	}
	return s.send(resp)
}

func newResponse(seq, requestSeq int, command string) godap.Response {
	return godap.Response{
		ProtocolMessage: godap.ProtocolMessage{Seq: seq, Type: "response"},
		RequestSeq:      requestSeq,
		Success:         true,
		Command:         command,
	}
}

func newEvent(seq int, event string) godap.Event {
	return godap.Event{
		ProtocolMessage: godap.ProtocolMessage{Seq: seq, Type: "event"},
		Event:           event,
	}
}
