package processor

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"task-offload/pkg/protocol"
)

// maxLineSize bounds a single newline-delimited message on a stream.
const maxLineSize = 16 * 1024 * 1024

// Serve runs the message loop for p. It emits the ready signal first and
// then handles requests one at a time until ctx is done or in is closed.
func Serve(ctx context.Context, p Processor, in <-chan protocol.Request, out chan<- protocol.Response) {
	if !send(ctx, out, protocol.Ready()) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-in:
			if !ok {
				return
			}
			if !send(ctx, out, Handle(p, req)) {
				return
			}
		}
	}
}

func send(ctx context.Context, out chan<- protocol.Response, resp protocol.Response) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- resp:
		return true
	}
}

// ServeStream runs the message loop for p over newline-delimited JSON.
// It returns nil when r reaches EOF.
func ServeStream(ctx context.Context, p Processor, r io.Reader, w io.Writer) error {
	enc := protocol.NewEncoder(w)
	if err := enc.Encode(protocol.Ready()); err != nil {
		return fmt.Errorf("write ready: %w", err)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		resp, ok := handleLine(p, line)
		if !ok {
			continue
		}
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}

	return scanner.Err()
}

// handleLine decodes and handles one request. A line that does not decode
// is answered with a failure when its id can still be read, and skipped
// otherwise.
func handleLine(p Processor, line []byte) (protocol.Response, bool) {
	var req protocol.Request
	if err := json.Unmarshal(line, &req); err != nil {
		id := gjson.GetBytes(line, "id").String()
		log.Warn().Err(err).Str("processor", p.Name()).Str("request_id", id).Msg("undecodable request")
		if id == "" {
			return protocol.Response{}, false
		}
		return protocol.Failure(id, fmt.Sprintf("invalid request: %v", err)), true
	}
	return Handle(p, req), true
}
