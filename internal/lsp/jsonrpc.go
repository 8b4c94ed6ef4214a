package lsp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// readMessage reads one Content-Length framed payload. Other headers are
// skipped.
func readMessage(r *bufio.Reader) ([]byte, error) {
	length := -1
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			continue
		}
		length, err = strconv.Atoi(strings.TrimSpace(value))
		if err != nil || length < 0 {
			return nil, fmt.Errorf("invalid Content-Length %q", strings.TrimSpace(value))
		}
	}
	if length < 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func writeMessage(w io.Writer, payload []byte) error {
	if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(payload)); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// writer serializes framed writes from the read loop and the reparse timers.
type writer struct {
	mu  sync.Mutex
	out *bufio.Writer
}

func (w *writer) write(payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := writeMessage(w.out, payload); err != nil {
		return err
	}
	return w.out.Flush()
}
