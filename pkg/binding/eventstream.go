package binding

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OpenEventStream connects to a server-sent events endpoint and returns a
// Source yielding one delivery per dispatched event. The event name is
// reported as the "event" header. The "id" header carries the stream's last
// event id and is absent until the server sends one.
func OpenEventStream(ctx context.Context, client *http.Client, baseURL, addr, query string, header http.Header) (Source, error) {
	if client == nil {
		client = http.DefaultClient
	}
	url := strings.TrimSuffix(baseURL, "/") + addr
	if query != "" {
		url += "?" + query
	}

	streamCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build event stream request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel()
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: body}
	}

	return &eventStream{
		addr:   addr,
		query:  query,
		body:   resp.Body,
		reader: bufio.NewReader(resp.Body),
		cancel: cancel,
	}, nil
}

type eventStream struct {
	addr   string
	query  string
	body   io.ReadCloser
	reader *bufio.Reader
	cancel context.CancelFunc
	lastID string
}

func (s *eventStream) Next(ctx context.Context) (Delivery, error) {
	var (
		data      strings.Builder
		hasData   bool
		eventName string
	)
	for {
		if err := ctx.Err(); err != nil {
			return Delivery{}, err
		}
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return Delivery{}, ErrSourceClosed
			}
			if ctx.Err() != nil {
				return Delivery{}, ctx.Err()
			}
			return Delivery{}, fmt.Errorf("read event stream: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if !hasData {
				eventName = ""
				continue
			}
			headers := make(map[string]string, 2)
			if s.lastID != "" {
				headers["id"] = s.lastID
			}
			if eventName != "" {
				headers["event"] = eventName
			}
			return Delivery{Address: s.addr, Query: s.query, Payload: []byte(data.String()), Headers: headers}, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "event":
			eventName = value
		case "id":
			s.lastID = value
		}
	}
}

func (s *eventStream) Close() error {
	s.cancel()
	return s.body.Close()
}
