package main

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

type fakeSender struct {
	sent  []string
	reply func(string) ([]byte, error)
}

func (f *fakeSender) Send(expression string) ([]byte, error) {
	f.sent = append(f.sent, expression)
	return f.reply(expression)
}

func TestReplSkipsEmptyLinesAndClosesAtEOF(t *testing.T) {
	f := &fakeSender{reply: func(e string) ([]byte, error) {
		if e == "1/0" {
			return []byte("ERR division by zero near 'end'\n"), nil
		}
		return []byte("OK 5"), nil
	}}
	var out, errOut bytes.Buffer
	if err := repl(strings.NewReader("2+3\n\n1/0\r\n"), &out, &errOut, f, false); err != nil {
		t.Fatalf("repl: %v", err)
	}
	if len(f.sent) != 2 || f.sent[0] != "2+3" || f.sent[1] != "1/0" {
		t.Fatalf("unexpected sends: %q", f.sent)
	}
	want := "OK 5\nERR division by zero near 'end'\n\nClosing connection\n"
	if out.String() != want {
		t.Fatalf("unexpected output: %q", out.String())
	}
	if errOut.Len() != 0 {
		t.Fatalf("unexpected stderr: %q", errOut.String())
	}
}

func TestReplPromptsWhenInteractive(t *testing.T) {
	f := &fakeSender{reply: func(string) ([]byte, error) { return []byte("OK 1\n"), nil }}
	var out bytes.Buffer
	if err := repl(strings.NewReader("1\n"), &out, io.Discard, f, true); err != nil {
		t.Fatalf("repl: %v", err)
	}
	if out.String() != "> OK 1\n> \nClosing connection\n" {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestReplEndsSessionWhenServerDisconnects(t *testing.T) {
	calls := 0
	f := &fakeSender{reply: func(string) ([]byte, error) {
		calls++
		if calls == 1 {
			return []byte("OK 1\n"), nil
		}
		return nil, errors.New("frame: peer closed")
	}}
	var out, errOut bytes.Buffer
	if err := repl(strings.NewReader("1\n2\n3\n"), &out, &errOut, f, false); err != nil {
		t.Fatalf("disconnect should end the session cleanly, got %v", err)
	}
	if len(f.sent) != 2 {
		t.Fatalf("expected two sends, got %d", len(f.sent))
	}
	if out.String() != "OK 1\n\nClosing connection\n" {
		t.Fatalf("unexpected output: %q", out.String())
	}
	if errOut.String() != "Server disconnected or protocol error\n" {
		t.Fatalf("unexpected stderr: %q", errOut.String())
	}
}

func TestSessionConfigFromFlags(t *testing.T) {
	plain := options{addr: "127.0.0.1:9000"}.sessionConfig()
	if plain.TLS.Enabled {
		t.Fatalf("tls should be off by default")
	}
	mutual := options{tls: true, caFile: "ca.crt", certFile: "c.crt", keyFile: "c.key"}.sessionConfig()
	if !mutual.TLS.Enabled || !mutual.TLS.Mutual || mutual.TLS.CAFile != "ca.crt" {
		t.Fatalf("unexpected tls config: %+v", mutual.TLS)
	}
}
