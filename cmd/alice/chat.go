// Copyright 2026 The Alice Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/wojcikm/alice/pkg/agent"
	"github.com/wojcikm/alice/pkg/llm"
	"github.com/wojcikm/alice/pkg/store"
)

// ChatCmd sends one message, or starts an interactive session when no
// message is given.
type ChatCmd struct {
	Message      []string          `arg:"" optional:"" help:"Message to send. Starts an interactive session when empty."`
	Conversation string            `help:"Conversation UUID to continue." placeholder:"UUID"`
	User         string            `help:"User UUID." default:"local"`
	Name         string            `help:"How the assistant calls you." env:"ALICE_USER_NAME"`
	About        string            `help:"Background about you passed to every turn."`
	Env          map[string]string `help:"Environment facts passed to every turn (key=value)." placeholder:"KEY=VALUE"`
	Model        string            `help:"Override the model for this session."`
	NoStream     bool              `name:"no-stream" help:"Print the answer only once it is complete."`
}

func (c *ChatCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	rt, err := cli.openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	s := &chatSession{
		agent:        rt.Agent(),
		cmd:          c,
		conversation: c.Conversation,
		out:          os.Stdout,
	}
	if s.conversation != "" {
		if s.history, err = loadHistory(ctx, rt.Store(), s.conversation); err != nil {
			return err
		}
	}

	if len(c.Message) > 0 {
		return s.send(ctx, strings.Join(c.Message, " "))
	}
	return s.interactive(ctx, os.Stdin)
}

// turnRunner is the part of *agent.Agent a chat session needs.
type turnRunner interface {
	Run(ctx context.Context, req agent.Request) (*agent.Response, error)
}

type chatSession struct {
	agent        turnRunner
	cmd          *ChatCmd
	conversation string
	history      []llm.Message
	out          io.Writer
}

func (s *chatSession) interactive(ctx context.Context, in *os.File) error {
	tty := term.IsTerminal(int(in.Fd()))
	if tty {
		fmt.Fprintln(s.out, "Type your message. /new starts a new conversation, /quit exits.")
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for {
		if tty {
			fmt.Fprint(s.out, "\nYou: ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/new":
			s.conversation, s.history = "", nil
			fmt.Fprintln(s.out, "Started a new conversation.")
			continue
		}

		if err := s.send(ctx, input); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
	}
}

func (s *chatSession) send(ctx context.Context, text string) error {
	messages := append(append([]llm.Message{}, s.history...), llm.User(text))
	req := agent.Request{
		ConversationUUID: s.conversation,
		User: agent.User{
			UUID:        s.cmd.User,
			Name:        s.cmd.Name,
			Context:     s.cmd.About,
			Environment: s.cmd.Env,
		},
		Messages: messages,
		Model:    s.cmd.Model,
	}

	streamed := false
	if !s.cmd.NoStream {
		req.OnDelta = func(delta string) {
			streamed = true
			fmt.Fprint(s.out, delta)
		}
	}

	resp, err := s.agent.Run(ctx, req)
	if err != nil {
		return err
	}
	if !streamed {
		fmt.Fprint(s.out, resp.Answer)
	}
	fmt.Fprintln(s.out)

	s.conversation = resp.ConversationUUID
	s.history = append(messages, llm.Assistant(resp.Answer))
	return nil
}

func loadHistory(ctx context.Context, st *store.Store, conversationUUID string) ([]llm.Message, error) {
	stored, err := st.ListMessages(ctx, conversationUUID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation %s: %w", conversationUUID, err)
	}
	history := make([]llm.Message, 0, len(stored))
	for _, m := range stored {
		history = append(history, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}
	return history, nil
}
